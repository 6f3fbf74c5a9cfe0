// Package parse normalizes the loosely formatted values found in exported
// statements and scraped order pages: amounts, dates, and column headers.
//
// Amounts are decimals in the statement currency. Accepted shapes:
//
//	1,234   ¥1,234   ￥１，２３４   1,234円   -1,234   △1,234   ▲1,234   (1,234)
//
// The last three are negative. A "." is always the decimal separator.
//
// Dates are calendar days in Japan Standard Time:
//
//	2026-01-05   2026/1/5   2026.01.05   2026年1月5日   20260105   2026-01-05T10:00:00Z
//
// Time-of-day suffixes are ignored except for RFC 3339 input, which is
// converted to JST before truncation.
package parse

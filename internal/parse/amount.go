package parse

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/width"
)

var amountRegex = regexp.MustCompile(`^\d+(\.\d+)?$`)

// currencyTokens are stripped before parsing. Longer tokens come first.
var currencyTokens = []string{"JPY", "USD", "円", "¥", "$", "\\"}

// FoldWidth converts full-width ASCII and symbols to their narrow forms.
func FoldWidth(s string) string {
	return width.Fold.String(s)
}

// ParseAmount parses a statement amount into a decimal.
func ParseAmount(s string) (decimal.Decimal, error) {
	raw := s
	s = strings.TrimSpace(FoldWidth(s))
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	signed := false
	for _, marker := range []string{"△", "▲", "-", "−"} {
		if strings.HasPrefix(s, marker) {
			signed = true
			negative = !negative
			s = strings.TrimSpace(strings.TrimPrefix(s, marker))
			break
		}
	}
	s = strings.TrimPrefix(s, "+")

	for _, tok := range currencyTokens {
		s = strings.ReplaceAll(s, tok, "")
	}
	s = strings.ReplaceAll(s, " ", "")
	if !validGrouping(s) {
		return decimal.Zero, fmt.Errorf("invalid amount %q: bad digit grouping", raw)
	}
	s = strings.ReplaceAll(s, ",", "")

	// A sign may also follow the currency symbol: "¥-1,200".
	if strings.HasPrefix(s, "-") {
		if signed {
			return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
		}
		negative = !negative
		s = s[1:]
	}

	if !amountRegex.MatchString(s) {
		return decimal.Zero, fmt.Errorf("invalid amount %q", raw)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", raw, err)
	}
	if negative {
		d = d.Neg()
	}
	return d, nil
}

// validGrouping accepts commas only as thousands separators in the integer
// part: each one followed by exactly three digits, none after the point.
func validGrouping(s string) bool {
	point := strings.IndexByte(s, '.')
	for i := 0; i < len(s); i++ {
		if s[i] != ',' {
			continue
		}
		if point >= 0 && i > point {
			return false
		}
		if i == 0 || i+4 > len(s) {
			return false
		}
		for _, c := range s[i+1 : i+4] {
			if c < '0' || c > '9' {
				return false
			}
		}
		if i+4 < len(s) && s[i+4] != ',' && s[i+4] != '.' {
			return false
		}
	}
	return true
}

// MustAmount is ParseAmount for literals in tests and fixtures.
func MustAmount(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return d
}

package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// JST is the zone all statement dates are interpreted in.
var JST = time.FixedZone("JST", 9*60*60)

// DateLayout is the canonical on-disk date format.
const DateLayout = "2006-01-02"

var (
	jaDateRegex      = regexp.MustCompile(`^(\d{4})年\s*(\d{1,2})月\s*(\d{1,2})日`)
	separatedRegex   = regexp.MustCompile(`^(\d{4})[-/.](\d{1,2})[-/.](\d{1,2})(?:$|[\sT])`)
	compactDateRegex = regexp.MustCompile(`^(\d{4})(\d{2})(\d{2})$`)
)

// ParseDate parses a calendar date and returns midnight JST of that day.
func ParseDate(s string) (time.Time, error) {
	raw := s
	s = strings.TrimSpace(FoldWidth(s))
	if s == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		t = t.In(JST)
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, JST), nil
	}

	for _, re := range []*regexp.Regexp{jaDateRegex, separatedRegex, compactDateRegex} {
		if m := re.FindStringSubmatch(s); m != nil {
			return buildDate(raw, m[1], m[2], m[3])
		}
	}

	return time.Time{}, fmt.Errorf("invalid date %q", raw)
}

func buildDate(raw, ys, ms, ds string) (time.Time, error) {
	y, _ := strconv.Atoi(ys)
	m, _ := strconv.Atoi(ms)
	d, _ := strconv.Atoi(ds)

	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, JST)
	// time.Date normalizes overflow (Feb 30 -> Mar 2); reject it instead.
	if t.Year() != y || int(t.Month()) != m || t.Day() != d {
		return time.Time{}, fmt.Errorf("invalid date %q", raw)
	}
	return t, nil
}

// FormatDate renders a date in DateLayout.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.In(JST).Format(DateLayout)
}

// DaysBetween returns the absolute number of calendar days between a and b.
func DaysBetween(a, b time.Time) int {
	a = a.In(JST)
	b = b.In(JST)
	da := time.Date(a.Year(), a.Month(), a.Day(), 0, 0, 0, 0, time.UTC)
	db := time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, time.UTC)
	days := int(da.Sub(db).Hours() / 24)
	if days < 0 {
		return -days
	}
	return days
}

// InMonth reports whether t falls in the given year and month (JST).
func InMonth(t time.Time, year int, month time.Month) bool {
	t = t.In(JST)
	return t.Year() == year && t.Month() == month
}

// Date is a calendar day that encodes as YYYY-MM-DD in JSON and TOML.
type Date struct {
	time.Time
}

// NewDate wraps t as a Date.
func NewDate(t time.Time) Date {
	return Date{Time: t}
}

// String returns the DateLayout form, or "" for the zero date.
func (d Date) String() string {
	return FormatDate(d.Time)
}

// MarshalText implements encoding.TextMarshaler.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(FormatDate(d.Time)), nil
}

// UnmarshalText implements encoding.TextUnmarshaler. Any format ParseDate
// accepts is allowed; empty input yields the zero date.
func (d *Date) UnmarshalText(text []byte) error {
	if len(strings.TrimSpace(string(text))) == 0 {
		d.Time = time.Time{}
		return nil
	}
	t, err := ParseDate(string(text))
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

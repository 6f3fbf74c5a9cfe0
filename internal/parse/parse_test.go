package parse

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"1234", "1234"},
		{"1,234", "1234"},
		{"¥1,234", "1234"},
		{"￥１，２３４", "1234"},
		{"1,234円", "1234"},
		{" 980 円 ", "980"},
		{"-1,234", "-1234"},
		{"−500", "-500"},
		{"△1,234", "-1234"},
		{"▲300", "-300"},
		{"(1,234)", "-1234"},
		{"（２００）", "-200"},
		{"¥-1,200", "-1200"},
		{"$12.50", "12.5"},
		{"+42", "42"},
		{"\\3,300", "3300"},
		{"JPY 10,000", "10000"},
		{"1,234,567.89", "1234567.89"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAmount(tt.in)
			if err != nil {
				t.Fatalf("ParseAmount(%q) error = %v", tt.in, err)
			}
			if got.String() != tt.want {
				t.Errorf("ParseAmount(%q) = %s, want %s", tt.in, got.String(), tt.want)
			}
		})
	}
}

func TestParseAmount_Invalid(t *testing.T) {
	for _, in := range []string{"", "   ", "abc", "1.2.3", "12a", "¥", "1,234.5.6", "--5",
		"1.234,56", "12,34", "1,2345", ",123", "1,", "1,234,5", "12.3,456"} {
		if _, err := ParseAmount(in); err == nil {
			t.Errorf("ParseAmount(%q) should fail", in)
		}
	}
}

func TestParseDate(t *testing.T) {
	want := time.Date(2026, 1, 5, 0, 0, 0, 0, JST)

	inputs := []string{
		"2026-01-05",
		"2026/01/05",
		"2026/1/5",
		"2026.01.05",
		"2026年1月5日",
		"2026年01月05日(月)",
		"２０２６／０１／０５",
		"20260105",
		"2026/01/05 13:45",
		"2026-01-04T20:00:00Z", // 05:00 JST on the 5th
	}

	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			got, err := ParseDate(in)
			if err != nil {
				t.Fatalf("ParseDate(%q) error = %v", in, err)
			}
			if !got.Equal(want) {
				t.Errorf("ParseDate(%q) = %v, want %v", in, got, want)
			}
		})
	}
}

func TestParseDate_Invalid(t *testing.T) {
	for _, in := range []string{"", "yesterday", "2026-13-01", "2026/02/30", "05/01/2026", "2026-1"} {
		if _, err := ParseDate(in); err == nil {
			t.Errorf("ParseDate(%q) should fail", in)
		}
	}
}

func TestFormatDate(t *testing.T) {
	if got := FormatDate(time.Date(2026, 3, 9, 0, 0, 0, 0, JST)); got != "2026-03-09" {
		t.Errorf("FormatDate() = %q", got)
	}
	if got := FormatDate(time.Time{}); got != "" {
		t.Errorf("FormatDate(zero) = %q, want empty", got)
	}
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 1, 30, 0, 0, 0, 0, JST)
	b := time.Date(2026, 2, 2, 0, 0, 0, 0, JST)

	if got := DaysBetween(a, b); got != 3 {
		t.Errorf("DaysBetween() = %d, want 3", got)
	}
	if got := DaysBetween(b, a); got != 3 {
		t.Errorf("DaysBetween() reversed = %d, want 3", got)
	}
	if got := DaysBetween(a, a); got != 0 {
		t.Errorf("DaysBetween() same = %d, want 0", got)
	}
}

func TestInMonth(t *testing.T) {
	d := time.Date(2026, 1, 31, 0, 0, 0, 0, JST)
	if !InMonth(d, 2026, time.January) {
		t.Error("expected January 2026")
	}
	if InMonth(d, 2026, time.February) {
		t.Error("did not expect February 2026")
	}
}

func TestNormalizeHeaders(t *testing.T) {
	in := []string{"\ufeff注文番号", "注文日", "金額（円）", "Order Date", "  Vendor  ", "PDF", "Use-Date", "商品名", "ＴＯＴＡＬ"}
	want := []string{"order_id", "order_date", "amount", "order_date", "vendor", "pdf_path", "use_date", "item", "amount"}

	if diff := cmp.Diff(want, NormalizeHeaders(in)); diff != "" {
		t.Errorf("NormalizeHeaders() mismatch (-want +got):\n%s", diff)
	}
}

func TestDate_JSON(t *testing.T) {
	var v struct {
		D Date `json:"d"`
		E Date `json:"e"`
	}
	if err := json.Unmarshal([]byte(`{"d":"2026年1月5日","e":""}`), &v); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if v.D.String() != "2026-01-05" {
		t.Errorf("D = %q", v.D.String())
	}
	if !v.E.IsZero() {
		t.Errorf("E = %v, want zero", v.E)
	}

	out, err := json.Marshal(v)
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `{"d":"2026-01-05","e":""}` {
		t.Errorf("Marshal() = %s", out)
	}

	if err := json.Unmarshal([]byte(`{"d":"2026-02-30"}`), &v); err == nil {
		t.Error("expected error for invalid date")
	}
}

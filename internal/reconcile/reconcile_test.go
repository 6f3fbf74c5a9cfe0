package reconcile

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"

	"github.com/firefly-engineering/skillctl/internal/audit"
	"github.com/firefly-engineering/skillctl/internal/expense"
	"github.com/firefly-engineering/skillctl/internal/ledger"
	"github.com/firefly-engineering/skillctl/internal/orders"
	"github.com/firefly-engineering/skillctl/internal/parse"
)

func exp(id, date, amount string) expense.Expense {
	d, err := parse.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return expense.Expense{ExpenseID: id, UseDate: parse.NewDate(d), Amount: parse.MustAmount(amount)}
}

func ord(id, date, amount string) orders.Order {
	d, err := parse.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return orders.Order{Source: "amazon", OrderID: id, Date: parse.NewDate(d), Amount: parse.MustAmount(amount)}
}

var defaultOpts = Options{DayWindow: 3, FallbackWindow: 14}

// pairs renders matches as "expense=order" strings, with a trailing "~" for
// fallback matches.
func pairs(r *Report) []string {
	var out []string
	for _, m := range r.Matched {
		s := m.Expense.ExpenseID + "=" + m.Order.OrderID
		if m.Fallback {
			s += "~"
		}
		out = append(out, s)
	}
	return out
}

func TestRun_Matching(t *testing.T) {
	tests := []struct {
		name string
		exps []expense.Expense
		ords []orders.Order
		want []string
	}{
		{
			name: "within window",
			exps: []expense.Expense{exp("e1", "2026-01-05", "1980")},
			ords: []orders.Order{ord("o1", "2026-01-03", "1980")},
			want: []string{"e1=o1"},
		},
		{
			name: "fallback window",
			exps: []expense.Expense{exp("e1", "2026-01-15", "1980")},
			ords: []orders.Order{ord("o1", "2026-01-03", "1980")},
			want: []string{"e1=o1~"},
		},
		{
			name: "beyond fallback",
			exps: []expense.Expense{exp("e1", "2026-01-30", "1980")},
			ords: []orders.Order{ord("o1", "2026-01-03", "1980")},
			want: nil,
		},
		{
			name: "amount must match",
			exps: []expense.Expense{exp("e1", "2026-01-05", "1980")},
			ords: []orders.Order{ord("o1", "2026-01-05", "1981")},
			want: nil,
		},
		{
			name: "absolute amount",
			exps: []expense.Expense{exp("e1", "2026-01-05", "△300")},
			ords: []orders.Order{ord("o1", "2026-01-05", "300")},
			want: []string{"e1=o1"},
		},
		{
			name: "smallest diff wins",
			exps: []expense.Expense{exp("e1", "2026-01-05", "500")},
			ords: []orders.Order{ord("o1", "2026-01-03", "500"), ord("o2", "2026-01-04", "500")},
			want: []string{"e1=o2"},
		},
		{
			name: "equal diff breaks on order id",
			exps: []expense.Expense{exp("e1", "2026-01-05", "500")},
			ords: []orders.Order{ord("o9", "2026-01-04", "500"), ord("o2", "2026-01-06", "500")},
			want: []string{"e1=o2"},
		},
		{
			name: "closest expense takes the order",
			exps: []expense.Expense{exp("e1", "2026-01-10", "500"), exp("e2", "2026-01-12", "500")},
			ords: []orders.Order{ord("o1", "2026-01-12", "500")},
			want: []string{"e2=o1"},
		},
		{
			name: "primary pass before fallback",
			exps: []expense.Expense{exp("e1", "2026-01-01", "500"), exp("e2", "2026-01-12", "500")},
			ords: []orders.Order{ord("o1", "2026-01-11", "500")},
			want: []string{"e2=o1"},
		},
		{
			name: "each order used once",
			exps: []expense.Expense{exp("e1", "2026-01-05", "500"), exp("e2", "2026-01-05", "500")},
			ords: []orders.Order{ord("o1", "2026-01-05", "500"), ord("o2", "2026-01-07", "500")},
			want: []string{"e1=o1", "e2=o2"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			report, err := Run(context.Background(), tt.exps, tt.ords, nil, defaultOpts)
			if err != nil {
				t.Fatalf("Run() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, pairs(report)); diff != "" {
				t.Errorf("matches mismatch (-want +got):\n%s", diff)
			}
			s := report.Summary
			if s.Matched+s.UnmatchedExpenses != len(tt.exps) || s.Matched+s.UnmatchedOrders != len(tt.ords) {
				t.Errorf("summary does not add up: %+v", s)
			}
		})
	}
}

func TestRun_InputOrderIndependent(t *testing.T) {
	exps := []expense.Expense{exp("e1", "2026-01-05", "500"), exp("e2", "2026-01-06", "500")}
	ords := []orders.Order{ord("o1", "2026-01-05", "500"), ord("o2", "2026-01-06", "500")}

	a, err := Run(context.Background(), exps, ords, nil, defaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Run(context.Background(),
		[]expense.Expense{exps[1], exps[0]},
		[]orders.Order{ords[1], ords[0]}, nil, defaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(pairs(a), pairs(b)); diff != "" {
		t.Errorf("result depends on input order (-a +b):\n%s", diff)
	}
}

func TestRun_MonthScope(t *testing.T) {
	exps := []expense.Expense{exp("e1", "2026-02-01", "1200")}
	ords := []orders.Order{
		ord("o1", "2026-01-31", "1200"),
		ord("o2", "2026-01-25", "700"),
		ord("o3", "2026-02-10", "500"),
	}
	opts := defaultOpts
	opts.Year, opts.Month = 2026, time.February

	report, err := Run(context.Background(), exps, ords, nil, opts)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"e1=o1"}, pairs(report)); diff != "" {
		t.Errorf("pairs mismatch (-want +got):\n%s", diff)
	}
	if len(report.UnmatchedOrders) != 1 || report.UnmatchedOrders[0].OrderID != "o3" {
		t.Errorf("unmatched orders = %+v, want only o3", report.UnmatchedOrders)
	}
}

func TestRun_MatchedAmountNetsRefunds(t *testing.T) {
	exps := []expense.Expense{exp("e1", "2026-03-02", "1200"), exp("e2", "2026-03-05", "-500")}
	ords := []orders.Order{ord("o1", "2026-03-02", "1200"), ord("o2", "2026-03-05", "500")}

	report, err := Run(context.Background(), exps, ords, nil, defaultOpts)
	if err != nil {
		t.Fatal(err)
	}
	if report.Summary.Matched != 2 {
		t.Fatalf("matched = %d, want 2", report.Summary.Matched)
	}
	if !report.Summary.MatchedAmount.Equal(decimal.NewFromInt(700)) {
		t.Errorf("MatchedAmount = %s, want 700", report.Summary.MatchedAmount)
	}
}

func TestRun_InvalidWindows(t *testing.T) {
	_, err := Run(context.Background(), nil, nil, nil, Options{DayWindow: 5, FallbackWindow: 2})
	if err == nil {
		t.Error("expected error when fallback window is smaller than day window")
	}
}

func TestRun_Ledger(t *testing.T) {
	l, err := ledger.Open(":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer l.Close()
	ctx := context.Background()

	exps := []expense.Expense{exp("e1", "2026-01-05", "500"), exp("e2", "2026-01-06", "700")}
	ords := []orders.Order{ord("o1", "2026-01-05", "500"), ord("o2", "2026-01-06", "700")}

	events := audit.NewLogger(t.TempDir())

	dry := defaultOpts
	dry.DryRun = true
	dry.Audit = events
	if _, err := Run(ctx, exps, ords, l, dry); err != nil {
		t.Fatal(err)
	}
	if stats, _ := l.Stats(ctx); stats.Matched != 0 {
		t.Fatalf("dry run wrote %d ledger entries", stats.Matched)
	}

	opts := defaultOpts
	opts.RunID = "run-1"
	opts.Audit = events
	first, err := Run(ctx, exps[:1], ords[:1], l, opts)
	if err != nil {
		t.Fatal(err)
	}
	if first.Summary.Matched != 1 {
		t.Fatalf("first run matched %d", first.Summary.Matched)
	}

	second, err := Run(ctx, exps, ords, l, opts)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]string{"e2=o2"}, pairs(second)); diff != "" {
		t.Errorf("second run matches (-want +got):\n%s", diff)
	}
	if second.Summary.LedgeredExpenses != 1 || second.Summary.LedgeredOrders != 1 {
		t.Errorf("ledgered counts = %+v", second.Summary)
	}

	entries, err := l.List(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 || entries[0].RunID != "run-1" {
		t.Errorf("ledger entries = %+v", entries)
	}

	logged, err := events.Events("run-1")
	if err != nil {
		t.Fatal(err)
	}
	var details []string
	for _, e := range logged {
		if e.Type != audit.EventLedgerWrite || e.Actor != "reconcile" {
			t.Errorf("unexpected event %+v", e)
		}
		details = append(details, e.Details)
	}
	want := []string{"e1 = amazon|o1 (500)", "e2 = amazon|o2 (700)"}
	if diff := cmp.Diff(want, details); diff != "" {
		t.Errorf("ledger events mismatch (-want +got):\n%s", diff)
	}
}

func TestRun_VerifyReceipts(t *testing.T) {
	o1 := ord("o1", "2026-01-05", "500")
	o1.PDFPath = "o1.pdf"
	o2 := ord("o2", "2026-01-05", "700")
	o2.PDFPath = "/abs/o2.pdf"
	o3 := ord("o3", "2026-01-05", "900")
	o3.PDFPath = "broken.pdf"

	var seen []string
	opts := defaultOpts
	opts.VerifyReceipts = true
	opts.ReceiptDir = "/receipts"
	opts.ReceiptTotal = func(path string) (decimal.Decimal, bool, error) {
		seen = append(seen, path)
		switch filepath.Base(path) {
		case "o1.pdf":
			return decimal.NewFromInt(500), true, nil
		case "o2.pdf":
			return decimal.NewFromInt(770), true, nil
		default:
			return decimal.Decimal{}, false, errors.New("corrupt")
		}
	}

	report, err := Run(context.Background(),
		[]expense.Expense{exp("e1", "2026-01-05", "500"), exp("e2", "2026-01-05", "700"), exp("e3", "2026-01-05", "900")},
		[]orders.Order{o1, o2, o3}, nil, opts)
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]string{"/receipts/o1.pdf", "/abs/o2.pdf", "/receipts/broken.pdf"}, seen); diff != "" {
		t.Errorf("receipt paths (-want +got):\n%s", diff)
	}

	byOrder := map[string]Match{}
	for _, m := range report.Matched {
		byOrder[m.Order.OrderID] = m
	}
	if m := byOrder["o1"]; m.ReceiptOK == nil || !*m.ReceiptOK {
		t.Errorf("o1 receipt = %+v", m.ReceiptOK)
	}
	if m := byOrder["o2"]; m.ReceiptOK == nil || *m.ReceiptOK || m.ReceiptTotal != "770" {
		t.Errorf("o2 receipt = %v / %q", m.ReceiptOK, m.ReceiptTotal)
	}
	if m := byOrder["o3"]; m.ReceiptOK != nil {
		t.Errorf("o3 receipt should be unchecked, got %v", *m.ReceiptOK)
	}
	if report.Summary.ReceiptMismatches != 1 {
		t.Errorf("ReceiptMismatches = %d", report.Summary.ReceiptMismatches)
	}
}

func TestReport_WriteFiles(t *testing.T) {
	fixed := time.Date(2026, 2, 1, 9, 0, 0, 0, parse.JST)
	opts := defaultOpts
	opts.Now = func() time.Time { return fixed }

	report, err := Run(context.Background(),
		[]expense.Expense{exp("e1", "2026-01-05", "500"), exp("e2", "2026-01-05", "1")},
		[]orders.Order{ord("o1", "2026-01-05", "500"), ord("o9", "2026-01-05", "2")}, nil, opts)
	if err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	if err := report.WriteFiles(dir, false); err != nil {
		t.Fatalf("WriteFiles() error = %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, JSONFile))
	if err != nil {
		t.Fatal(err)
	}
	var decoded struct {
		Matched           []json.RawMessage `json:"matched"`
		UnmatchedExpenses []json.RawMessage `json:"unmatched_expenses"`
		UnmatchedOrders   []json.RawMessage `json:"unmatched_orders"`
		Summary           Summary           `json:"summary"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid reconcile.json: %v", err)
	}
	if len(decoded.Matched) != 1 || len(decoded.UnmatchedExpenses) != 1 || len(decoded.UnmatchedOrders) != 1 {
		t.Errorf("reconcile.json sections = %d/%d/%d", len(decoded.Matched), len(decoded.UnmatchedExpenses), len(decoded.UnmatchedOrders))
	}
	if !decoded.Summary.MatchedAmount.Equal(decimal.NewFromInt(500)) {
		t.Errorf("MatchedAmount = %s", decoded.Summary.MatchedAmount)
	}

	csvData, err := os.ReadFile(filepath.Join(dir, CSVFile))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(csvData)), "\n")
	if len(lines) != 4 {
		t.Fatalf("reconcile.csv has %d lines, want 4:\n%s", len(lines), csvData)
	}
	if !strings.HasPrefix(lines[1], "matched,e1,2026-01-05") ||
		!strings.HasPrefix(lines[2], "unmatched_expense,e2") ||
		!strings.HasPrefix(lines[3], "unmatched_order,,,,,amazon,o9") {
		t.Errorf("unexpected csv rows:\n%s", csvData)
	}
}

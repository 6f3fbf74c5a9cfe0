package ledger

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func openTestLedger(t *testing.T) *Ledger {
	t.Helper()
	l, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func entry(orderKey, expenseID, amount string, at time.Time) Entry {
	return Entry{
		OrderKey:  orderKey,
		Source:    "amazon",
		ExpenseID: expenseID,
		Amount:    decimal.RequireFromString(amount),
		OrderDate: "2026-01-05",
		UseDate:   "2026-01-06",
		MatchedAt: at,
	}
}

func TestMigrationsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")

	l1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open failed: %v", err)
	}
	v1, err := l1.Versions()
	if err != nil {
		t.Fatal(err)
	}
	l1.Close()

	l2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open failed: %v", err)
	}
	defer l2.Close()
	v2, err := l2.Versions()
	if err != nil {
		t.Fatal(err)
	}

	if len(v1) != 2 || len(v2) != len(v1) {
		t.Errorf("versions = %v then %v", v1, v2)
	}
}

func TestRecordAndLookup(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	if err := l.Record(ctx, entry("amazon|A-1", "exp-1", "1980", time.Time{})); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	matched, err := l.IsExpenseMatched(ctx, "exp-1")
	if err != nil || !matched {
		t.Errorf("IsExpenseMatched(exp-1) = %v, %v", matched, err)
	}
	matched, err = l.IsOrderMatched(ctx, "amazon|A-1")
	if err != nil || !matched {
		t.Errorf("IsOrderMatched(amazon|A-1) = %v, %v", matched, err)
	}
	matched, _ = l.IsOrderMatched(ctx, "amazon|A-2")
	if matched {
		t.Error("IsOrderMatched(amazon|A-2) = true")
	}
}

func TestRecord_Duplicate(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()

	if err := l.Record(ctx, entry("amazon|A-1", "exp-1", "100", time.Time{})); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		e    Entry
	}{
		{"same order", entry("amazon|A-1", "exp-2", "100", time.Time{})},
		{"same expense", entry("amazon|A-9", "exp-1", "100", time.Time{})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := l.Record(ctx, tt.e)
			if !errors.Is(err, ErrAlreadyMatched) {
				t.Errorf("Record() error = %v, want ErrAlreadyMatched", err)
			}
		})
	}

	if err := l.Record(ctx, Entry{OrderKey: "x"}); err == nil {
		t.Error("expected error for entry without expense id")
	}
}

func TestListAndStats(t *testing.T) {
	l := openTestLedger(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	ok := true
	first := entry("amazon|A-1", "exp-1", "1980", base)
	first.ReceiptOK = &ok
	first.ReceiptTotal = "1980"
	second := entry("rakuten|R-1", "exp-2", "-300", base.Add(time.Hour))
	second.Source = "rakuten"
	second.Fallback = true

	for _, e := range []Entry{first, second} {
		if err := l.Record(ctx, e); err != nil {
			t.Fatal(err)
		}
	}

	list, err := l.List(ctx, 0)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(list) != 2 || list[0].OrderKey != "rakuten|R-1" {
		t.Fatalf("List() = %+v, want newest first", list)
	}
	if list[1].ReceiptOK == nil || !*list[1].ReceiptOK || list[0].ReceiptOK != nil {
		t.Errorf("ReceiptOK not round-tripped: %+v", list)
	}

	limited, err := l.List(ctx, 1)
	if err != nil || len(limited) != 1 {
		t.Errorf("List(1) = %d entries, %v", len(limited), err)
	}

	stats, err := l.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats() error = %v", err)
	}
	if stats.Matched != 2 || stats.Fallback != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
	if !stats.TotalAmount.Equal(decimal.NewFromInt(1680)) {
		t.Errorf("TotalAmount = %s, want 1680", stats.TotalAmount)
	}
	if stats.BySource["amazon"] != 1 || stats.BySource["rakuten"] != 1 {
		t.Errorf("BySource = %v", stats.BySource)
	}
	if stats.LastMatched == nil || !stats.LastMatched.Equal(base.Add(time.Hour)) {
		t.Errorf("LastMatched = %v", stats.LastMatched)
	}
}

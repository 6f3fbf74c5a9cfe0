package reconcile

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/firefly-engineering/skillctl/internal/audit"
	"github.com/firefly-engineering/skillctl/internal/expense"
	"github.com/firefly-engineering/skillctl/internal/ledger"
	"github.com/firefly-engineering/skillctl/internal/logging"
	"github.com/firefly-engineering/skillctl/internal/orders"
	"github.com/firefly-engineering/skillctl/internal/parse"
	"github.com/firefly-engineering/skillctl/internal/receipt"
)

// Store is the part of the ledger reconcile reads and writes.
type Store interface {
	IsExpenseMatched(ctx context.Context, expenseID string) (bool, error)
	IsOrderMatched(ctx context.Context, orderKey string) (bool, error)
	Record(ctx context.Context, e ledger.Entry) error
}

// TotalFunc reads the billed total from a receipt file.
type TotalFunc func(path string) (decimal.Decimal, bool, error)

// Options controls a reconcile run.
type Options struct {
	DayWindow      int
	FallbackWindow int
	DryRun         bool
	RunID          string

	// VerifyReceipts compares matched amounts against the order's PDF.
	// Relative pdf paths resolve against ReceiptDir.
	VerifyReceipts bool
	ReceiptDir     string
	ReceiptTotal   TotalFunc

	// Year and Month, when set, limit which orders are reported unmatched.
	// Orders outside the month still take part in matching.
	Year  int
	Month time.Month

	// Audit receives a ledger_write event per recorded pair, under RunID
	// or LedgerSubject when there is no run.
	Audit *audit.Logger

	Now func() time.Time
}

// Match is one reconciled pair.
type Match struct {
	Expense      expense.Expense `json:"expense"`
	Order        orders.Order    `json:"order"`
	DayDiff      int             `json:"day_diff"`
	Fallback     bool            `json:"fallback"`
	ReceiptTotal string          `json:"receipt_total,omitempty"`
	ReceiptOK    *bool           `json:"receipt_ok,omitempty"`
}

// Summary counts the outcome of a run.
type Summary struct {
	Expenses          int             `json:"expenses"`
	Orders            int             `json:"orders"`
	Matched           int             `json:"matched"`
	Fallback          int             `json:"fallback"`
	UnmatchedExpenses int             `json:"unmatched_expenses"`
	UnmatchedOrders   int             `json:"unmatched_orders"`
	LedgeredExpenses  int             `json:"ledgered_expenses"`
	LedgeredOrders    int             `json:"ledgered_orders"`
	ReceiptMismatches int             `json:"receipt_mismatches"`
	// MatchedAmount is the signed sum of matched expenses; refunds lower it,
	// as they do ledger.Stats.TotalAmount.
	MatchedAmount     decimal.Decimal `json:"matched_amount"`
	DryRun            bool            `json:"dry_run"`
}

// Report is the full result written to reconcile.json.
type Report struct {
	GeneratedAt       time.Time         `json:"generated_at"`
	RunID             string            `json:"run_id,omitempty"`
	Matched           []Match           `json:"matched"`
	UnmatchedExpenses []expense.Expense `json:"unmatched_expenses"`
	UnmatchedOrders   []orders.Order    `json:"unmatched_orders"`
	Summary           Summary           `json:"summary"`
}

// LedgerSubject is the audit subject for ledger writes outside a skill run.
const LedgerSubject = "ledger"

type candidate struct {
	e, o int
	diff int
}

// Run matches exps against ords. store may be nil, in which case nothing is
// skipped or recorded.
func Run(ctx context.Context, exps []expense.Expense, ords []orders.Order, store Store, opts Options) (*Report, error) {
	if opts.DayWindow < 0 || opts.FallbackWindow < opts.DayWindow {
		return nil, fmt.Errorf("invalid windows: day=%d fallback=%d", opts.DayWindow, opts.FallbackWindow)
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReceiptTotal == nil {
		opts.ReceiptTotal = receipt.TotalFromFile
	}

	report := &Report{
		GeneratedAt:       opts.Now(),
		RunID:             opts.RunID,
		Matched:           []Match{},
		UnmatchedExpenses: []expense.Expense{},
		UnmatchedOrders:   []orders.Order{},
		Summary: Summary{
			Expenses:      len(exps),
			Orders:        len(ords),
			MatchedAmount: decimal.Zero,
			DryRun:        opts.DryRun,
		},
	}

	expUsed := make([]bool, len(exps))
	ordUsed := make([]bool, len(ords))
	if store != nil {
		for i, e := range exps {
			done, err := store.IsExpenseMatched(ctx, e.ExpenseID)
			if err != nil {
				return nil, fmt.Errorf("ledger lookup: %w", err)
			}
			if done {
				expUsed[i] = true
				report.Summary.LedgeredExpenses++
			}
		}
		for i, o := range ords {
			done, err := store.IsOrderMatched(ctx, o.Key())
			if err != nil {
				return nil, fmt.Errorf("ledger lookup: %w", err)
			}
			if done {
				ordUsed[i] = true
				report.Summary.LedgeredOrders++
			}
		}
	}

	for _, pass := range []struct {
		window   int
		fallback bool
	}{
		{opts.DayWindow, false},
		{opts.FallbackWindow, true},
	} {
		for _, c := range candidates(exps, ords, expUsed, ordUsed, pass.window) {
			if expUsed[c.e] || ordUsed[c.o] {
				continue
			}
			expUsed[c.e], ordUsed[c.o] = true, true
			report.Matched = append(report.Matched, Match{
				Expense:  exps[c.e],
				Order:    ords[c.o],
				DayDiff:  c.diff,
				Fallback: pass.fallback,
			})
		}
	}

	sort.SliceStable(report.Matched, func(i, j int) bool {
		return lessExpense(report.Matched[i].Expense, report.Matched[j].Expense)
	})

	for i := range report.Matched {
		m := &report.Matched[i]
		if opts.VerifyReceipts {
			verifyReceipt(m, opts)
			if m.ReceiptOK != nil && !*m.ReceiptOK {
				report.Summary.ReceiptMismatches++
			}
		}
		report.Summary.Matched++
		if m.Fallback {
			report.Summary.Fallback++
		}
		report.Summary.MatchedAmount = report.Summary.MatchedAmount.Add(m.Expense.Amount)
	}

	for i, e := range exps {
		if !expUsed[i] {
			report.UnmatchedExpenses = append(report.UnmatchedExpenses, e)
		}
	}
	for i, o := range ords {
		if opts.Month != 0 && !parse.InMonth(o.Date.Time, opts.Year, opts.Month) {
			continue
		}
		if !ordUsed[i] {
			report.UnmatchedOrders = append(report.UnmatchedOrders, o)
		}
	}
	report.Summary.UnmatchedExpenses = len(report.UnmatchedExpenses)
	report.Summary.UnmatchedOrders = len(report.UnmatchedOrders)

	if !opts.DryRun && store != nil {
		if err := record(ctx, store, report, opts); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// candidates returns every open pair within window, best first.
func candidates(exps []expense.Expense, ords []orders.Order, expUsed, ordUsed []bool, window int) []candidate {
	var out []candidate
	for i, e := range exps {
		if expUsed[i] {
			continue
		}
		amount := e.Amount.Abs()
		for j, o := range ords {
			if ordUsed[j] || !o.Amount.Abs().Equal(amount) {
				continue
			}
			diff := parse.DaysBetween(e.UseDate.Time, o.Date.Time)
			if diff <= window {
				out = append(out, candidate{e: i, o: j, diff: diff})
			}
		}
	}

	sort.SliceStable(out, func(a, b int) bool {
		ca, cb := out[a], out[b]
		if ca.diff != cb.diff {
			return ca.diff < cb.diff
		}
		if ca.e != cb.e {
			ea, eb := exps[ca.e], exps[cb.e]
			if lessExpense(ea, eb) {
				return true
			}
			if lessExpense(eb, ea) {
				return false
			}
		}
		oa, ob := ords[ca.o], ords[cb.o]
		if oa.OrderID != ob.OrderID {
			return oa.OrderID < ob.OrderID
		}
		return oa.Key() < ob.Key()
	})
	return out
}

func lessExpense(a, b expense.Expense) bool {
	if !a.UseDate.Equal(b.UseDate.Time) {
		return a.UseDate.Before(b.UseDate.Time)
	}
	return a.ExpenseID < b.ExpenseID
}

func verifyReceipt(m *Match, opts Options) {
	path := m.Order.PDFPath
	if path == "" {
		return
	}
	if !filepath.IsAbs(path) && opts.ReceiptDir != "" {
		path = filepath.Join(opts.ReceiptDir, path)
	}

	total, found, err := opts.ReceiptTotal(path)
	if err != nil {
		logging.Warn("receipt unreadable", "order", m.Order.Key(), "path", path, "error", err)
		return
	}
	ok := found && total.Abs().Equal(m.Order.Amount.Abs())
	if found {
		m.ReceiptTotal = total.String()
	}
	m.ReceiptOK = &ok
}

func record(ctx context.Context, store Store, report *Report, opts Options) error {
	for _, m := range report.Matched {
		err := store.Record(ctx, ledger.Entry{
			OrderKey:     m.Order.Key(),
			Source:       m.Order.Source,
			OrderID:      m.Order.OrderID,
			ExpenseID:    m.Expense.ExpenseID,
			Amount:       m.Expense.Amount,
			OrderDate:    m.Order.Date.String(),
			UseDate:      m.Expense.UseDate.String(),
			Fallback:     m.Fallback,
			MatchedAt:    report.GeneratedAt,
			RunID:        opts.RunID,
			ReceiptTotal: m.ReceiptTotal,
			ReceiptOK:    m.ReceiptOK,
		})
		if errors.Is(err, ledger.ErrAlreadyMatched) {
			logging.Warn("pair already in ledger", "order", m.Order.Key(), "expense", m.Expense.ExpenseID)
			continue
		}
		if err != nil {
			return fmt.Errorf("recording match: %w", err)
		}
		logLedgerWrite(m, opts)
	}
	return nil
}

func logLedgerWrite(m Match, opts Options) {
	if opts.Audit == nil {
		return
	}
	subject := opts.RunID
	if subject == "" {
		subject = LedgerSubject
	}
	details := fmt.Sprintf("%s = %s (%s)", m.Expense.ExpenseID, m.Order.Key(), m.Expense.Amount.String())
	if err := opts.Audit.LogEvent(audit.EventLedgerWrite, subject, "reconcile", details); err != nil {
		logging.Warn("failed to write ledger event", "subject", subject, "error", err)
	}
}

// Package expense loads card and bank statement lines exported from the
// expense service.
package expense

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/firefly-engineering/skillctl/internal/csvio"
	"github.com/firefly-engineering/skillctl/internal/parse"
)

// Expense is one statement line awaiting a receipt.
type Expense struct {
	ExpenseID  string          `json:"expense_id"`
	UseDate    parse.Date      `json:"use_date"`
	Amount     decimal.Decimal `json:"amount"`
	Vendor     string          `json:"vendor"`
	Memo       string          `json:"memo,omitempty"`
	HasReceipt bool            `json:"has_receipt"`
}

// Row renders the expense with canonical column names.
func (e Expense) Row() map[string]string {
	receipt := "false"
	if e.HasReceipt {
		receipt = "true"
	}
	return map[string]string{
		"expense_id":  e.ExpenseID,
		"use_date":    e.UseDate.String(),
		"amount":      e.Amount.String(),
		"vendor":      e.Vendor,
		"memo":        e.Memo,
		"has_receipt": receipt,
	}
}

// Columns is the CSV column order for Row.
var Columns = []string{"expense_id", "use_date", "amount", "vendor", "memo", "has_receipt"}

var receiptMarks = map[string]bool{
	"1": true, "true": true, "yes": true, "y": true,
	"有": true, "あり": true, "済": true, "添付済": true, "○": true, "◯": true,
}

// FromRow builds an Expense from a normalized row. Rows without an
// expense_id get a stable synthetic id derived from date, amount and vendor.
func FromRow(row map[string]string) (Expense, error) {
	e := Expense{
		ExpenseID: row["expense_id"],
		Vendor:    row["vendor"],
		Memo:      row["memo"],
	}

	date, err := parse.ParseDate(firstNonEmpty(row["use_date"], row["date"]))
	if err != nil {
		return Expense{}, err
	}
	e.UseDate = parse.NewDate(date)

	amount, err := parse.ParseAmount(row["amount"])
	if err != nil {
		return Expense{}, err
	}
	e.Amount = amount

	e.HasReceipt = receiptMarks[strings.ToLower(strings.TrimSpace(row["receipt"]))] ||
		receiptMarks[strings.ToLower(strings.TrimSpace(row["has_receipt"]))]

	return e, nil
}

// Load reads expenses from a CSV, JSON or JSONL export.
func Load(path string) ([]Expense, error) {
	rows, _, err := csvio.ReadRecords(path)
	if err != nil {
		return nil, err
	}

	out := make([]Expense, 0, len(rows))
	seen := make(map[string]int)
	for i, row := range rows {
		e, err := FromRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s: record %d: %w", path, i+1, err)
		}
		if e.ExpenseID == "" {
			e.ExpenseID = syntheticID(e, seen)
		}
		out = append(out, e)
	}
	return out, nil
}

// syntheticID hashes the identifying fields; identical lines get an
// occurrence suffix so each keeps its own id.
func syntheticID(e Expense, seen map[string]int) string {
	base := e.UseDate.String() + "|" + e.Amount.String() + "|" + e.Vendor
	n := seen[base]
	seen[base] = n + 1

	sum := sha1.Sum([]byte(fmt.Sprintf("%s|%d", base, n)))
	return "exp-" + hex.EncodeToString(sum[:])[:12]
}

// FilterMonth keeps expenses used in the given month.
func FilterMonth(in []Expense, year int, month time.Month) []Expense {
	var out []Expense
	for _, e := range in {
		if parse.InMonth(e.UseDate.Time, year, month) {
			out = append(out, e)
		}
	}
	return out
}

// NeedsReceipt keeps expenses that have no receipt attached yet.
func NeedsReceipt(in []Expense) []Expense {
	var out []Expense
	for _, e := range in {
		if !e.HasReceipt {
			out = append(out, e)
		}
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

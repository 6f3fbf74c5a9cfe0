package reconcile

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/firefly-engineering/skillctl/internal/csvio"
)

const (
	JSONFile = "reconcile.json"
	CSVFile  = "reconcile.csv"
)

// CSVColumns is the column order of reconcile.csv.
var CSVColumns = []string{
	"status", "expense_id", "use_date", "vendor", "expense_amount",
	"source", "order_id", "order_date", "order_amount", "day_diff", "fallback", "receipt_ok",
}

// Rows flattens the report into reconcile.csv rows: matches first, then
// unmatched expenses, then unmatched orders.
func (r *Report) Rows() []map[string]string {
	rows := make([]map[string]string, 0, len(r.Matched)+len(r.UnmatchedExpenses)+len(r.UnmatchedOrders))

	for _, m := range r.Matched {
		row := map[string]string{
			"status":         "matched",
			"expense_id":     m.Expense.ExpenseID,
			"use_date":       m.Expense.UseDate.String(),
			"vendor":         m.Expense.Vendor,
			"expense_amount": m.Expense.Amount.String(),
			"source":         m.Order.Source,
			"order_id":       m.Order.OrderID,
			"order_date":     m.Order.Date.String(),
			"order_amount":   m.Order.Amount.String(),
			"day_diff":       strconv.Itoa(m.DayDiff),
			"fallback":       strconv.FormatBool(m.Fallback),
		}
		if m.ReceiptOK != nil {
			row["receipt_ok"] = strconv.FormatBool(*m.ReceiptOK)
		}
		rows = append(rows, row)
	}
	for _, e := range r.UnmatchedExpenses {
		rows = append(rows, map[string]string{
			"status":         "unmatched_expense",
			"expense_id":     e.ExpenseID,
			"use_date":       e.UseDate.String(),
			"vendor":         e.Vendor,
			"expense_amount": e.Amount.String(),
		})
	}
	for _, o := range r.UnmatchedOrders {
		rows = append(rows, map[string]string{
			"status":       "unmatched_order",
			"source":       o.Source,
			"order_id":     o.OrderID,
			"order_date":   o.Date.String(),
			"order_amount": o.Amount.String(),
		})
	}
	return rows
}

// WriteFiles writes reconcile.json and reconcile.csv into dir.
func (r *Report) WriteFiles(dir string, bom bool) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, JSONFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", JSONFile, err)
	}

	return csvio.WriteFile(filepath.Join(dir, CSVFile), CSVColumns, r.Rows(), bom)
}

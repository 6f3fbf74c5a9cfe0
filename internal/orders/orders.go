// Package orders models purchase-history rows scraped from shopping sites
// and collapses duplicate exports of the same order.
package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/firefly-engineering/skillctl/internal/csvio"
	"github.com/firefly-engineering/skillctl/internal/parse"
)

// Order is one purchase on a shopping site.
type Order struct {
	Source  string          `json:"source"`
	OrderID string          `json:"order_id,omitempty"`
	Date    parse.Date      `json:"date"`
	Amount  decimal.Decimal `json:"amount"`
	PDFPath string          `json:"pdf_path,omitempty"`
	Item    string          `json:"item,omitempty"`
}

// Key identifies an order for deduplication and the ledger. Orders without
// an id fall back to (source, date, amount).
func (o Order) Key() string {
	if o.OrderID != "" {
		return o.Source + "|" + o.OrderID
	}
	return o.Source + "|" + o.Date.String() + "|" + o.Amount.String()
}

// Row renders the order with canonical column names.
func (o Order) Row() map[string]string {
	return map[string]string{
		"source":   o.Source,
		"order_id": o.OrderID,
		"date":     o.Date.String(),
		"amount":   o.Amount.String(),
		"pdf_path": o.PDFPath,
		"item":     o.Item,
	}
}

// Columns is the CSV column order for Row.
var Columns = []string{"source", "order_id", "date", "amount", "item", "pdf_path"}

// FromRow builds an Order from a normalized row. defaultSource is used when
// the row has no source column.
func FromRow(row map[string]string, defaultSource string) (Order, error) {
	o := Order{
		Source:  row["source"],
		OrderID: row["order_id"],
		PDFPath: row["pdf_path"],
		Item:    row["item"],
	}
	if o.Source == "" {
		o.Source = defaultSource
	}

	rawDate := firstNonEmpty(row["order_date"], row["date"])
	date, err := parse.ParseDate(rawDate)
	if err != nil {
		return Order{}, fmt.Errorf("order %q: %w", o.OrderID, err)
	}
	o.Date = parse.NewDate(date)

	amount, err := parse.ParseAmount(row["amount"])
	if err != nil {
		return Order{}, fmt.Errorf("order %q: %w", o.OrderID, err)
	}
	o.Amount = amount

	return o, nil
}

// Load reads orders from a JSON array, JSONL or CSV file.
func Load(path, defaultSource string) ([]Order, error) {
	rows, _, err := csvio.ReadRecords(path)
	if err != nil {
		return nil, err
	}

	out := make([]Order, 0, len(rows))
	for i, row := range rows {
		o, err := FromRow(row, defaultSource)
		if err != nil {
			return nil, fmt.Errorf("%s: record %d: %w", path, i+1, err)
		}
		out = append(out, o)
	}
	return out, nil
}

// Dedupe collapses orders sharing a Key. The survivor has the latest date;
// on equal dates a row with a pdf path wins, otherwise the first seen.
// Output keeps first-appearance order of keys.
func Dedupe(in []Order) []Order {
	index := make(map[string]int, len(in))
	out := make([]Order, 0, len(in))

	for _, o := range in {
		key := o.Key()
		i, seen := index[key]
		if !seen {
			index[key] = len(out)
			out = append(out, o)
			continue
		}
		if preferred(o, out[i]) {
			out[i] = o
		}
	}
	return out
}

func preferred(candidate, current Order) bool {
	if candidate.Date.After(current.Date.Time) {
		return true
	}
	if candidate.Date.Equal(current.Date.Time) {
		return candidate.PDFPath != "" && current.PDFPath == ""
	}
	return false
}

// FilterMonth keeps orders dated in the given month.
func FilterMonth(in []Order, year int, month time.Month) []Order {
	var out []Order
	for _, o := range in {
		if parse.InMonth(o.Date.Time, year, month) {
			out = append(out, o)
		}
	}
	return out
}

// FilterNearMonth keeps orders dated in the given month or within days of
// its first or last day.
func FilterNearMonth(in []Order, year int, month time.Month, days int) []Order {
	first := time.Date(year, month, 1, 0, 0, 0, 0, parse.JST)
	last := first.AddDate(0, 1, -1)

	var out []Order
	for _, o := range in {
		t := o.Date.In(parse.JST)
		switch {
		case parse.InMonth(t, year, month):
		case t.Before(first) && parse.DaysBetween(t, first) <= days:
		case t.After(last) && parse.DaysBetween(t, last) <= days:
		default:
			continue
		}
		out = append(out, o)
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

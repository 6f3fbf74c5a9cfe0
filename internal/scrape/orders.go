package scrape

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/firefly-engineering/skillctl/internal/logging"
	"github.com/firefly-engineering/skillctl/internal/orders"
	"github.com/firefly-engineering/skillctl/internal/parse"
)

// Fetcher returns the HTML of a page.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// OrdersFromTables converts rows of tables that carry an amount and a date
// column into orders. Rows that fail to parse are skipped.
func OrdersFromTables(tables []Table, source string) []orders.Order {
	var out []orders.Order
	for _, t := range tables {
		if !hasAny(t.Headers, "amount") || !hasAny(t.Headers, "order_date", "date") {
			continue
		}
		for _, row := range t.Rows {
			o, err := orders.FromRow(row, source)
			if err != nil {
				logging.Debug("skipping table row", "source", source, "error", err)
				continue
			}
			out = append(out, o)
		}
	}
	return out
}

// ExpandURL substitutes {date} (YYYY-MM-DD), {yyyymmdd}, {year} and {month}
// in a URL template.
func ExpandURL(tmpl string, date time.Time) string {
	date = date.In(parse.JST)
	return strings.NewReplacer(
		"{date}", date.Format(parse.DateLayout),
		"{yyyymmdd}", date.Format("20060102"),
		"{year}", date.Format("2006"),
		"{month}", date.Format("01"),
	).Replace(tmpl)
}

// SearchResult reports which day produced orders.
type SearchResult struct {
	Orders   []orders.Order `json:"orders"`
	Date     parse.Date     `json:"date"`
	Offset   int            `json:"offset"`
	URL      string         `json:"url"`
	Attempts int            `json:"attempts"`
}

// FindOrders fetches the page for date, then date-1, date+1, date-2 ... up
// to fallbackDays away, returning the first page that yields orders. Fetch
// errors on individual days are logged and the search continues; if every
// attempt fails the last error is returned.
func FindOrders(ctx context.Context, f Fetcher, tmpl string, date time.Time, fallbackDays int, source string) (*SearchResult, error) {
	var lastErr error
	attempts := 0
	fetched := false

	for _, offset := range searchOffsets(fallbackDays) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		day := date.AddDate(0, 0, offset)
		url := ExpandURL(tmpl, day)
		attempts++

		page, err := f.Fetch(ctx, url)
		if err != nil {
			logging.Debug("fetch failed", "url", url, "error", err)
			lastErr = err
			continue
		}

		tables, err := ParseTablesString(page)
		if err != nil {
			lastErr = err
			continue
		}
		fetched = true
		found := OrdersFromTables(tables, source)
		if len(found) > 0 {
			return &SearchResult{Orders: found, Date: parse.NewDate(day), Offset: offset, URL: url, Attempts: attempts}, nil
		}
	}

	if !fetched && lastErr != nil {
		return nil, fmt.Errorf("no orders found within %d days of %s: %w", fallbackDays, parse.FormatDate(date), lastErr)
	}
	return &SearchResult{Orders: []orders.Order{}, Date: parse.NewDate(date), Attempts: attempts}, nil
}

// searchOffsets returns 0, -1, 1, -2, 2 ... -n, n.
func searchOffsets(n int) []int {
	out := []int{0}
	for i := 1; i <= n; i++ {
		out = append(out, -i, i)
	}
	return out
}

func hasAny(headers []string, names ...string) bool {
	for _, h := range headers {
		for _, n := range names {
			if h == n {
				return true
			}
		}
	}
	return false
}

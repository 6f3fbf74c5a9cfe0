// Package gasprice summarises fuel prices scraped from a station price
// table.
package gasprice

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/firefly-engineering/skillctl/internal/parse"
	"github.com/firefly-engineering/skillctl/internal/scrape"
)

// fuelNames maps normalized column or cell labels to fuel types.
var fuelNames = map[string]string{
	"regular":     "regular",
	"レギュラー":       "regular",
	"premium":     "premium",
	"high_octane": "premium",
	"ハイオク":        "premium",
	"diesel":      "diesel",
	"軽油":          "diesel",
	"kerosene":    "kerosene",
	"灯油":          "kerosene",
}

var (
	regionColumns  = []string{"region", "地域", "都道府県", "エリア", "prefecture"}
	stationColumns = []string{"station", "店舗", "店舗名", "スタンド", "name"}
	fuelColumns    = []string{"fuel", "油種", "燃料"}
	priceColumns   = []string{"price", "価格", "amount"}
)

// Quote is one station's price for one fuel.
type Quote struct {
	Station string
	Region  string
	Fuel    string
	Price   decimal.Decimal
}

// FuelSummary aggregates quotes for one fuel type.
type FuelSummary struct {
	Fuel       string          `json:"fuel"`
	Stations   int             `json:"stations"`
	Min        decimal.Decimal `json:"min"`
	Avg        decimal.Decimal `json:"avg"`
	Max        decimal.Decimal `json:"max"`
	MinStation string          `json:"min_station,omitempty"`
}

// Summary is the gasprice skill output.
type Summary struct {
	Region    string        `json:"region,omitempty"`
	SourceURL string        `json:"source_url"`
	FetchedAt time.Time     `json:"fetched_at"`
	Fuels     []FuelSummary `json:"fuels"`
}

// Extract reads quotes from price tables. Two layouts are understood: one
// column per fuel type, or a fuel column plus a price column. Cells that are
// not prices ("-", "休業") are skipped.
func Extract(tables []scrape.Table) []Quote {
	var quotes []Quote
	for _, t := range tables {
		regionCol := find(t.Headers, regionColumns)
		stationCol := find(t.Headers, stationColumns)

		fuelCol := find(t.Headers, fuelColumns)
		priceCol := find(t.Headers, priceColumns)
		if fuelCol != "" && priceCol != "" {
			for _, row := range t.Rows {
				fuel, ok := fuelNames[parse.NormalizeHeader(row[fuelCol])]
				if !ok {
					continue
				}
				if price, ok := parsePrice(row[priceCol]); ok {
					quotes = append(quotes, Quote{Station: row[stationCol], Region: row[regionCol], Fuel: fuel, Price: price})
				}
			}
			continue
		}

		for _, h := range t.Headers {
			fuel, ok := fuelNames[h]
			if !ok {
				continue
			}
			for _, row := range t.Rows {
				if price, ok := parsePrice(row[h]); ok {
					quotes = append(quotes, Quote{Station: row[stationCol], Region: row[regionCol], Fuel: fuel, Price: price})
				}
			}
		}
	}
	return quotes
}

// Summarize groups quotes by fuel, keeping only those whose region contains
// region when region is set. A table without a region column is taken to
// be region-specific already and is not filtered. Fuels are ordered regular, premium, diesel,
// kerosene. Averages are rounded to one decimal place.
func Summarize(quotes []Quote, region string) []FuelSummary {
	type acc struct {
		summary FuelSummary
		total   decimal.Decimal
	}
	byFuel := make(map[string]*acc)

	hasRegion := false
	for _, q := range quotes {
		if q.Region != "" {
			hasRegion = true
			break
		}
	}

	for _, q := range quotes {
		if region != "" && hasRegion && !strings.Contains(q.Region, region) {
			continue
		}
		a, ok := byFuel[q.Fuel]
		if !ok {
			a = &acc{summary: FuelSummary{Fuel: q.Fuel, Min: q.Price, Max: q.Price, MinStation: q.Station}, total: decimal.Zero}
			byFuel[q.Fuel] = a
		}
		a.summary.Stations++
		a.total = a.total.Add(q.Price)
		if q.Price.LessThan(a.summary.Min) {
			a.summary.Min = q.Price
			a.summary.MinStation = q.Station
		}
		if q.Price.GreaterThan(a.summary.Max) {
			a.summary.Max = q.Price
		}
	}

	out := make([]FuelSummary, 0, len(byFuel))
	for _, a := range byFuel {
		a.summary.Avg = a.total.Div(decimal.NewFromInt(int64(a.summary.Stations))).Round(1)
		out = append(out, a.summary)
	}
	sort.Slice(out, func(i, j int) bool {
		return fuelRank(out[i].Fuel) < fuelRank(out[j].Fuel)
	})
	return out
}

// Lookup fetches url, extracts quotes and summarises them for region.
func Lookup(ctx context.Context, f scrape.Fetcher, url, region string) (*Summary, error) {
	page, err := f.Fetch(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetching price table: %w", err)
	}
	tables, err := scrape.ParseTablesString(page)
	if err != nil {
		return nil, err
	}

	quotes := Extract(tables)
	if len(quotes) == 0 {
		return nil, fmt.Errorf("no fuel prices found at %s", url)
	}
	fuels := Summarize(quotes, region)
	if len(fuels) == 0 {
		return nil, fmt.Errorf("no fuel prices for region %q", region)
	}

	return &Summary{
		Region:    region,
		SourceURL: url,
		FetchedAt: time.Now(),
		Fuels:     fuels,
	}, nil
}

func parsePrice(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(parse.FoldWidth(s))
	for _, suffix := range []string{"/L", "/l", "/ℓ"} {
		s = strings.TrimSuffix(s, suffix)
	}
	d, err := parse.ParseAmount(s)
	if err != nil || !d.IsPositive() {
		return decimal.Decimal{}, false
	}
	return d, true
}

func find(headers, names []string) string {
	for _, n := range names {
		for _, h := range headers {
			if h == n {
				return h
			}
		}
	}
	return ""
}

func fuelRank(fuel string) int {
	switch fuel {
	case "regular":
		return 0
	case "premium":
		return 1
	case "diesel":
		return 2
	default:
		return 3
	}
}

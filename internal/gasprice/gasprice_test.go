package gasprice

import (
	"context"
	"errors"
	"testing"

	"github.com/firefly-engineering/skillctl/internal/scrape"
)

const widePage = `<table>
<tr><th>店舗名</th><th>都道府県</th><th>レギュラー</th><th>ハイオク</th><th>軽油</th></tr>
<tr><td>A石油</td><td>東京都</td><td>168.0円/L</td><td>179.0</td><td>-</td></tr>
<tr><td>B石油</td><td>東京都</td><td>165.0</td><td>176.0</td><td>148.0</td></tr>
<tr><td>C石油</td><td>神奈川県</td><td>160.0</td><td>171.0</td><td>145.0</td></tr>
</table>`

const longPage = `<table>
<tr><th>Station</th><th>Fuel</th><th>Price</th></tr>
<tr><td>X</td><td>Regular</td><td>170</td></tr>
<tr><td>Y</td><td>Regular</td><td>171</td></tr>
<tr><td>Y</td><td>High-Octane</td><td>182</td></tr>
<tr><td>Z</td><td>Unknown</td><td>1</td></tr>
</table>`

func mustTables(t *testing.T, page string) []scrape.Table {
	t.Helper()
	tables, err := scrape.ParseTablesString(page)
	if err != nil {
		t.Fatal(err)
	}
	return tables
}

func TestExtract_Wide(t *testing.T) {
	quotes := Extract(mustTables(t, widePage))
	if len(quotes) != 8 {
		t.Fatalf("Extract() = %d quotes, want 8", len(quotes))
	}
	if quotes[0].Station != "A石油" || quotes[0].Region != "東京都" || quotes[0].Fuel != "regular" || quotes[0].Price.String() != "168" {
		t.Errorf("quotes[0] = %+v", quotes[0])
	}
}

func TestExtract_Long(t *testing.T) {
	quotes := Extract(mustTables(t, longPage))
	if len(quotes) != 3 {
		t.Fatalf("Extract() = %d quotes, want 3", len(quotes))
	}
	if quotes[2].Fuel != "premium" || quotes[2].Station != "Y" {
		t.Errorf("quotes[2] = %+v", quotes[2])
	}
}

func TestSummarize(t *testing.T) {
	quotes := Extract(mustTables(t, widePage))

	tests := []struct {
		name    string
		region  string
		fuels   []string
		regular [3]string
		cheap   string
	}{
		{"all regions", "", []string{"regular", "premium", "diesel"}, [3]string{"160", "164.3", "168"}, "C石油"},
		{"tokyo", "東京", []string{"regular", "premium", "diesel"}, [3]string{"165", "166.5", "168"}, "B石油"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Summarize(quotes, tt.region)
			if len(got) != len(tt.fuels) {
				t.Fatalf("Summarize() = %+v", got)
			}
			for i, f := range tt.fuels {
				if got[i].Fuel != f {
					t.Errorf("fuel[%d] = %q, want %q", i, got[i].Fuel, f)
				}
			}
			r := got[0]
			if r.Min.String() != tt.regular[0] || r.Avg.String() != tt.regular[1] || r.Max.String() != tt.regular[2] {
				t.Errorf("regular = %s/%s/%s, want %v", r.Min, r.Avg, r.Max, tt.regular)
			}
			if r.MinStation != tt.cheap {
				t.Errorf("MinStation = %q, want %q", r.MinStation, tt.cheap)
			}
		})
	}
}

func TestSummarize_NoRegionColumn(t *testing.T) {
	got := Summarize(Extract(mustTables(t, longPage)), "東京")
	if len(got) != 2 || got[0].Stations != 2 {
		t.Errorf("Summarize() = %+v", got)
	}
}

type pageFetcher struct {
	page string
	err  error
}

func (f pageFetcher) Fetch(ctx context.Context, url string) (string, error) {
	return f.page, f.err
}

func TestLookup(t *testing.T) {
	s, err := Lookup(context.Background(), pageFetcher{page: widePage}, "https://prices.example/tokyo", "東京")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if s.SourceURL != "https://prices.example/tokyo" || len(s.Fuels) != 3 || s.FetchedAt.IsZero() {
		t.Errorf("summary = %+v", s)
	}

	if _, err := Lookup(context.Background(), pageFetcher{page: "<p>closed</p>"}, "u", ""); err == nil {
		t.Error("expected error for page without prices")
	}
	if _, err := Lookup(context.Background(), pageFetcher{page: widePage}, "u", "大阪"); err == nil {
		t.Error("expected error for region without prices")
	}
	if _, err := Lookup(context.Background(), pageFetcher{err: errors.New("offline")}, "u", ""); err == nil {
		t.Error("expected fetch error")
	}
}

package cmd

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/csvio"
	"github.com/firefly-engineering/skillctl/internal/errors"
	"github.com/firefly-engineering/skillctl/internal/orders"
	"github.com/firefly-engineering/skillctl/internal/scrape"
)

var ordersCmd = &cobra.Command{
	Use:   "orders",
	Short: "Clean up and collect order rows",
}

var ordersDedupeCmd = &cobra.Command{
	Use:   "dedupe <file>",
	Short: "Collapse duplicate order rows",
	Long: `Reads order rows (CSV, JSON or JSONL) and keeps one row per order. The
row with the latest date wins, then the one that has a pdf path.`,
	Args: cobra.ExactArgs(1),
	RunE: runOrdersDedupe,
}

var ordersScrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Scrape order rows from an order-history page",
	Long: `Fetches an order-history page for --date and reads order rows from its
tables. The URL template may contain {date}, {yyyymmdd}, {year} and {month}.

When the date yields nothing the search widens one day at a time up to
--fallback-days. --browser renders the page with a headless browser.`,
	Args: cobra.NoArgs,
	RunE: runOrdersScrape,
}

var (
	ordersSource       string
	ordersOut          string
	ordersMonth        string
	ordersURL          string
	ordersDate         string
	ordersFallbackDays int
	ordersBrowser      bool
)

func init() {
	ordersCmd.PersistentFlags().StringVar(&ordersSource, "source", "", "Source name for rows without one (e.g. amazon)")
	ordersCmd.PersistentFlags().StringVarP(&ordersOut, "out", "o", "", "Output file (.csv, .json or .jsonl; default JSON on stdout)")

	ordersDedupeCmd.Flags().StringVar(&ordersMonth, "month", "", "Only keep orders in this month (YYYY-MM)")

	ordersScrapeCmd.Flags().StringVar(&ordersURL, "url", "", "Order-history URL template")
	ordersScrapeCmd.Flags().StringVar(&ordersDate, "date", "", "Order date to look for (default today)")
	ordersScrapeCmd.Flags().IntVar(&ordersFallbackDays, "fallback-days", 3, "Widen the search by up to this many days")
	ordersScrapeCmd.Flags().BoolVar(&ordersBrowser, "browser", false, "Render with a headless browser")
	_ = ordersScrapeCmd.MarkFlagRequired("url")

	ordersCmd.AddCommand(ordersDedupeCmd, ordersScrapeCmd)
	rootCmd.AddCommand(ordersCmd)
}

func runOrdersDedupe(cmd *cobra.Command, args []string) error {
	in, err := orders.Load(args[0], ordersSource)
	if err != nil {
		return errors.ParseError("failed to load orders", err)
	}
	out := orders.Dedupe(in)
	if ordersMonth != "" {
		year, month, err := parseMonth(ordersMonth)
		if err != nil {
			return err
		}
		out = orders.FilterMonth(out, year, month)
	}

	if err := writeOrders(cmd, out); err != nil {
		return err
	}
	if ordersOut != "" {
		logSuccess("Kept %d of %d rows in %s", len(out), len(in), ordersOut)
	}
	return nil
}

func runOrdersScrape(cmd *cobra.Command, args []string) error {
	date := time.Now()
	if ordersDate != "" {
		d, err := parseDay(ordersDate)
		if err != nil {
			return err
		}
		date = d
	}

	fetcher, closeFetcher := newFetcher(ordersBrowser)
	defer closeFetcher()

	res, err := scrape.FindOrders(cmd.Context(), fetcher, ordersURL, date, ordersFallbackDays, ordersSource)
	if err != nil {
		return errors.RemoteError("order page", err)
	}
	if len(res.Orders) == 0 {
		logWarning("No orders found within %d days of %s after %d attempts", ordersFallbackDays, date.Format("2006-01-02"), res.Attempts)
	} else if res.Offset != 0 {
		logInfo("Found %d orders on %s (offset %+d days)", len(res.Orders), res.Date, res.Offset)
	}

	return writeOrders(cmd, res.Orders)
}

// newFetcher returns the page fetcher for scraping skills and a func that
// releases it.
func newFetcher(browser bool) (scrape.Fetcher, func()) {
	timeout := cfg().Browser.Timeout.Duration
	if !browser {
		return scrape.NewHTTPFetcher(timeout), func() {}
	}
	rf := scrape.NewRodFetcher(cfg().Browser.Headless, timeout)
	return rf, func() { _ = rf.Close() }
}

func writeOrders(cmd *cobra.Command, list []orders.Order) error {
	if list == nil {
		list = []orders.Order{}
	}
	switch strings.ToLower(filepath.Ext(ordersOut)) {
	case "":
		return printJSON(cmd.OutOrStdout(), list)
	case ".csv":
		rows := make([]map[string]string, len(list))
		for i, o := range list {
			rows[i] = o.Row()
		}
		return csvio.WriteFile(ordersOut, orders.Columns, rows, true)
	case ".json":
		return writeResult(cmd.OutOrStdout(), ordersOut, list)
	case ".jsonl", ".ndjson":
		return csvio.WriteJSONL(ordersOut, list)
	default:
		return errors.ValidationError(fmt.Sprintf("unsupported output format %q", filepath.Ext(ordersOut)))
	}
}

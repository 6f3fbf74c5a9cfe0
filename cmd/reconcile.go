package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/app"
	"github.com/firefly-engineering/skillctl/internal/errors"
	"github.com/firefly-engineering/skillctl/internal/expense"
	"github.com/firefly-engineering/skillctl/internal/logging"
	"github.com/firefly-engineering/skillctl/internal/orders"
	"github.com/firefly-engineering/skillctl/internal/reconcile"
)

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Match expenses against shop orders",
	Long: `Matches each expense to at most one order with the same amount and a nearby
date, using the day window first and the fallback window second.

Matched pairs are recorded in the ledger so later runs skip them; --dry-run
computes the report without touching the ledger. reconcile.json and
reconcile.csv are written to --out.`,
	Args: cobra.NoArgs,
	RunE: runReconcile,
}

var (
	reconcileExpenses   string
	reconcileOrders     string
	reconcileMonth      string
	reconcileOut        string
	reconcileDryRun     bool
	reconcileNoLedger   bool
	reconcileVerify     bool
	reconcileReceiptDir string
	reconcileBOM        bool
	reconcileDayWindow  int
	reconcileFallback   int
)

func init() {
	reconcileCmd.Flags().StringVar(&reconcileExpenses, "expenses", "", "Expense export (CSV or JSON)")
	reconcileCmd.Flags().StringVar(&reconcileOrders, "orders", "", "Order rows (CSV, JSON or JSONL)")
	reconcileCmd.Flags().StringVar(&reconcileMonth, "month", "", "Only this month (YYYY-MM)")
	reconcileCmd.Flags().StringVarP(&reconcileOut, "out", "o", "", "Output directory (default $SKILLCTL_OUTPUT_DIR or .)")
	reconcileCmd.Flags().BoolVar(&reconcileDryRun, "dry-run", false, "Do not write the ledger")
	reconcileCmd.Flags().BoolVar(&reconcileNoLedger, "no-ledger", false, "Neither read nor write the ledger")
	reconcileCmd.Flags().BoolVar(&reconcileVerify, "verify-receipts", false, "Compare matched amounts with order PDF totals")
	reconcileCmd.Flags().StringVar(&reconcileReceiptDir, "receipt-dir", "", "Base directory for relative pdf paths")
	reconcileCmd.Flags().BoolVar(&reconcileBOM, "bom", true, "Write reconcile.csv with a UTF-8 BOM")
	reconcileCmd.Flags().IntVar(&reconcileDayWindow, "day-window", -1, "Override reconcile.day_window")
	reconcileCmd.Flags().IntVar(&reconcileFallback, "fallback-window", -1, "Override reconcile.fallback_window")
	_ = reconcileCmd.MarkFlagRequired("expenses")
	_ = reconcileCmd.MarkFlagRequired("orders")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, args []string) error {
	exps, err := expense.Load(reconcileExpenses)
	if err != nil {
		return errors.ParseError("failed to load expenses", err)
	}
	ords, err := orders.Load(reconcileOrders, "")
	if err != nil {
		return errors.ParseError("failed to load orders", err)
	}
	ords = orders.Dedupe(ords)

	opts := reconcile.Options{
		DayWindow:      cfg().Reconcile.DayWindow,
		FallbackWindow: cfg().Reconcile.FallbackWindow,
		DryRun:         reconcileDryRun,
		RunID:          os.Getenv("SKILLCTL_RUN_ID"),
		VerifyReceipts: reconcileVerify,
		ReceiptDir:     reconcileReceiptDir,
	}
	if reconcileDayWindow >= 0 {
		opts.DayWindow = reconcileDayWindow
	}
	if reconcileFallback >= 0 {
		opts.FallbackWindow = reconcileFallback
	}
	if opts.FallbackWindow < opts.DayWindow {
		return errors.ValidationError(fmt.Sprintf("fallback window %d is smaller than day window %d", opts.FallbackWindow, opts.DayWindow))
	}

	// Orders just outside the month can still pair with expenses inside it.
	if reconcileMonth != "" {
		year, month, err := parseMonth(reconcileMonth)
		if err != nil {
			return err
		}
		exps = expense.FilterMonth(exps, year, month)
		ords = orders.FilterNearMonth(ords, year, month, opts.FallbackWindow)
		opts.Year, opts.Month = year, month
	}

	var store reconcile.Store
	if !reconcileNoLedger {
		l, err := app.Default.OpenLedger()
		if err != nil {
			return errors.ConfigError("failed to open ledger", err)
		}
		defer l.Close()
		store = l
		opts.Audit = app.Default.Audit()
	}

	log := logging.With("expenses_file", reconcileExpenses, "orders_file", reconcileOrders)
	log.Debug("reconciling", "expenses", len(exps), "orders", len(ords), "month", reconcileMonth, "dry_run", opts.DryRun)
	report, err := reconcile.Run(cmd.Context(), exps, ords, store, opts)
	if err != nil {
		return err
	}
	log.Debug("reconciled", "matched", report.Summary.Matched, "unmatched_orders", report.Summary.UnmatchedOrders)

	outDir := reconcileOut
	if outDir == "" {
		outDir = os.Getenv("SKILLCTL_OUTPUT_DIR")
	}
	if outDir == "" {
		outDir = "."
	}
	if err := report.WriteFiles(outDir, reconcileBOM); err != nil {
		return err
	}

	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), report.Summary)
	}

	sum := report.Summary
	logSuccess("Matched %d of %d expenses (%d via fallback window), total %s",
		sum.Matched, sum.Expenses, sum.Fallback, sum.MatchedAmount.StringFixed(0))
	if sum.UnmatchedExpenses > 0 {
		logWarning("%d expenses without an order", sum.UnmatchedExpenses)
	}
	if sum.LedgeredExpenses > 0 {
		logInfo("%d expenses already reconciled in an earlier run", sum.LedgeredExpenses)
	}
	if sum.ReceiptMismatches > 0 {
		logWarning("%d matches disagree with their receipt total", sum.ReceiptMismatches)
	}
	if sum.DryRun {
		logInfo("Dry run: ledger not updated")
	}
	logInfo("Wrote %s and %s to %s", reconcile.JSONFile, reconcile.CSVFile, outDir)
	return nil
}

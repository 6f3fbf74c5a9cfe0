package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/app"
	"github.com/firefly-engineering/skillctl/internal/dashboard"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Serve the operational dashboard",
	Long: `Serves the REST API and HTML overview of skills, runs, incidents and the
reconcile ledger. Only skills listed in dashboard.allow may be run over HTTP.

Stale runs are reaped every dashboard.reap_interval while the server is up.
Stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: runDashboard,
}

var (
	dashboardAddr      string
	dashboardNoCapture bool
)

func init() {
	dashboardCmd.Flags().StringVar(&dashboardAddr, "addr", "", "Listen address (default dashboard.addr)")
	dashboardCmd.Flags().BoolVar(&dashboardNoCapture, "no-capture", false, "Do not open incidents for failed dashboard runs")
	rootCmd.AddCommand(dashboardCmd)
}

func runDashboard(cmd *cobra.Command, args []string) error {
	a := app.Default
	if err := a.Paths.Ensure(); err != nil {
		return err
	}

	deps := dashboard.Deps{
		Config:          a.Config,
		SkillsDir:       a.Paths.SkillsDir,
		Runner:          a.Runner(),
		Incidents:       a.Incidents(),
		CaptureFailures: !dashboardNoCapture,
	}
	if l, err := a.OpenLedger(); err != nil {
		logWarning("Ledger unavailable, /api/ledger/stats disabled: %v", err)
	} else {
		defer l.Close()
		deps.Ledger = l
	}

	addr := dashboardAddr
	if addr == "" {
		addr = a.Config.Dashboard.Addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return dashboard.New(deps).ListenAndServe(ctx, addr)
}

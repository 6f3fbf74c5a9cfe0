package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/app"
	"github.com/firefly-engineering/skillctl/internal/monitor"
	"github.com/firefly-engineering/skillctl/internal/runner"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Reap stale runs in the background",
	Long: `Periodically marks runs that have been queued or running longer than the
timeout as failed, optionally opening an incident for each. Runs in the
foreground until interrupted.

The dashboard does this on its own; use monitor when runs are started from
cron or the CLI without a dashboard. Can be wrapped in a systemd service.`,
	Args: cobra.NoArgs,
	RunE: runMonitor,
}

var (
	monitorInterval time.Duration
	monitorTimeout  time.Duration
	monitorCapture  bool
)

func init() {
	monitorCmd.Flags().DurationVar(&monitorInterval, "interval", time.Minute, "Sweep interval")
	monitorCmd.Flags().DurationVar(&monitorTimeout, "timeout", 0, "Run age after which it is reaped (default dashboard.run_timeout)")
	monitorCmd.Flags().BoolVar(&monitorCapture, "capture", false, "Open an incident for every reaped run")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	timeout := monitorTimeout
	if timeout == 0 {
		timeout = cfg().Dashboard.RunTimeout.Duration
	}

	opts := []monitor.Option{monitor.WithTimeout(timeout)}
	if monitorCapture {
		store := app.Default.Incidents()
		opts = append(opts, monitor.WithReapHook(func(job *runner.Job) {
			if _, err := store.CaptureRun(job, "", "monitor"); err != nil {
				logWarning("Failed to capture incident for run %s: %v", job.RunID, err)
			}
		}))
	}

	mon := monitor.New(monitorInterval, app.Default.Runner(), opts...)

	logInfo("Starting run reaper (interval: %s, timeout: %s, capture: %v)", monitorInterval, timeout, monitorCapture)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	err := mon.Run(ctx)
	if errors.Is(err, context.Canceled) {
		logInfo("Monitor stopped")
		return nil
	}
	return err
}

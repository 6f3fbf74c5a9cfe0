package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/app"
	"github.com/firefly-engineering/skillctl/internal/incident"
	"github.com/firefly-engineering/skillctl/internal/runner"
)

var gcForce bool

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Clean up stale runs and closed incidents",
	Long: `Reconciles on-disk state with what is actually still happening.

Without --force, prints what would be cleaned (dry run).
With --force, fails stale runs and archives closed incidents.

Detects:
  - Stale runs: queued or running longer than dashboard.run_timeout
  - Closed incidents: resolved or escalated but not yet archived`,
	Args: cobra.NoArgs,
	RunE: runGC,
}

func init() {
	gcCmd.Flags().BoolVar(&gcForce, "force", false, "Actually clean up (default is dry run)")
	rootCmd.AddCommand(gcCmd)
}

// gcResult tracks what gc found.
type gcResult struct {
	staleRuns       []*runner.Job
	closedIncidents []*incident.Incident
}

func (r *gcResult) empty() bool {
	return len(r.staleRuns) == 0 && len(r.closedIncidents) == 0
}

func runGC(cmd *cobra.Command, args []string) error {
	timeout := cfg().Dashboard.RunTimeout.Duration
	r := app.Default.Runner()
	store := app.Default.Incidents()

	result, err := collectGC(r, store, timeout, time.Now())
	if err != nil {
		return err
	}

	if result.empty() {
		logInfo("Nothing to clean up")
		return nil
	}

	if !gcForce {
		printGCDryRun(cmd, result, timeout)
		return nil
	}

	reaped, err := r.Reap(timeout)
	if err != nil {
		return fmt.Errorf("failed to reap runs: %w", err)
	}
	archived, err := store.ArchiveClosed(actor())
	if err != nil {
		return fmt.Errorf("failed to archive incidents: %w", err)
	}
	logSuccess("Failed %d stale run(s), archived %d incident(s)", len(reaped), len(archived))
	return nil
}

func collectGC(r *runner.Runner, store *incident.Store, timeout time.Duration, now time.Time) (*gcResult, error) {
	result := &gcResult{}

	if timeout > 0 {
		jobs, err := r.List()
		if err != nil {
			return nil, fmt.Errorf("failed to list runs: %w", err)
		}
		for _, job := range jobs {
			if job.Status.Done() {
				continue
			}
			since := job.CreatedAt
			if job.StartedAt != nil {
				since = *job.StartedAt
			}
			if now.Sub(since) > timeout {
				result.staleRuns = append(result.staleRuns, job)
			}
		}
	}

	closed, err := store.List(incident.Filter{
		Statuses: []incident.Status{incident.StatusResolved, incident.StatusEscalated},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list incidents: %w", err)
	}
	result.closedIncidents = closed

	return result, nil
}

func printGCDryRun(cmd *cobra.Command, result *gcResult, timeout time.Duration) {
	out := cmd.OutOrStdout()
	if len(result.staleRuns) > 0 {
		fmt.Fprintf(out, "Stale runs (older than %s):\n", timeout)
		for _, job := range result.staleRuns {
			fmt.Fprintf(out, "  %s  %s  %s\n", job.RunID, job.Skill, job.Status)
		}
	}
	if len(result.closedIncidents) > 0 {
		fmt.Fprintln(out, "Closed incidents to archive:")
		for _, inc := range result.closedIncidents {
			fmt.Fprintf(out, "  %s  %s\n", inc.ID, inc.Status)
		}
	}
	fmt.Fprintln(out, "\nRun with --force to clean up.")
}

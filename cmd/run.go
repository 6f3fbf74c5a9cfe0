package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/app"
	"github.com/firefly-engineering/skillctl/internal/runner"
)

var runCmd = &cobra.Command{
	Use:   "run <skill>",
	Short: "Run a skill and record the run",
	Long: `Runs a skill's command synchronously and records it under runs/<run_id>.

Parameters fill {placeholders} in the manifest command:

  skillctl run csv-export -p month=2026-04 -p input=orders.jsonl

On failure the run is marked failed; --capture also opens an incident.`,
	Args: cobra.ExactArgs(1),
	RunE: runRun,
}

var (
	runParams  []string
	runDryRun  bool
	runCapture bool
	runStep    string
)

func init() {
	runCmd.Flags().StringArrayVarP(&runParams, "param", "p", nil, "Parameter as key=value (repeatable)")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "Pass the skill's dry-run flag")
	runCmd.Flags().BoolVar(&runCapture, "capture", false, "Open an incident if the run fails")
	runCmd.Flags().StringVar(&runStep, "step", "", "Step name recorded on a captured incident")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	params, err := parseKeyValues(runParams)
	if err != nil {
		return err
	}

	s, err := app.Default.Skill(args[0])
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	job, err := app.Default.Runner().Start(ctx, s, params, runDryRun, actor())
	if err != nil {
		return err
	}

	if jsonOutput {
		if err := printJSON(cmd.OutOrStdout(), job); err != nil {
			return err
		}
	}

	if job.Status == runner.StatusSucceeded {
		if !jsonOutput {
			logSuccess("Run %s of %s succeeded in %s", job.RunID, job.Skill, job.Duration(time.Now()).Round(time.Millisecond))
		}
		return nil
	}

	if runCapture {
		inc, err := app.Default.Incidents().CaptureRun(job, runStep, actor())
		if err != nil {
			logWarning("Failed to capture incident for run %s: %v", job.RunID, err)
		} else if !jsonOutput {
			logInfo("Captured incident %s (%s)", inc.ID, inc.FailureClass)
		}
	}
	if !jsonOutput {
		logInfo("Log: skillctl runs log %s", job.RunID)
	}
	return fmt.Errorf("run %s: %w", job.RunID, job.Err())
}

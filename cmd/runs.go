package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/app"
	"github.com/firefly-engineering/skillctl/internal/runner"
	"github.com/firefly-engineering/skillctl/internal/skills"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded skill runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List runs, newest first",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run record",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var runsLogCmd = &cobra.Command{
	Use:   "log <run-id>",
	Short: "Print a run's output log",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsLog,
}

var (
	runsSkill  string
	runsStatus string
	runsLimit  int
	runsTail   int
)

func init() {
	runsListCmd.Flags().StringVar(&runsSkill, "skill", "", "Only runs of this skill")
	runsListCmd.Flags().StringVar(&runsStatus, "status", "", "Only runs with this status (queued, running, succeeded, failed)")
	runsListCmd.Flags().IntVarP(&runsLimit, "limit", "n", 20, "Maximum runs to show (0 for all)")
	runsLogCmd.Flags().IntVar(&runsTail, "tail", 0, "Only the last N lines")

	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsLogCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	jobs, err := app.Default.Runner().List()
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}

	var filtered []*runner.Job
	for _, job := range jobs {
		if runsSkill != "" && job.Skill != runsSkill {
			continue
		}
		if runsStatus != "" && string(job.Status) != runsStatus {
			continue
		}
		filtered = append(filtered, job)
		if runsLimit > 0 && len(filtered) == runsLimit {
			break
		}
	}

	if jsonOutput {
		if filtered == nil {
			filtered = []*runner.Job{}
		}
		return printJSON(cmd.OutOrStdout(), filtered)
	}
	if len(filtered) == 0 {
		logInfo("No runs found")
		return nil
	}

	now := time.Now()
	w := newTable(cmd.OutOrStdout())
	fmt.Fprintln(w, "RUN ID\tSKILL\tSTATUS\tCREATED\tDURATION\tERROR")
	fmt.Fprintln(w, "------\t-----\t------\t-------\t--------\t-----")
	for _, job := range filtered {
		errText := "-"
		if job.Error != nil {
			errText = job.Error.Type
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			job.RunID, job.Skill, formatRunStatus(job.Status), formatTime(&job.CreatedAt),
			job.Duration(now).Round(time.Second), errText)
	}
	return w.Flush()
}

func formatRunStatus(s runner.Status) string {
	switch s {
	case runner.StatusSucceeded:
		return "✓ succeeded"
	case runner.StatusFailed:
		return "✗ failed"
	case runner.StatusRunning:
		return "● running"
	case runner.StatusQueued:
		return "○ queued"
	default:
		return string(s)
	}
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	job, err := app.Default.Runner().Load(args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), job)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Run:      %s\n", job.RunID)
	fmt.Fprintf(out, "Skill:    %s\n", job.Skill)
	fmt.Fprintf(out, "Status:   %s\n", formatRunStatus(job.Status))
	if job.Actor != "" {
		fmt.Fprintf(out, "Actor:    %s\n", job.Actor)
	}
	fmt.Fprintf(out, "Command:  %s\n", skills.CommandLine(job.Command))
	fmt.Fprintf(out, "Created:  %s\n", formatTime(&job.CreatedAt))
	fmt.Fprintf(out, "Started:  %s\n", formatTime(job.StartedAt))
	fmt.Fprintf(out, "Finished: %s\n", formatTime(job.FinishedAt))
	if job.ExitCode != nil {
		fmt.Fprintf(out, "Exit:     %d\n", *job.ExitCode)
	}
	if len(job.Params) > 0 {
		pairs := make([]string, 0, len(job.Params))
		for k, v := range job.Params {
			pairs = append(pairs, k+"="+v)
		}
		fmt.Fprintf(out, "Params:   %s\n", strings.Join(sortedStrings(pairs), " "))
	}
	if job.Error != nil {
		fmt.Fprintf(out, "Error:    %s: %s\n", job.Error.Type, job.Error.Message)
	}
	return nil
}

func runRunsLog(cmd *cobra.Command, args []string) error {
	text, err := app.Default.Runner().Log(args[0], runsTail)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), text)
	return err
}

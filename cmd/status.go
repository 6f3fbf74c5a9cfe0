package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/app"
	"github.com/firefly-engineering/skillctl/internal/errors"
	"github.com/firefly-engineering/skillctl/internal/health"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that skillctl's home, config and stores are usable",
	Long: `Runs a set of probes against the local installation and prints one line per
probe. Exits non-zero when any probe is unhealthy; degraded probes are
reported but do not fail the command.`,
	Args: cobra.NoArgs,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	result := health.Check(cmd.Context(), app.Default, time.Now())

	if jsonOutput {
		if err := printJSON(cmd.OutOrStdout(), result); err != nil {
			return err
		}
	} else {
		w := newTable(cmd.OutOrStdout())
		fmt.Fprintln(w, "CHECK\tSTATUS\tDETAIL")
		fmt.Fprintln(w, "-----\t------\t------")
		for _, p := range result.Probes {
			fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, formatHealth(p.Status), p.Detail)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\nOverall: %s\n", formatHealth(result.Status))
	}

	if bad := result.Unhealthy(); len(bad) > 0 {
		return errors.CheckFailed("status", len(bad))
	}
	return nil
}

func formatHealth(s health.Status) string {
	switch s {
	case health.StatusHealthy:
		return "✓ healthy"
	case health.StatusDegraded:
		return "⚠ degraded"
	case health.StatusUnhealthy:
		return "✗ unhealthy"
	default:
		return string(s)
	}
}

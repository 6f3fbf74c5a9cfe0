package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/app"
	"github.com/firefly-engineering/skillctl/internal/audit"
)

var auditLogCmd = &cobra.Command{
	Use:   "audit-log <subject>",
	Short: "Display the event trail for a run or incident",
	Args:  cobra.ExactArgs(1),
	RunE:  runAuditLog,
}

func init() {
	rootCmd.AddCommand(auditLogCmd)
}

func runAuditLog(cmd *cobra.Command, args []string) error {
	events, err := app.Default.Audit().Events(args[0])
	if err != nil {
		return fmt.Errorf("failed to read audit log: %w", err)
	}
	return printEvents(cmd, args[0], events)
}

// printEvents writes events as JSON lines with --json, otherwise one
// formatted line each.
func printEvents(cmd *cobra.Command, subject string, events []audit.Event) error {
	if len(events) == 0 {
		if !jsonOutput {
			logInfo("No events found for %s", subject)
		}
		return nil
	}

	out := cmd.OutOrStdout()
	for _, e := range events {
		if jsonOutput {
			data, err := json.Marshal(e)
			if err != nil {
				return fmt.Errorf("failed to marshal event: %w", err)
			}
			fmt.Fprintln(out, string(data))
			continue
		}

		ts := e.Timestamp.Local().Format("2006-01-02 15:04:05")
		line := fmt.Sprintf("[%s] %-10s %s", ts, e.Type, e.Subject)
		if e.Actor != "" {
			line += " by " + e.Actor
		}
		if e.Details != "" {
			line += " (" + e.Details + ")"
		}
		fmt.Fprintln(out, line)
	}
	return nil
}

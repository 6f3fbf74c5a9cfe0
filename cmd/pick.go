package cmd

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/app"
	"github.com/firefly-engineering/skillctl/internal/incident"
	"github.com/firefly-engineering/skillctl/internal/logging"
	"github.com/firefly-engineering/skillctl/internal/tui"
)

var pickCmd = &cobra.Command{
	Use:   "pick",
	Short: "Interactive incident picker",
	Long: `Opens an interactive TUI listing active incidents grouped by status.

Use arrow keys or j/k to navigate, / to filter.

Actions:
  Enter  - Show the selected incident
  p      - Plan        a - Approve     h - Hand off
  r      - Resolve     e - Escalate
  q/Esc  - Quit

Without a terminal the incidents are printed as a plain list.`,
	Args: cobra.NoArgs,
	RunE: runPick,
}

var pickAll bool

func init() {
	pickCmd.Flags().BoolVar(&pickAll, "all", false, "Include resolved and escalated incidents")
	rootCmd.AddCommand(pickCmd)
}

func runPick(cmd *cobra.Command, args []string) error {
	logging.Debug("picker mode started")

	filter := incident.Filter{}
	if !pickAll {
		filter.Statuses = []incident.Status{
			incident.StatusOpen, incident.StatusPlanned, incident.StatusApproved, incident.StatusHandedOff,
		}
	}
	incidents, err := app.Default.Incidents().List(filter)
	if err != nil {
		return fmt.Errorf("failed to list incidents: %w", err)
	}

	if !isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Fprint(cmd.OutOrStdout(), tui.SimplePicker(incidents))
		return nil
	}
	if len(incidents) == 0 {
		logInfo("No active incidents")
		return nil
	}

	result, err := tui.RunPicker(incidents)
	if err != nil {
		return fmt.Errorf("picker error: %w", err)
	}

	logging.Debug("picker result", "action", result.Action.String())
	return applyPick(cmd, app.Default.Incidents(), result)
}

// applyPick carries out the action chosen in the picker.
func applyPick(cmd *cobra.Command, store *incident.Store, result tui.PickerResult) error {
	if result.Incident == nil {
		return nil
	}
	id := result.Incident.ID
	v := result.Values

	var (
		inc *incident.Incident
		err error
	)
	switch result.Action {
	case tui.ActionShow:
		inc, err = store.Get(id)
		if err != nil {
			return err
		}
		printIncident(cmd, inc)
		return nil
	case tui.ActionPlan:
		inc, err = store.Plan(id, splitSteps([]string{v["steps"]}), actor())
	case tui.ActionApprove:
		inc, err = store.Approve(id, v["by"])
	case tui.ActionHandoff:
		inc, err = store.Handoff(id, v["to"], v["notes"], actor())
	case tui.ActionResolve:
		inc, err = store.Resolve(id, v["note"], actor())
	case tui.ActionEscalate:
		inc, err = store.Escalate(id, v["reason"], actor())
	default:
		return nil
	}
	if err != nil {
		return err
	}
	return reportIncident(cmd, inc, "Updated")
}

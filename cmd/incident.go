package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/firefly-engineering/skillctl/internal/app"
	"github.com/firefly-engineering/skillctl/internal/incident"
)

var incidentCmd = &cobra.Command{
	Use:     "incident",
	Aliases: []string{"inc"},
	Short:   "Track failed runs through review and handoff",
	Long: `Incidents move through a manual workflow:

  open → planned → approved → handed_off → resolved
  open, planned and handed_off may also be escalated.

Each incident lives in incidents/<status>/<id>/. Closed incidents (resolved or
escalated) are moved to incidents/archive/<YYYY-MM>/ by "incident archive".`,
}

var incidentCaptureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Open an incident for a failed run or a manual report",
	Args:  cobra.NoArgs,
	RunE:  runIncidentCapture,
}

var incidentPlanCmd = &cobra.Command{
	Use:   "plan <id>",
	Short: "Record remediation steps (open → planned)",
	Args:  cobra.ExactArgs(1),
	RunE:  runIncidentPlan,
}

var incidentApproveCmd = &cobra.Command{
	Use:   "approve <id>",
	Short: "Approve the plan (planned → approved)",
	Args:  cobra.ExactArgs(1),
	RunE:  runIncidentApprove,
}

var incidentHandoffCmd = &cobra.Command{
	Use:   "handoff <id>",
	Short: "Hand the incident to an owner (approved → handed_off)",
	Args:  cobra.ExactArgs(1),
	RunE:  runIncidentHandoff,
}

var incidentResolveCmd = &cobra.Command{
	Use:   "resolve <id>",
	Short: "Mark the incident resolved (handed_off → resolved)",
	Args:  cobra.ExactArgs(1),
	RunE:  runIncidentResolve,
}

var incidentEscalateCmd = &cobra.Command{
	Use:   "escalate <id>",
	Short: "Escalate the incident",
	Args:  cobra.ExactArgs(1),
	RunE:  runIncidentEscalate,
}

var incidentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List incidents, newest first",
	Args:  cobra.NoArgs,
	RunE:  runIncidentList,
}

var incidentShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one incident with its plan and handoff",
	Args:  cobra.ExactArgs(1),
	RunE:  runIncidentShow,
}

var incidentLogCmd = &cobra.Command{
	Use:   "log <id>",
	Short: "Show the event trail for an incident",
	Args:  cobra.ExactArgs(1),
	RunE:  runIncidentLog,
}

var incidentArchiveCmd = &cobra.Command{
	Use:   "archive [id]",
	Short: "Move closed incidents to the archive",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runIncidentArchive,
}

var (
	incRun      string
	incSkill    string
	incStep     string
	incType     string
	incMessage  string
	incSteps    []string
	incBy       string
	incTo       string
	incNotes    string
	incNote     string
	incReason   string
	incStatus   []string
	incClass    string
	incArchived bool
	incAll      bool
)

func init() {
	incidentCaptureCmd.Flags().StringVar(&incRun, "run", "", "Failed run to capture")
	incidentCaptureCmd.Flags().StringVar(&incSkill, "skill", "", "Skill name (manual capture)")
	incidentCaptureCmd.Flags().StringVar(&incStep, "step", "", "Step that failed")
	incidentCaptureCmd.Flags().StringVar(&incType, "type", "", "Error type (auth, timeout, parse, ...)")
	incidentCaptureCmd.Flags().StringVarP(&incMessage, "message", "m", "", "Error message (manual capture)")

	incidentPlanCmd.Flags().StringArrayVarP(&incSteps, "step", "s", nil, "Remediation step (repeatable)")
	incidentApproveCmd.Flags().StringVar(&incBy, "by", "", "Approver (default $USER)")
	incidentHandoffCmd.Flags().StringVar(&incTo, "to", "", "Owner taking over")
	incidentHandoffCmd.Flags().StringVar(&incNotes, "notes", "", "Handoff notes")
	_ = incidentHandoffCmd.MarkFlagRequired("to")
	incidentResolveCmd.Flags().StringVar(&incNote, "note", "", "Resolution note")
	incidentEscalateCmd.Flags().StringVar(&incReason, "reason", "", "Why the incident is escalated")
	_ = incidentEscalateCmd.MarkFlagRequired("reason")

	incidentListCmd.Flags().StringSliceVar(&incStatus, "status", nil, "Only these statuses")
	incidentListCmd.Flags().StringVar(&incSkill, "skill", "", "Only this skill")
	incidentListCmd.Flags().StringVar(&incClass, "class", "", "Only this failure class")
	incidentListCmd.Flags().BoolVar(&incArchived, "archived", false, "Include archived incidents")

	incidentArchiveCmd.Flags().BoolVar(&incAll, "all", false, "Archive every resolved or escalated incident")

	incidentCmd.AddCommand(
		incidentCaptureCmd, incidentPlanCmd, incidentApproveCmd, incidentHandoffCmd,
		incidentResolveCmd, incidentEscalateCmd, incidentListCmd, incidentShowCmd,
		incidentLogCmd, incidentArchiveCmd,
	)
	rootCmd.AddCommand(incidentCmd)
}

func runIncidentCapture(cmd *cobra.Command, args []string) error {
	store := app.Default.Incidents()

	var (
		inc *incident.Incident
		err error
	)
	if incRun != "" {
		job, lerr := app.Default.Runner().Load(incRun)
		if lerr != nil {
			return lerr
		}
		inc, err = store.CaptureRun(job, incStep, actor())
	} else {
		inc, err = store.Capture(incident.CaptureInput{
			Skill:     incSkill,
			Step:      incStep,
			ErrorType: incType,
			Message:   incMessage,
			Actor:     actor(),
		})
	}
	if err != nil {
		return err
	}
	return reportIncident(cmd, inc, "Captured")
}

func runIncidentPlan(cmd *cobra.Command, args []string) error {
	inc, err := app.Default.Incidents().Plan(args[0], splitSteps(incSteps), actor())
	if err != nil {
		return err
	}
	return reportIncident(cmd, inc, "Planned")
}

func runIncidentApprove(cmd *cobra.Command, args []string) error {
	by := incBy
	if by == "" {
		by = actor()
	}
	inc, err := app.Default.Incidents().Approve(args[0], by)
	if err != nil {
		return err
	}
	return reportIncident(cmd, inc, "Approved")
}

func runIncidentHandoff(cmd *cobra.Command, args []string) error {
	inc, err := app.Default.Incidents().Handoff(args[0], incTo, incNotes, actor())
	if err != nil {
		return err
	}
	return reportIncident(cmd, inc, "Handed off")
}

func runIncidentResolve(cmd *cobra.Command, args []string) error {
	inc, err := app.Default.Incidents().Resolve(args[0], incNote, actor())
	if err != nil {
		return err
	}
	return reportIncident(cmd, inc, "Resolved")
}

func runIncidentEscalate(cmd *cobra.Command, args []string) error {
	inc, err := app.Default.Incidents().Escalate(args[0], incReason, actor())
	if err != nil {
		return err
	}
	return reportIncident(cmd, inc, "Escalated")
}

func runIncidentList(cmd *cobra.Command, args []string) error {
	filter := incident.Filter{
		Skill:           incSkill,
		Class:           incident.FailureClass(incClass),
		IncludeArchived: incArchived,
	}
	for _, s := range incStatus {
		status, err := incident.ParseStatus(s)
		if err != nil {
			return err
		}
		filter.Statuses = append(filter.Statuses, status)
	}

	list, err := app.Default.Incidents().List(filter)
	if err != nil {
		return fmt.Errorf("failed to list incidents: %w", err)
	}

	if jsonOutput {
		if list == nil {
			list = []*incident.Incident{}
		}
		return printJSON(cmd.OutOrStdout(), list)
	}
	if len(list) == 0 {
		logInfo("No incidents found")
		return nil
	}

	w := newTable(cmd.OutOrStdout())
	fmt.Fprintln(w, "ID\tSTATUS\tCLASS\tSKILL\tUPDATED\tMESSAGE")
	fmt.Fprintln(w, "--\t------\t-----\t-----\t-------\t-------")
	for _, inc := range list {
		status := string(inc.Status)
		if inc.Archived() {
			status += " (archived)"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			inc.ID, status, inc.FailureClass, orDash(inc.Skill), formatTime(&inc.UpdatedAt), oneLine(inc.Message, 50))
	}
	return w.Flush()
}

func runIncidentShow(cmd *cobra.Command, args []string) error {
	inc, err := app.Default.Incidents().Get(args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), inc)
	}
	printIncident(cmd, inc)
	return nil
}

func runIncidentLog(cmd *cobra.Command, args []string) error {
	events, err := app.Default.Incidents().Events(args[0])
	if err != nil {
		return err
	}
	return printEvents(cmd, args[0], events)
}

func runIncidentArchive(cmd *cobra.Command, args []string) error {
	store := app.Default.Incidents()

	switch {
	case incAll && len(args) > 0:
		return fmt.Errorf("pass an incident id or --all, not both")
	case incAll:
		archived, err := store.ArchiveClosed(actor())
		if err != nil {
			return err
		}
		if jsonOutput {
			if archived == nil {
				archived = []*incident.Incident{}
			}
			return printJSON(cmd.OutOrStdout(), archived)
		}
		logSuccess("Archived %d incident(s)", len(archived))
		return nil
	case len(args) == 1:
		inc, err := store.Archive(args[0], actor())
		if err != nil {
			return err
		}
		return reportIncident(cmd, inc, "Archived")
	default:
		return fmt.Errorf("pass an incident id or --all")
	}
}

// splitSteps accepts repeated flags as well as ";"-separated steps.
func splitSteps(in []string) []string {
	var steps []string
	for _, s := range in {
		for _, part := range strings.Split(s, ";") {
			if part = strings.TrimSpace(part); part != "" {
				steps = append(steps, part)
			}
		}
	}
	return steps
}

func reportIncident(cmd *cobra.Command, inc *incident.Incident, verb string) error {
	if jsonOutput {
		return printJSON(cmd.OutOrStdout(), inc)
	}
	logSuccess("%s incident %s (status: %s)", verb, inc.ID, inc.Status)
	return nil
}

func printIncident(cmd *cobra.Command, inc *incident.Incident) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Incident: %s\n", inc.ID)
	fmt.Fprintf(out, "Status:   %s\n", inc.Status)
	fmt.Fprintf(out, "Class:    %s\n", inc.FailureClass)
	if inc.Skill != "" {
		fmt.Fprintf(out, "Skill:    %s\n", inc.Skill)
	}
	if inc.RunID != "" {
		fmt.Fprintf(out, "Run:      %s\n", inc.RunID)
	}
	if inc.Step != "" {
		fmt.Fprintf(out, "Step:     %s\n", inc.Step)
	}
	fmt.Fprintf(out, "Message:  %s\n", inc.Message)
	fmt.Fprintf(out, "Created:  %s\n", formatTime(&inc.CreatedAt))
	fmt.Fprintf(out, "Updated:  %s\n", formatTime(&inc.UpdatedAt))

	if inc.Plan != nil {
		fmt.Fprintf(out, "\nPlan (%s):\n", inc.Plan.Author)
		for i, step := range inc.Plan.Steps {
			fmt.Fprintf(out, "  %d. %s\n", i+1, step)
		}
	}
	if inc.Approval != nil {
		fmt.Fprintf(out, "\nApproved by %s at %s\n", inc.Approval.By, formatTime(&inc.Approval.At))
	}
	if inc.Handoff != nil {
		fmt.Fprintf(out, "\nHanded off to %s at %s\n", inc.Handoff.To, formatTime(&inc.Handoff.At))
		if inc.Handoff.Notes != "" {
			fmt.Fprintf(out, "  %s\n", inc.Handoff.Notes)
		}
	}
	if inc.Resolution != nil {
		fmt.Fprintf(out, "\n%s by %s at %s\n", inc.Resolution.Outcome, inc.Resolution.By, formatTime(&inc.Resolution.At))
		if inc.Resolution.Note != "" {
			fmt.Fprintf(out, "  %s\n", inc.Resolution.Note)
		}
	}
	if inc.Archived() {
		fmt.Fprintf(out, "\nArchived at %s\n", formatTime(inc.ArchivedAt))
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func oneLine(s string, maxLen int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) > maxLen {
		return string(r[:maxLen-3]) + "..."
	}
	return s
}

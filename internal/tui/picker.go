package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/firefly-engineering/skillctl/internal/incident"
)

// Action represents the action to take after picker selection
type Action int

const (
	ActionNone Action = iota
	ActionShow
	ActionPlan
	ActionApprove
	ActionHandoff
	ActionResolve
	ActionEscalate
	ActionQuit
)

var actionNames = map[Action]string{
	ActionNone:     "none",
	ActionShow:     "show",
	ActionPlan:     "plan",
	ActionApprove:  "approve",
	ActionHandoff:  "handoff",
	ActionResolve:  "resolve",
	ActionEscalate: "escalate",
	ActionQuit:     "quit",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// target is the status an action moves an incident to.
func (a Action) target() (incident.Status, bool) {
	switch a {
	case ActionPlan:
		return incident.StatusPlanned, true
	case ActionApprove:
		return incident.StatusApproved, true
	case ActionHandoff:
		return incident.StatusHandedOff, true
	case ActionResolve:
		return incident.StatusResolved, true
	case ActionEscalate:
		return incident.StatusEscalated, true
	}
	return "", false
}

// PickerResult holds the result of the picker. Values carries the form
// inputs for transition actions, keyed by field name.
type PickerResult struct {
	Action   Action
	Incident *incident.Incident
	Values   map[string]string
}

// incidentItem implements list.Item for incident display
type incidentItem struct {
	inc *incident.Incident
	now time.Time
}

func (i incidentItem) Title() string {
	return i.inc.ID
}

func (i incidentItem) Description() string {
	skill := i.inc.Skill
	if skill == "" {
		skill = "-"
	}
	return fmt.Sprintf("%s %s | %s | %s | %s",
		statusIcon(i.inc.Status),
		skill,
		i.inc.FailureClass,
		formatAge(i.now.Sub(i.inc.UpdatedAt)),
		truncate(i.inc.Message, 40),
	)
}

func (i incidentItem) FilterValue() string {
	return i.inc.ID + " " + i.inc.Skill + " " + string(i.inc.FailureClass)
}

func statusIcon(s incident.Status) string {
	switch s {
	case incident.StatusOpen:
		return "●"
	case incident.StatusPlanned:
		return "◐"
	case incident.StatusApproved:
		return "✓"
	case incident.StatusHandedOff:
		return "→"
	case incident.StatusResolved:
		return "○"
	case incident.StatusEscalated:
		return "⚠"
	}
	return "?"
}

func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

func formatAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 48*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	}
	return fmt.Sprintf("%dd ago", int(d.Hours()/24))
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")).
			MarginTop(1)

	noticeStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	selectedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)
)

type pickerMode int

const (
	modeList pickerMode = iota
	modeForm
)

// Model is the bubbletea model for the incident picker
type Model struct {
	list     list.Model
	form     formModel
	mode     pickerMode
	pending  PickerResult
	result   PickerResult
	notice   string
	quitting bool
	width    int
	height   int
}

// NewPicker creates a new incident picker grouped by status.
func NewPicker(incidents []*incident.Incident) Model {
	return newPicker(incidents, time.Now())
}

func newPicker(incidents []*incident.Incident, now time.Time) Model {
	items := buildGroupedItems(incidents, now)

	l := list.New(items, newGroupedDelegate(), 80, 20)
	l.Title = "skillctl - Incidents"
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(true)
	l.Styles.Title = titleStyle
	skipHeaders(&l, 1)

	return Model{list: l}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if size, ok := msg.(tea.WindowSizeMsg); ok {
		m.width = size.Width
		m.height = size.Height
		m.list.SetSize(size.Width, size.Height-4)
		return m, nil
	}

	if m.mode == modeForm {
		done, values, cmd := m.form.Update(msg)
		if !done {
			return m, cmd
		}
		if values == nil {
			m.mode = modeList
			m.pending = PickerResult{}
			return m, nil
		}
		m.result = m.pending
		m.result.Values = values
		m.quitting = true
		return m, tea.Quit
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok && m.list.FilterState() != list.Filtering {
		m.notice = ""
		switch keyMsg.String() {
		case "enter":
			if inc := m.selected(); inc != nil {
				m.result = PickerResult{Action: ActionShow, Incident: inc}
				m.quitting = true
				return m, tea.Quit
			}
			return m, nil

		case "p":
			return m.begin(ActionPlan)
		case "a":
			return m.begin(ActionApprove)
		case "h":
			return m.begin(ActionHandoff)
		case "r":
			return m.begin(ActionResolve)
		case "e":
			return m.begin(ActionEscalate)

		case "q", "esc":
			m.result = PickerResult{Action: ActionQuit}
			m.quitting = true
			return m, tea.Quit
		}

		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		if isHeaderSelected(&m.list) {
			skipHeaders(&m.list, navigationDirection(keyMsg))
		}
		return m, cmd
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// begin opens the input form for a transition action, or sets a notice
// when the selected incident cannot make that move.
func (m Model) begin(action Action) (tea.Model, tea.Cmd) {
	inc := m.selected()
	if inc == nil {
		return m, nil
	}
	to, _ := action.target()
	if inc.Archived() || !incident.CanTransition(inc.Status, to) {
		m.notice = fmt.Sprintf("cannot %s: incident is %s", action, inc.Status)
		return m, nil
	}

	m.pending = PickerResult{Action: action, Incident: inc}
	m.form = newFormModel(fmt.Sprintf("%s %s", action, inc.ID), actionFields[action])
	m.mode = modeForm
	return m, nil
}

func (m Model) selected() *incident.Incident {
	if item, ok := m.list.SelectedItem().(incidentItem); ok {
		return item.inc
	}
	return nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}
	if m.mode == modeForm {
		return m.form.View()
	}

	view := m.list.View()
	if m.notice != "" {
		view += "\n" + noticeStyle.Render(m.notice)
	}
	items := m.list.Items()
	view += "\n" + helpStyle.Render(fmt.Sprintf("%d incidents", len(items)-headerCount(items)))
	help := helpStyle.Render("[enter] Show  [p] Plan  [a] Approve  [h] Handoff  [r] Resolve  [e] Escalate  [/] Filter  [q] Quit")
	return view + "\n" + help
}

// Result returns the picker result
func (m Model) Result() PickerResult {
	return m.result
}

// RunPicker runs the interactive incident picker
func RunPicker(incidents []*incident.Incident) (PickerResult, error) {
	if len(incidents) == 0 {
		return PickerResult{Action: ActionNone}, nil
	}

	p := tea.NewProgram(NewPicker(incidents), tea.WithAltScreen())

	finalModel, err := p.Run()
	if err != nil {
		return PickerResult{}, err
	}

	return finalModel.(Model).Result(), nil
}

// SimplePicker is a non-interactive rendering used when stdout is not a
// terminal.
func SimplePicker(incidents []*incident.Incident) string {
	var sb strings.Builder

	sb.WriteString("skillctl - Incidents\n")
	sb.WriteString(strings.Repeat("─", 60) + "\n\n")

	if len(incidents) == 0 {
		sb.WriteString("No incidents found.\n")
		return sb.String()
	}

	for i, inc := range incidents {
		sb.WriteString(fmt.Sprintf("%d. %s %s [%s]\n",
			i+1, statusIcon(inc.Status), inc.ID, inc.Status))
		sb.WriteString(fmt.Sprintf("   Skill: %s | Class: %s | %s\n\n",
			inc.Skill, inc.FailureClass, truncate(inc.Message, 40)))
	}

	return sb.String()
}

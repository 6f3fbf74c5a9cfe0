package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// formField is one labelled text input.
type formField struct {
	key      string
	label    string
	required bool
	input    textinput.Model
}

// formModel collects the values an incident action needs, one field at a
// time.
type formModel struct {
	title  string
	fields []formField
	cursor int
	errMsg string
}

var (
	formTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39")).
			MarginBottom(1)

	formLabelStyle = lipgloss.NewStyle().
			Bold(true)

	formActiveLabelStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("39"))

	formDimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	formErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))
)

type fieldSpec struct {
	key, label, placeholder string
	required                bool
	charLimit               int
}

// actionFields lists the inputs each action asks for.
var actionFields = map[Action][]fieldSpec{
	ActionPlan: {
		{key: "steps", label: "Plan steps (separate with ;)", placeholder: "re-login; rerun for the month", required: true, charLimit: 512},
	},
	ActionApprove: {
		{key: "by", label: "Approved by", placeholder: "name", required: true, charLimit: 64},
	},
	ActionHandoff: {
		{key: "to", label: "Hand off to", placeholder: "owner or team", required: true, charLimit: 64},
		{key: "notes", label: "Notes", placeholder: "optional", charLimit: 512},
	},
	ActionResolve: {
		{key: "note", label: "Resolution note", placeholder: "optional", charLimit: 512},
	},
	ActionEscalate: {
		{key: "reason", label: "Escalation reason", placeholder: "why this cannot be handled", required: true, charLimit: 512},
	},
}

func newFormModel(title string, specs []fieldSpec) formModel {
	fields := make([]formField, len(specs))
	for i, spec := range specs {
		ti := textinput.New()
		ti.Placeholder = spec.placeholder
		ti.CharLimit = spec.charLimit
		ti.Width = 60
		fields[i] = formField{key: spec.key, label: spec.label, required: spec.required, input: ti}
	}
	f := formModel{title: title, fields: fields}
	if len(f.fields) > 0 {
		f.fields[0].input.Focus()
	}
	return f
}

// Update processes a message and returns (done, values, cmd).
// done=true with non-nil values means the form was submitted.
// done=true with nil values means it was cancelled.
func (f *formModel) Update(msg tea.Msg) (bool, map[string]string, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch keyMsg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return true, nil, nil
		case tea.KeyTab, tea.KeyDown:
			return false, nil, f.move(1)
		case tea.KeyShiftTab, tea.KeyUp:
			return false, nil, f.move(-1)
		case tea.KeyEnter:
			if f.cursor < len(f.fields)-1 {
				if f.fields[f.cursor].required && f.current() == "" {
					f.errMsg = f.fields[f.cursor].label + " is required"
					return false, nil, nil
				}
				return false, nil, f.move(1)
			}
			return f.submit()
		}
	}

	if len(f.fields) == 0 {
		return false, nil, nil
	}
	var cmd tea.Cmd
	f.fields[f.cursor].input, cmd = f.fields[f.cursor].input.Update(msg)
	return false, nil, cmd
}

func (f *formModel) current() string {
	return strings.TrimSpace(f.fields[f.cursor].input.Value())
}

func (f *formModel) move(delta int) tea.Cmd {
	if len(f.fields) == 0 {
		return nil
	}
	f.fields[f.cursor].input.Blur()
	f.cursor = (f.cursor + delta + len(f.fields)) % len(f.fields)
	f.errMsg = ""
	return f.fields[f.cursor].input.Focus()
}

func (f *formModel) submit() (bool, map[string]string, tea.Cmd) {
	values := make(map[string]string, len(f.fields))
	for i, field := range f.fields {
		v := strings.TrimSpace(field.input.Value())
		if field.required && v == "" {
			f.fields[f.cursor].input.Blur()
			f.cursor = i
			f.errMsg = field.label + " is required"
			return false, nil, f.fields[i].input.Focus()
		}
		values[field.key] = v
	}
	return true, values, nil
}

func (f *formModel) View() string {
	var sb strings.Builder
	sb.WriteString(formTitleStyle.Render(f.title))
	sb.WriteString("\n")

	for i, field := range f.fields {
		label := formLabelStyle.Render(field.label)
		if i == f.cursor {
			label = formActiveLabelStyle.Render("▸ " + field.label)
		}
		if field.required {
			label += formDimStyle.Render(" *")
		}
		sb.WriteString(fmt.Sprintf("%s\n%s\n\n", label, field.input.View()))
	}

	if f.errMsg != "" {
		sb.WriteString(formErrorStyle.Render(f.errMsg) + "\n")
	}
	sb.WriteString(formDimStyle.Render("[enter] Next/Submit  [tab] Switch field  [esc] Back"))
	return sb.String()
}

package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
)

func TestFormModel_TabCycles(t *testing.T) {
	f := newFormModel("handoff", actionFields[ActionHandoff])

	f.Update(tea.KeyMsg{Type: tea.KeyTab})
	if f.cursor != 1 {
		t.Errorf("cursor = %d, want 1", f.cursor)
	}
	f.Update(tea.KeyMsg{Type: tea.KeyTab})
	if f.cursor != 0 {
		t.Errorf("cursor = %d, want 0 after wrap", f.cursor)
	}
	f.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	if f.cursor != 1 {
		t.Errorf("cursor = %d, want 1 after shift+tab", f.cursor)
	}
}

func TestFormModel_SubmitValidatesRequired(t *testing.T) {
	f := newFormModel("handoff", actionFields[ActionHandoff])

	// Jump to notes, fill it, leave "to" empty.
	f.Update(tea.KeyMsg{Type: tea.KeyTab})
	f.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("n")})

	done, values, _ := f.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if done || values != nil {
		t.Fatal("submit with empty required field should fail")
	}
	if f.cursor != 0 {
		t.Errorf("cursor = %d, want 0 (first invalid field)", f.cursor)
	}
	if f.errMsg == "" {
		t.Error("expected an error message")
	}
}

func TestFormModel_OptionalOnly(t *testing.T) {
	f := newFormModel("resolve", actionFields[ActionResolve])

	done, values, _ := f.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if !done {
		t.Fatal("optional-only form should submit empty")
	}
	if v, ok := values["note"]; !ok || v != "" {
		t.Errorf("values = %v", values)
	}
}

func TestFormModel_Cancel(t *testing.T) {
	f := newFormModel("approve", actionFields[ActionApprove])
	done, values, _ := f.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !done || values != nil {
		t.Errorf("ctrl+c: done=%v values=%v, want cancelled", done, values)
	}
}

func TestActionFields(t *testing.T) {
	for _, action := range []Action{ActionPlan, ActionApprove, ActionHandoff, ActionResolve, ActionEscalate} {
		if _, ok := action.target(); !ok {
			t.Errorf("%v has no target status", action)
		}
		if len(actionFields[action]) == 0 {
			t.Errorf("%v has no form fields", action)
		}
	}
	if _, ok := ActionShow.target(); ok {
		t.Error("show should not have a target status")
	}
}

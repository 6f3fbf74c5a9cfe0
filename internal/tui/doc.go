// Package tui provides the terminal incident picker for skillctl.
//
// The picker lists incidents grouped by status, in lifecycle order, and
// returns the operator's choice:
//
//	result, err := tui.RunPicker(incidents)
//	switch result.Action {
//	case tui.ActionShow:
//	    // print result.Incident
//	case tui.ActionApprove:
//	    // store.Approve(result.Incident.ID, result.Values["by"])
//	case tui.ActionQuit, tui.ActionNone:
//	}
//
// Transition keys (p, a, h, r, e) open a short form for the inputs the
// transition needs. A key whose transition is not allowed from the
// selected incident's status shows a notice and leaves the list open.
//
// Uses the Charm libraries:
//   - github.com/charmbracelet/bubbletea - TUI framework
//   - github.com/charmbracelet/bubbles - list and textinput components
//   - github.com/charmbracelet/lipgloss - Styling
package tui

package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
)

// User-facing output functions with status prefixes.
// These write to Stdout/Stderr directly for CLI output,
// separate from the structured debug logging.

var (
	// Stdout receives info and success lines.
	Stdout io.Writer = os.Stdout
	// Stderr receives warnings and errors.
	Stderr io.Writer = os.Stderr

	infoMark    = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Render("ℹ")
	successMark = lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("✓")
	warningMark = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Render("⚠")
	errorMark   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Render("✗")
)

// UserInfo prints an info message to stdout.
func UserInfo(format string, args ...interface{}) {
	fmt.Fprintf(Stdout, infoMark+" "+format+"\n", args...)
}

// UserSuccess prints a success message to stdout.
func UserSuccess(format string, args ...interface{}) {
	fmt.Fprintf(Stdout, successMark+" "+format+"\n", args...)
}

// UserWarning prints a warning message to stderr.
func UserWarning(format string, args ...interface{}) {
	fmt.Fprintf(Stderr, warningMark+" "+format+"\n", args...)
}

// UserError prints an error message to stderr.
func UserError(format string, args ...interface{}) {
	fmt.Fprintf(Stderr, errorMark+" "+format+"\n", args...)
}

// Package style defines the lipgloss styles shared across the TUI.
package style

import "github.com/charmbracelet/lipgloss"

// Styles are package-level values; lipgloss styles are immutable value
// types, so sharing them between models is safe.
//
// Names omit a "Style" suffix because callers already qualify them with
// the package (style.Title reads better than style.TitleStyle).
var (
	// Title marks phase headers.
	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205"))

	// Subtitle is for secondary lines under a title.
	Subtitle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	// Success marks completed work.
	Success = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	// Error marks failures.
	Error = lipgloss.NewStyle().
		Foreground(lipgloss.Color("196"))

	// Warning marks paused and degraded states.
	Warning = lipgloss.NewStyle().
		Foreground(lipgloss.Color("214"))

	// Help renders keyboard hint lines.
	Help = lipgloss.NewStyle().
		Foreground(lipgloss.Color("241"))

	// Key highlights key names inside help lines.
	Key = lipgloss.NewStyle().
		Foreground(lipgloss.Color("205")).
		Bold(true)

	// Progress colors the waveform and progress readouts.
	Progress = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63"))

	// Label is for field names on the summary screen.
	Label = lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("255"))

	// Muted de-emphasizes paths and ids.
	Muted = lipgloss.NewStyle().
		Foreground(lipgloss.Color("245"))
)

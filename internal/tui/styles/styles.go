package styles

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	ColorFailed    = lipgloss.Color("#FF0000")
	ColorAborted   = lipgloss.Color("#FF6600")
	ColorSkipped   = lipgloss.Color("#FFCC00")
	ColorSucceeded = lipgloss.Color("#00CC00")
	ColorRunning   = lipgloss.Color("#0099FF")
	ColorMuted     = lipgloss.Color("#666666")
	ColorAccent    = lipgloss.Color("#7D56F4")
)

// Styles used across TUI views.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(ColorAccent).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent).
			MarginBottom(1)

	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent).
			Padding(1, 2)

	SelectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	CursorStyle = lipgloss.NewStyle().
			Foreground(ColorAccent)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorFailed).
			Bold(true)

	InstalledStyle = lipgloss.NewStyle().Foreground(ColorSucceeded)
	MissingStyle   = lipgloss.NewStyle().Foreground(ColorSkipped)

	StateSucceededStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorSucceeded)
	StateFailedStyle    = lipgloss.NewStyle().Bold(true).Foreground(ColorFailed)
	StateAbortedStyle   = lipgloss.NewStyle().Bold(true).Foreground(ColorAborted)
	StateSkippedStyle   = lipgloss.NewStyle().Foreground(ColorSkipped)
	StateRunningStyle   = lipgloss.NewStyle().Foreground(ColorRunning)
	StateCancelledStyle = lipgloss.NewStyle().Foreground(ColorMuted)
)

// StateStyle returns the style for a job state or scan status.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "succeeded", "done_success":
		return StateSucceededStyle
	case "failed", "done_error":
		return StateFailedStyle
	case "aborted":
		return StateAbortedStyle
	case "skipped":
		return StateSkippedStyle
	case "running", "pending", "indeterminate":
		return StateRunningStyle
	case "cancelled":
		return StateCancelledStyle
	default:
		return lipgloss.NewStyle()
	}
}

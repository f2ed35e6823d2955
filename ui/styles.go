package ui

import "github.com/charmbracelet/lipgloss"

const ellipsis = "…"

var (
	grayStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF0000"))
	headerStyle = lipgloss.NewStyle().Bold(true)
)

// FormatError renders err for the terminal.
func FormatError(err error) string {
	return errorStyle.Render("Error: " + err.Error())
}

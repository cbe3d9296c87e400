// Package styles provides centralized style and color definitions for
// cellophane's terminal output. Colors adapt to light/dark terminal
// backgrounds via lipgloss.AdaptiveColor.
package styles

import "github.com/charmbracelet/lipgloss"

var (
	ColorError = lipgloss.AdaptiveColor{Light: "#D73737", Dark: "#FF5555"}

	ColorWarning = lipgloss.AdaptiveColor{Light: "#E67E22", Dark: "#FFB86C"}

	ColorSuccess = lipgloss.AdaptiveColor{Light: "#27AE60", Dark: "#50FA7B"}

	ColorInfo = lipgloss.AdaptiveColor{Light: "#2980B9", Dark: "#8BE9FD"}

	ColorComment = lipgloss.AdaptiveColor{Light: "#6C7A89", Dark: "#6272A4"}
)

var (
	Error   = lipgloss.NewStyle().Foreground(ColorError)
	Warning = lipgloss.NewStyle().Foreground(ColorWarning)
	Success = lipgloss.NewStyle().Foreground(ColorSuccess)
	Info    = lipgloss.NewStyle().Foreground(ColorInfo)

	TableHeader = lipgloss.NewStyle().Bold(true).Foreground(ColorInfo)
	TableFailed = lipgloss.NewStyle().Foreground(ColorError)
	TableOK     = lipgloss.NewStyle().Foreground(ColorSuccess)
)

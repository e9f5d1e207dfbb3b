package ui

import "charm.land/lipgloss/v2"

var (
	highlightColor = lipgloss.Color("170")
	dimColor       = lipgloss.Color("240")

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(highlightColor).
			Padding(1, 3)

	titleStyle = lipgloss.NewStyle().Foreground(highlightColor).Bold(true)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	hintStyle  = lipgloss.NewStyle().Foreground(dimColor)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1"))
	okStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
)

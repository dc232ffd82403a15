package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/quorumdesk/quorumdesk/internal/attendance"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	clockStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	quorumMet     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("10"))
	quorumMissing = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle   = lipgloss.NewStyle().Bold(true).Underline(true)
	selectedStyle = lipgloss.NewStyle().Reverse(true)
	pendingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))

	statusStyles = map[attendance.Status]lipgloss.Style{
		attendance.StatusInPerson: lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
		attendance.StatusVirtual:  lipgloss.NewStyle().Foreground(lipgloss.Color("14")),
		attendance.StatusAbsent:   lipgloss.NewStyle().Foreground(lipgloss.Color("8")),
	}
)

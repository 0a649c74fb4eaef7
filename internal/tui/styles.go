package tui

import "github.com/charmbracelet/lipgloss"

var (
	accent      = lipgloss.Color("#8BC34A")
	muted       = lipgloss.Color("#6B7280")
	border      = lipgloss.Color("#2a3850")
	destructive = lipgloss.Color("#e53935")
)

// Styles groups every lipgloss style the chat view uses
type Styles struct {
	Header        lipgloss.Style
	Status        lipgloss.Style
	Sidebar       lipgloss.Style
	SidebarActive lipgloss.Style
	Transcript    lipgloss.Style
	UserLabel     lipgloss.Style
	BotLabel      lipgloss.Style
	ErrorText     lipgloss.Style
	Input         lipgloss.Style
	Help          lipgloss.Style
	Spinner       lipgloss.Style
}

func DefaultStyles() Styles {
	pane := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border)

	return Styles{
		Header:        lipgloss.NewStyle().Bold(true).Foreground(accent),
		Status:        lipgloss.NewStyle().Foreground(muted),
		Sidebar:       pane,
		SidebarActive: pane.BorderForeground(accent),
		Transcript:    pane.Padding(0, 1),
		UserLabel:     lipgloss.NewStyle().Bold(true).Foreground(accent),
		BotLabel:      lipgloss.NewStyle().Bold(true),
		ErrorText:     lipgloss.NewStyle().Foreground(destructive),
		Input:         pane,
		Help:          lipgloss.NewStyle().Foreground(muted),
		Spinner:       lipgloss.NewStyle().Foreground(accent),
	}
}

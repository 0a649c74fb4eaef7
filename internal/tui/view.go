package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

func (m Model) View() string {
	if !m.ready {
		return "\n  Initializing..."
	}

	sidebarStyle := m.styles.Sidebar
	if m.focus == focusSidebar {
		sidebarStyle = m.styles.SidebarActive
	}

	body := lipgloss.JoinHorizontal(lipgloss.Top,
		sidebarStyle.Render(m.sidebar.View()),
		m.styles.Transcript.Render(m.viewport.View()),
	)

	return lipgloss.JoinVertical(lipgloss.Left,
		m.headerView(),
		body,
		m.footerView(),
	)
}

func (m Model) headerView() string {
	title := m.styles.Header.Render("chatfront")

	session := m.ctrl.SessionID()
	if session == "" {
		session = "(unsaved)"
	}
	parts := []string{title, m.styles.Status.Render("session " + session)}
	if m.backendURL != "" {
		parts = append(parts, m.styles.Status.Render(m.backendURL))
	}
	if m.status != "" {
		parts = append(parts, m.styles.Status.Render(m.status))
	}
	return strings.Join(parts, m.styles.Status.Render(" · "))
}

func (m Model) footerView() string {
	line := m.input.View()
	if m.ctrl.Pending() {
		line = m.spinner.View() + " waiting for reply..."
	}

	help := "enter send · tab sessions · ctrl+n new · ctrl+r refresh · ctrl+c quit"
	if m.focus == focusSidebar {
		help = "enter open · d delete · esc back · ctrl+n new · ctrl+c quit"
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		m.styles.Input.Width(max(m.width-2, 10)).Render(line),
		m.styles.Help.Render(help),
	)
}

package tui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"ChatFront/internal/chatbot"
	"ChatFront/internal/session"
)

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.ready = true
		m.refreshTranscript()
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case sessionsLoadedMsg:
		m.refreshSessions()
		m.refreshTranscript()
		return m, nil

	case turnSettledMsg:
		m.refreshSessions()
		m.refreshTranscript()
		if m.focus != focusInput {
			return m, nil
		}
		m.input.Focus()
		return m, textinput.Blink

	case sessionOpMsg:
		// failures were logged by the controller; the view stays as it was
		if msg.err == nil {
			id := msg.id
			if msg.op == "create" {
				id = m.ctrl.SessionID()
			}
			m.status = sessionOpStatus(msg.op, id)
		}
		m.refreshSessions()
		m.refreshTranscript()
		return m, nil

	case healthMsg:
		if msg.err != nil {
			m.status = "backend unreachable"
		} else {
			m.status = "backend " + msg.status
		}
		return m, nil

	case spinner.TickMsg:
		if !m.ctrl.Pending() {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "tab":
		m.toggleFocus()
		return m, nil
	case "ctrl+n":
		return m, m.sessionOp("create", "", m.ctrl.CreateSession)
	case "ctrl+r":
		return m, m.sessionOp("refresh", "", m.ctrl.RefreshSessions)
	case "pgup", "pgdown":
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		return m, cmd
	}

	if m.focus == focusSidebar {
		return m.handleSidebarKey(msg)
	}

	if msg.Type == tea.KeyEnter {
		return m.submit()
	}

	if m.ctrl.Pending() {
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.ctrl.SetInput(m.input.Value())
	return m, cmd
}

func (m Model) handleSidebarKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc":
		m.toggleFocus()
		return m, nil
	case "enter":
		id, ok := m.selectedSession()
		if !ok {
			return m, nil
		}
		return m, m.sessionOp("switch", id, func(ctx context.Context) error {
			return m.ctrl.SwitchSession(ctx, id)
		})
	case "d", "delete":
		id, ok := m.selectedSession()
		if !ok {
			return m, nil
		}
		return m, m.sessionOp("delete", id, func(ctx context.Context) error {
			return m.ctrl.DeleteSession(ctx, id)
		})
	}

	var cmd tea.Cmd
	m.sidebar, cmd = m.sidebar.Update(msg)
	return m, cmd
}

func (m Model) submit() (tea.Model, tea.Cmd) {
	m.ctrl.SetInput(m.input.Value())
	turn, ok := m.ctrl.BeginSubmit()
	if !ok {
		return m, nil
	}

	m.input.Reset()
	m.input.Blur()
	m.refreshTranscript()
	return m, tea.Batch(m.spinner.Tick, m.deliver(turn))
}

func (m *Model) toggleFocus() {
	if m.focus == focusInput {
		m.focus = focusSidebar
		m.input.Blur()
		return
	}
	m.focus = focusInput
	if !m.ctrl.Pending() {
		m.input.Focus()
	}
}

func (m Model) selectedSession() (string, bool) {
	item, ok := m.sidebar.SelectedItem().(sessionItem)
	if !ok {
		return "", false
	}
	return item.summary.ID, true
}

func (m *Model) layout() {
	innerHeight := m.height - headerHeight - footerHeight
	if innerHeight < 3 {
		innerHeight = 3
	}

	frameW, frameH := m.styles.Transcript.GetFrameSize()
	sideFrameW, sideFrameH := m.styles.Sidebar.GetFrameSize()

	sideW := sidebarWidth
	if m.width < sidebarWidth*2 {
		sideW = m.width / 3
	}
	m.sidebar.SetSize(max(sideW-sideFrameW, 1), max(innerHeight-sideFrameH, 1))

	m.viewport.Width = max(m.width-sideW-frameW, 10)
	m.viewport.Height = max(innerHeight-frameH, 1)

	inputFrameW, _ := m.styles.Input.GetFrameSize()
	m.input.Width = max(m.width-inputFrameW-lipgloss.Width(m.input.Prompt)-1, 10)
}

func (m *Model) refreshSessions() {
	current := m.ctrl.SessionID()
	summaries := m.ctrl.Sessions()
	items := make([]list.Item, 0, len(summaries))
	for _, s := range summaries {
		items = append(items, sessionItem{summary: s, current: s.ID == current})
	}
	m.sidebar.SetItems(items)
}

func (m *Model) refreshTranscript() {
	m.viewport.SetContent(m.renderTranscript())
	m.viewport.GotoBottom()
}

func (m Model) renderTranscript() string {
	var b strings.Builder
	for _, msg := range m.ctrl.Visible() {
		switch msg.Role {
		case session.RoleUser:
			b.WriteString(m.styles.UserLabel.Render("You"))
			b.WriteString("\n")
			b.WriteString(msg.Content)
			b.WriteString("\n\n")
		case session.RoleAssistant:
			b.WriteString(m.styles.BotLabel.Render("Bot"))
			b.WriteString("\n")
			b.WriteString(m.renderAssistant(msg.Content))
			b.WriteString("\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (m Model) renderAssistant(content string) string {
	if strings.HasPrefix(content, chatbot.ErrorPrefix) {
		return m.styles.ErrorText.Render(content)
	}
	if m.renderer == nil {
		return content
	}
	out, err := m.renderer.Render(content)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}

func sessionOpStatus(op, id string) string {
	switch op {
	case "create":
		return "started session " + id
	case "switch":
		return "switched to " + id
	case "delete":
		return "deleted " + id
	default:
		return "sessions refreshed"
	}
}

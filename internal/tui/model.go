// Package tui is the full-screen terminal view over a chatbot.Controller:
// a session sidebar, the transcript, and an input line.
package tui

import (
	"context"
	"fmt"

	"ChatFront/internal/chatbot"
	"ChatFront/internal/session"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
)

const (
	sidebarWidth = 34
	headerHeight = 1
	footerHeight = 4
)

type focusArea int

const (
	focusInput focusArea = iota
	focusSidebar
)

// HealthFunc checks the backend, returning its reported status
type HealthFunc func(ctx context.Context) (string, error)

type (
	// sessionsLoadedMsg follows the initial session list fetch
	sessionsLoadedMsg struct{}

	// turnSettledMsg follows Deliver for one turn
	turnSettledMsg struct {
		turnID string
	}

	// sessionOpMsg follows create/switch/delete/refresh
	sessionOpMsg struct {
		op  string
		id  string
		err error
	}

	healthMsg struct {
		status string
		err    error
	}
)

// sessionItem is a list item for the session sidebar
type sessionItem struct {
	summary session.Summary
	current bool
}

func (i sessionItem) Title() string {
	if i.current {
		return "● " + i.summary.ID
	}
	return i.summary.ID
}

func (i sessionItem) Description() string {
	last := "-"
	if !i.summary.LastActive.IsZero() {
		last = i.summary.LastActive.Local().Format("Jan 2 15:04")
	}
	return fmt.Sprintf("%d msgs · %s", i.summary.MessageCount, last)
}

func (i sessionItem) FilterValue() string { return i.summary.ID }

// Model is the bubbletea model for the chat screen
type Model struct {
	ctx    context.Context
	ctrl   *chatbot.Controller
	health HealthFunc

	input    textinput.Model
	viewport viewport.Model
	sidebar  list.Model
	spinner  spinner.Model
	renderer *glamour.TermRenderer
	styles   Styles

	focus      focusArea
	width      int
	height     int
	ready      bool
	backendURL string
	status     string
}

type Option func(*Model)

// WithHealthCheck checks the backend once at start and shows the result in the header
func WithHealthCheck(fn HealthFunc) Option {
	return func(m *Model) {
		m.health = fn
	}
}

// WithBackendURL labels the header with the service address
func WithBackendURL(url string) Option {
	return func(m *Model) {
		m.backendURL = url
	}
}

// WithPlainText disables markdown rendering of replies
func WithPlainText() Option {
	return func(m *Model) {
		m.renderer = nil
	}
}

// New builds the chat screen around ctrl. ctx is used for every backend call.
func New(ctx context.Context, ctrl *chatbot.Controller, opts ...Option) Model {
	styles := DefaultStyles()

	ti := textinput.New()
	ti.Placeholder = "Type a message... (Enter to send, Tab for sessions, Ctrl+C to exit)"
	ti.Prompt = "│ "
	ti.CharLimit = 8192
	ti.Width = 80
	ti.PromptStyle = styles.UserLabel
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Spinner

	vp := viewport.New(80, 20)

	sidebar := list.New(nil, list.NewDefaultDelegate(), sidebarWidth, 20)
	sidebar.Title = "Sessions"
	sidebar.SetShowHelp(false)
	sidebar.SetShowStatusBar(false)
	sidebar.SetFilteringEnabled(false)

	renderer, _ := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(80),
	)

	m := Model{
		ctx:      ctx,
		ctrl:     ctrl,
		input:    ti,
		viewport: vp,
		sidebar:  sidebar,
		spinner:  sp,
		renderer: renderer,
		styles:   styles,
		focus:    focusInput,
	}
	for _, opt := range opts {
		opt(&m)
	}
	m.refreshTranscript()
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.initialize()}
	if m.health != nil {
		cmds = append(cmds, m.checkHealth())
	}
	return tea.Batch(cmds...)
}

func (m Model) initialize() tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		ctrl.Initialize(ctx)
		return sessionsLoadedMsg{}
	}
}

func (m Model) checkHealth() tea.Cmd {
	health, ctx := m.health, m.ctx
	return func() tea.Msg {
		status, err := health(ctx)
		return healthMsg{status: status, err: err}
	}
}

func (m Model) deliver(turn *chatbot.Turn) tea.Cmd {
	ctrl, ctx := m.ctrl, m.ctx
	return func() tea.Msg {
		ctrl.Deliver(ctx, turn)
		return turnSettledMsg{turnID: turn.ID}
	}
}

func (m Model) sessionOp(op, id string, fn func(ctx context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		return sessionOpMsg{op: op, id: id, err: fn(ctx)}
	}
}

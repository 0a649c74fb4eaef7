package tui

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"ChatFront/internal/backend"
	"ChatFront/internal/chatbot"
	"ChatFront/internal/session"
)

// =============================================================================
// FAKE SERVICE
// =============================================================================

type fakeService struct {
	mu       sync.Mutex
	sessions []session.Summary
	stored   map[string][]session.Message
	getErr   error
	reply    string
	chatErr  error
}

func newFakeService() *fakeService {
	return &fakeService{stored: map[string][]session.Message{}, reply: "Hi there"}
}

func (f *fakeService) add(id string, messages ...session.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, session.Summary{ID: id, MessageCount: len(messages)})
	f.stored[id] = messages
}

func (f *fakeService) ListSessions(context.Context) ([]session.Summary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]session.Summary(nil), f.sessions...), nil
}

func (f *fakeService) CreateSession(context.Context) (string, error) {
	f.add("created")
	return "created", nil
}

func (f *fakeService) GetSession(_ context.Context, id string) ([]session.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.stored[id], nil
}

func (f *fakeService) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.sessions[:0]
	for _, s := range f.sessions {
		if s.ID != id {
			kept = append(kept, s)
		}
	}
	f.sessions = kept
	delete(f.stored, id)
	return nil
}

func (f *fakeService) Chat(context.Context, backend.ChatRequest) (backend.ChatResponse, error) {
	if f.chatErr != nil {
		return backend.ChatResponse{}, f.chatErr
	}
	return backend.ChatResponse{
		Reply:     session.Message{Role: session.RoleAssistant, Content: f.reply},
		SessionID: "s-1",
	}, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func newTestModel(t *testing.T, svc chatbot.Service, opts ...Option) (Model, *chatbot.Controller) {
	t.Helper()
	ctrl, err := chatbot.New(svc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	opts = append(opts, WithPlainText())
	m := New(context.Background(), ctrl, opts...)
	m = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	return m, ctrl
}

func update(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	next, _ := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok, "Update must return a tui.Model")
	return out
}

// collect runs cmd and any batched children, returning the messages they produce
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, collect(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

// settle runs cmd and feeds everything it produces back into the model
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	for _, msg := range collect(cmd) {
		m = update(t, m, msg)
	}
	return m
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	return update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
}

func press(t *testing.T, m Model, key tea.KeyMsg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(key)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

// =============================================================================
// TESTS
// =============================================================================

func TestView_BeforeWindowSize(t *testing.T) {
	ctrl, err := chatbot.New(newFakeService(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	m := New(context.Background(), ctrl, WithPlainText())
	require.Contains(t, m.View(), "Initializing")
}

func TestView_ShowsGreetingAndUnsavedSession(t *testing.T) {
	m, _ := newTestModel(t, newFakeService())

	view := m.View()
	require.Contains(t, view, session.Greeting)
	require.Contains(t, view, "(unsaved)")
	require.NotContains(t, view, session.SystemPrompt)
}

func TestSubmit_DeliversReply(t *testing.T) {
	m, ctrl := newTestModel(t, newFakeService())

	m = typeText(t, m, "Hello")
	require.Equal(t, "Hello", ctrl.Input())

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	require.True(t, ctrl.Pending())
	require.Empty(t, m.input.Value())
	require.Contains(t, m.View(), "waiting for reply")

	m = settle(t, m, cmd)

	require.False(t, ctrl.Pending())
	require.Equal(t, "s-1", ctrl.SessionID())
	require.True(t, m.input.Focused())
	require.Contains(t, m.View(), "Hi there")
}

func TestSubmit_ErrorMarker(t *testing.T) {
	svc := newFakeService()
	svc.chatErr = errors.New("Network error")
	m, ctrl := newTestModel(t, svc)

	m = typeText(t, m, "Hello")
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, cmd)

	visible := ctrl.Visible()
	require.Equal(t, chatbot.ErrorPrefix+"Network error", visible[len(visible)-1].Content)
	require.Contains(t, m.View(), "Network error")
}

func TestSubmit_BlankInputIsIgnored(t *testing.T) {
	m, ctrl := newTestModel(t, newFakeService())

	m = typeText(t, m, "   ")
	_, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	require.Nil(t, cmd)
	require.False(t, ctrl.Pending())
	require.Len(t, ctrl.Visible(), 1)
}

func TestSubmit_TypingBlockedWhilePending(t *testing.T) {
	m, ctrl := newTestModel(t, newFakeService())

	m = typeText(t, m, "Hello")
	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = typeText(t, m, "more")

	require.Empty(t, m.input.Value())
	require.Empty(t, ctrl.Input())
}

func TestInit_LoadsSessionsIntoSidebar(t *testing.T) {
	svc := newFakeService()
	svc.add("abc123")
	svc.add("def456")
	m, _ := newTestModel(t, svc)

	m = settle(t, m, m.Init())

	require.Len(t, m.sidebar.Items(), 2)
	require.Contains(t, m.View(), "abc123")
}

func TestSidebar_SwitchSession(t *testing.T) {
	svc := newFakeService()
	svc.add("abc123",
		session.Message{Role: session.RoleUser, Content: "Hello"},
		session.Message{Role: session.RoleAssistant, Content: "Stored reply"},
	)
	m, ctrl := newTestModel(t, svc)
	m = settle(t, m, m.Init())

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	require.Equal(t, focusSidebar, m.focus)

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, cmd)

	require.Equal(t, "abc123", ctrl.SessionID())
	require.Equal(t, "switched to abc123", m.status)
	require.Contains(t, m.View(), "Stored reply")
}

func TestSidebar_FailedSwitchLeavesViewAlone(t *testing.T) {
	svc := newFakeService()
	svc.add("abc123")
	svc.getErr = errors.New("boom")
	m, ctrl := newTestModel(t, svc)
	m = settle(t, m, m.Init())

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, cmd)

	require.Empty(t, ctrl.SessionID())
	require.Empty(t, m.status)
	require.NotContains(t, m.View(), "boom")
}

func TestSidebar_DeleteSession(t *testing.T) {
	svc := newFakeService()
	svc.add("abc123")
	m, _ := newTestModel(t, svc)
	m = settle(t, m, m.Init())

	m, _ = press(t, m, tea.KeyMsg{Type: tea.KeyTab})
	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("d")})
	m = settle(t, m, cmd)

	require.Empty(t, m.sidebar.Items())
	require.Equal(t, "deleted abc123", m.status)
}

func TestCreateSession(t *testing.T) {
	m, ctrl := newTestModel(t, newFakeService())

	m, cmd := press(t, m, tea.KeyMsg{Type: tea.KeyCtrlN})
	m = settle(t, m, cmd)

	require.Equal(t, "created", ctrl.SessionID())
	require.Equal(t, "started session created", m.status)
	require.Len(t, m.sidebar.Items(), 1)
}

func TestHealthStatus(t *testing.T) {
	m, _ := newTestModel(t, newFakeService(), WithHealthCheck(func(context.Context) (string, error) {
		return "ok", nil
	}))
	m = update(t, m, healthMsg{status: "ok"})
	require.Contains(t, m.View(), "backend ok")

	m = update(t, m, healthMsg{err: errors.New("refused")})
	require.Contains(t, m.View(), "backend unreachable")
}

func TestSessionItem(t *testing.T) {
	item := sessionItem{summary: session.Summary{ID: "abc123", MessageCount: 3}, current: true}

	require.Equal(t, "● abc123", item.Title())
	require.Equal(t, "3 msgs · -", item.Description())
	require.Equal(t, "abc123", item.FilterValue())
}

package chatbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"ChatFront/internal/backend"
	"ChatFront/internal/config"
	"ChatFront/internal/session"
)

// Service is the subset of the remote Session/Chat service the controller depends on.
// *backend.Client satisfies it.
type Service interface {
	ListSessions(ctx context.Context) ([]session.Summary, error)
	CreateSession(ctx context.Context) (string, error)
	GetSession(ctx context.Context, id string) ([]session.Message, error)
	DeleteSession(ctx context.Context, id string) error
	Chat(ctx context.Context, req backend.ChatRequest) (backend.ChatResponse, error)
}

// Controller owns all client-side chat state: the transcript, the current session,
// the cached session list, the pending flag and the input buffer.
//
// Every view mutates it through the methods below; readers get copies.
type Controller struct {
	svc         Service
	logger      *slog.Logger
	temperature float64
	model       string

	mu         sync.Mutex
	transcript []session.Message
	sessionID  string
	sessions   []session.Summary
	pending    bool
	input      string

	// epoch changes whenever the transcript is replaced wholesale; a Turn from an
	// older epoch no longer belongs to what is on screen.
	epoch uint64
}

type Option func(*Controller)

// WithModel forwards a model name with every chat request
func WithModel(model string) Option {
	return func(c *Controller) {
		c.model = model
	}
}

// WithTemperature overrides config.Temperature
func WithTemperature(temperature float64) Option {
	return func(c *Controller) {
		c.temperature = temperature
	}
}

// New creates a controller showing the default transcript with no session selected.
// Call Initialize to load the session list.
func New(svc Service, logger *slog.Logger, opts ...Option) (*Controller, error) {
	if svc == nil {
		return nil, errors.New("chatbot: service must not be nil")
	}
	if logger == nil {
		return nil, errors.New("chatbot: logger must not be nil")
	}

	c := &Controller{
		svc:         svc,
		logger:      logger,
		temperature: config.Temperature,
		transcript:  session.DefaultTranscript(),
		sessions:    []session.Summary{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Initialize resets to the default transcript with no session and fetches the session list.
func (c *Controller) Initialize(ctx context.Context) {
	c.mu.Lock()
	c.resetLocked("")
	c.mu.Unlock()

	_ = c.RefreshSessions(ctx)
}

// resetLocked replaces the transcript and current session. Callers hold c.mu.
func (c *Controller) resetLocked(sessionID string, transcript ...session.Message) {
	if len(transcript) == 0 {
		transcript = session.DefaultTranscript()
	}
	c.transcript = transcript
	c.sessionID = sessionID
	c.epoch++
}

// Transcript returns a copy of the full transcript, system entries included
func (c *Controller) Transcript() []session.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]session.Message, len(c.transcript))
	copy(out, c.transcript)
	return out
}

// Visible returns the transcript as displayed to the user
func (c *Controller) Visible() []session.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return session.Visible(c.transcript)
}

// SessionID returns the current session id, or "" for the unsaved default session
func (c *Controller) SessionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sessionID
}

// Sessions returns a copy of the cached session list
func (c *Controller) Sessions() []session.Summary {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]session.Summary, len(c.sessions))
	copy(out, c.sessions)
	return out
}

// Pending reports whether a chat request is outstanding
func (c *Controller) Pending() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

func (c *Controller) Input() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.input
}

func (c *Controller) SetInput(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.input = text
}

// RefreshSessions re-fetches the session list and replaces the cache wholesale.
// Failures are logged and leave the cache untouched.
func (c *Controller) RefreshSessions(ctx context.Context) error {
	list, err := c.svc.ListSessions(ctx)
	if err != nil {
		c.logger.Warn("failed to load sessions", "error", err)
		return fmt.Errorf("refresh sessions: %w", err)
	}
	if list == nil {
		list = []session.Summary{}
	}

	c.mu.Lock()
	c.sessions = list
	c.mu.Unlock()

	c.logger.Debug("sessions refreshed", "count", len(list))
	return nil
}

// CreateSession asks the service for a new session, makes it current with the
// default transcript and refreshes the list.
func (c *Controller) CreateSession(ctx context.Context) error {
	id, err := c.svc.CreateSession(ctx)
	if err != nil {
		c.logger.Warn("failed to create session", "error", err)
		return fmt.Errorf("create session: %w", err)
	}

	c.mu.Lock()
	c.resetLocked(id)
	c.mu.Unlock()

	c.logger.Info("created new session", "session_id", id)
	_ = c.RefreshSessions(ctx)
	return nil
}

// SwitchSession loads the stored transcript of id and makes it current.
// An empty stored transcript shows the default one instead.
func (c *Controller) SwitchSession(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("switch session: id must not be empty")
	}

	messages, err := c.svc.GetSession(ctx, id)
	if err != nil {
		c.logger.Warn("failed to load session", "session_id", id, "error", err)
		return fmt.Errorf("switch session %s: %w", id, err)
	}

	c.mu.Lock()
	c.resetLocked(id, messages...)
	c.mu.Unlock()

	c.logger.Info("loaded existing session", "session_id", id, "message_count", len(messages))
	return nil
}

// DeleteSession removes id on the service. Deleting the current session falls back
// to the default transcript with no session selected.
func (c *Controller) DeleteSession(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("delete session: id must not be empty")
	}

	if err := c.svc.DeleteSession(ctx, id); err != nil {
		c.logger.Warn("failed to delete session", "session_id", id, "error", err)
		return fmt.Errorf("delete session %s: %w", id, err)
	}

	c.mu.Lock()
	wasCurrent := c.sessionID == id
	if wasCurrent {
		c.resetLocked("")
	}
	c.mu.Unlock()

	c.logger.Info("deleted session", "session_id", id, "was_current", wasCurrent)
	_ = c.RefreshSessions(ctx)
	return nil
}

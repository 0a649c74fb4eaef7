package chatbot

import (
	"context"
	"fmt"
	"strings"

	"ChatFront/internal/backend"
	"ChatFront/internal/session"

	"github.com/google/uuid"
)

// ErrorPrefix starts the assistant message that replaces a failed reply
const ErrorPrefix = "Error contacting backend: "

// Turn is one chat request in flight. It records which session and epoch it was
// issued from so a late reply can be recognised as stale.
type Turn struct {
	ID        string
	SessionID string
	Messages  []session.Message

	epoch uint64
}

// Send submits text as a user message and waits for the reply.
// It returns false without touching state when text is blank or a request is pending.
func (c *Controller) Send(ctx context.Context, text string) bool {
	turn, ok := c.BeginSend(text)
	if !ok {
		return false
	}
	c.Deliver(ctx, turn)
	return true
}

// Submit sends the input buffer, clearing it only if a request was issued.
func (c *Controller) Submit(ctx context.Context) bool {
	turn, ok := c.BeginSubmit()
	if !ok {
		return false
	}
	c.Deliver(ctx, turn)
	return true
}

// BeginSubmit is the first half of Submit, for views that deliver asynchronously.
func (c *Controller) BeginSubmit() (*Turn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	turn, ok := c.beginLocked(c.input)
	if ok {
		c.input = ""
	}
	return turn, ok
}

// BeginSend appends the user message optimistically, raises the pending flag and
// returns the Turn to pass to Deliver.
func (c *Controller) BeginSend(text string) (*Turn, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.beginLocked(text)
}

func (c *Controller) beginLocked(text string) (*Turn, bool) {
	text = strings.TrimSpace(text)
	if text == "" || c.pending {
		return nil, false
	}

	userMsg := session.Message{Role: session.RoleUser, Content: text}

	// The service keeps prior turns itself; it only needs the system prompt once,
	// with the first user message of a transcript.
	var outgoing []session.Message
	if !hasUserMessage(c.transcript) {
		for _, msg := range c.transcript {
			if msg.Role == session.RoleSystem {
				outgoing = append(outgoing, msg)
			}
		}
	}
	outgoing = append(outgoing, userMsg)

	c.transcript = append(c.transcript, userMsg)
	c.pending = true

	return &Turn{
		ID:        uuid.NewString(),
		SessionID: c.sessionID,
		Messages:  outgoing,
		epoch:     c.epoch,
	}, true
}

// Deliver performs the network half of a send and settles the turn: the reply, or
// an error marker, is appended and the pending flag cleared. A turn whose session
// was switched away from in the meantime is dropped.
func (c *Controller) Deliver(ctx context.Context, turn *Turn) {
	resp, err := c.svc.Chat(ctx, backend.ChatRequest{
		Messages:    turn.Messages,
		Temperature: c.temperature,
		SessionID:   turn.SessionID,
		Model:       c.model,
	})

	c.mu.Lock()
	c.pending = false

	if turn.epoch != c.epoch {
		c.mu.Unlock()
		c.logger.Info("discarded reply for inactive session",
			"turn_id", turn.ID,
			"session_id", turn.SessionID,
			"error", err,
		)
		if err == nil && turn.SessionID == "" && resp.SessionID != "" {
			_ = c.RefreshSessions(ctx)
		}
		return
	}

	if err != nil {
		c.transcript = append(c.transcript, session.Message{
			Role:    session.RoleAssistant,
			Content: fmt.Sprintf("%s%v", ErrorPrefix, err),
		})
		c.mu.Unlock()
		c.logger.Error("failed to send message", "turn_id", turn.ID, "session_id", turn.SessionID, "error", err)
		return
	}

	c.transcript = append(c.transcript, resp.Reply)
	adopted := c.sessionID == "" && resp.SessionID != ""
	if adopted {
		c.sessionID = resp.SessionID
	}
	c.mu.Unlock()

	c.logger.Info("reply received", "turn_id", turn.ID, "session_id", resp.SessionID, "adopted", adopted)
	if adopted {
		_ = c.RefreshSessions(ctx)
	}
}

func hasUserMessage(messages []session.Message) bool {
	for _, msg := range messages {
		if msg.Role == session.RoleUser {
			return true
		}
	}
	return false
}

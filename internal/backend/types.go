package backend

import "ChatFront/internal/session"

// ChatRequest represents the request body for POST /chat.
// Messages carries only the newly composed turn; the service keeps prior turns by SessionID.
type ChatRequest struct {
	Messages    []session.Message `json:"messages"`
	Temperature float64           `json:"temperature"`
	SessionID   string            `json:"session_id,omitempty"`
	Model       string            `json:"model,omitempty"`
}

// ChatResponse represents the response from POST /chat
type ChatResponse struct {
	Reply     session.Message `json:"reply"`
	SessionID string          `json:"session_id"`
}

// CreateSessionResponse represents the response from POST /session/create
type CreateSessionResponse struct {
	SessionID string `json:"session_id"`
}

// SessionDetailResponse represents the response from GET /session/{id}
type SessionDetailResponse struct {
	Messages []session.Message `json:"messages"`
}

// SessionListEnvelope is the wrapped form of GET /sessions some services return
type SessionListEnvelope struct {
	Sessions []session.Summary `json:"sessions"`
}

// HealthResponse represents the response from GET /health
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the JSON error body services return alongside non-2xx statuses
type ErrorResponse struct {
	Error string `json:"error"`
}

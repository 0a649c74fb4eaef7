package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"ChatFront/internal/session"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "ChatFront/internal/backend"

	// DefaultMaxResponseBytes bounds a 2xx body; long session transcripts can run to megabytes
	DefaultMaxResponseBytes = 64 << 20
	maxErrorBytes           = 4096
)

// Client talks to the remote Session/Chat service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
	tracer     trace.Tracer
	meter      metric.Meter

	maxResponseBytes int64

	duration metric.Float64Histogram
	failures metric.Int64Counter
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which has no timeout.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithMaxResponseBytes overrides DefaultMaxResponseBytes
func WithMaxResponseBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxResponseBytes = n
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Client) {
		c.tracer = tracer
	}
}

func WithMeter(meter metric.Meter) Option {
	return func(c *Client) {
		c.meter = meter
	}
}

// NewClient creates a client for the service rooted at baseURL
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("backend: base URL must not be empty")
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("backend: invalid base URL: %w", err)
	}

	c := &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		logger:     slog.Default(),
		tracer:     otel.Tracer(instrumentationName),
		meter:      otel.Meter(instrumentationName),

		maxResponseBytes: DefaultMaxResponseBytes,
	}
	for _, opt := range opts {
		opt(c)
	}

	var err error
	c.duration, err = c.meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("HTTP request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("backend: failed to create duration histogram: %w", err)
	}
	c.failures, err = c.meter.Int64Counter(
		"backend.request.errors",
		metric.WithDescription("Requests to the session service that did not succeed"),
	)
	if err != nil {
		return nil, fmt.Errorf("backend: failed to create error counter: %w", err)
	}

	return c, nil
}

// BaseURL returns the service root this client was built for
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Health calls GET /health and returns the reported status
func (c *Client) Health(ctx context.Context) (string, error) {
	var out HealthResponse
	if err := c.do(ctx, "health", http.MethodGet, "/health", nil, &out); err != nil {
		return "", err
	}
	return out.Status, nil
}

// ListSessions calls GET /sessions. Both a bare array and a {"sessions": [...]}
// envelope are accepted; order is preserved as returned.
func (c *Client) ListSessions(ctx context.Context) ([]session.Summary, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "list_sessions", http.MethodGet, "/sessions", nil, &raw); err != nil {
		return nil, err
	}

	trimmed := bytes.TrimSpace(raw)
	switch {
	case bytes.Equal(trimmed, []byte("null")):
		return []session.Summary{}, nil
	case trimmed[0] == '[':
		var list []session.Summary
		if err := json.Unmarshal(trimmed, &list); err != nil {
			return nil, malformed("list_sessions: %v", err)
		}
		return list, nil
	case trimmed[0] == '{':
		var env SessionListEnvelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, malformed("list_sessions: %v", err)
		}
		if env.Sessions == nil {
			return []session.Summary{}, nil
		}
		return env.Sessions, nil
	default:
		return nil, malformed("list_sessions: unexpected body %.32q", trimmed)
	}
}

// CreateSession calls POST /session/create and returns the new session id
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out CreateSessionResponse
	if err := c.do(ctx, "create_session", http.MethodPost, "/session/create", nil, &out); err != nil {
		return "", err
	}
	if out.SessionID == "" {
		return "", malformed("create_session: missing session_id")
	}
	return out.SessionID, nil
}

// GetSession calls GET /session/{id} and returns its stored transcript
func (c *Client) GetSession(ctx context.Context, id string) ([]session.Message, error) {
	if id == "" {
		return nil, errors.New("backend: session id must not be empty")
	}
	var out SessionDetailResponse
	if err := c.do(ctx, "get_session", http.MethodGet, "/session/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	for i, msg := range out.Messages {
		if !msg.Role.Valid() {
			return nil, malformed("get_session: message %d has role %q", i, msg.Role)
		}
	}
	if out.Messages == nil {
		return []session.Message{}, nil
	}
	return out.Messages, nil
}

// DeleteSession calls DELETE /session/{id}
func (c *Client) DeleteSession(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("backend: session id must not be empty")
	}
	return c.do(ctx, "delete_session", http.MethodDelete, "/session/"+url.PathEscape(id), nil, nil)
}

// Chat calls POST /chat
func (c *Client) Chat(ctx context.Context, req ChatRequest) (ChatResponse, error) {
	var out ChatResponse
	if err := c.do(ctx, "chat", http.MethodPost, "/chat", req, &out); err != nil {
		return ChatResponse{}, err
	}
	if !out.Reply.Role.Valid() {
		return ChatResponse{}, malformed("chat: reply has role %q", out.Reply.Role)
	}
	return out, nil
}

// do sends one JSON request and decodes a JSON response into out (when non-nil).
func (c *Client) do(ctx context.Context, op, method, path string, body, out any) error {
	endpoint := c.baseURL + path
	requestID := uuid.NewString()

	ctx, span := c.tracer.Start(ctx, "backend."+op, trace.WithAttributes(
		attribute.String("http.request.method", method),
		attribute.String("url.full", endpoint),
		attribute.String("request.id", requestID),
	))
	defer span.End()

	start := time.Now()

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return c.fail(ctx, span, op, fmt.Errorf("failed to marshal %s request: %w", op, err))
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return c.fail(ctx, span, op, fmt.Errorf("failed to create %s request: %w", op, err))
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-Id", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return c.fail(ctx, span, op, fmt.Errorf("%s request failed: %w", op, err))
	}
	defer func() { _ = resp.Body.Close() }()

	duration := time.Since(start)
	attrs := metric.WithAttributes(
		attribute.String("backend.operation", op),
		attribute.Int("http.response.status_code", resp.StatusCode),
	)
	c.duration.Record(ctx, float64(duration.Milliseconds()), attrs)
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		buf, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBytes))
		return c.fail(ctx, span, op, &HTTPStatusError{
			StatusCode: resp.StatusCode,
			URL:        endpoint,
			Body:       strings.TrimSpace(string(buf)),
		})
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxResponseBytes+1))
	if err != nil {
		return c.fail(ctx, span, op, fmt.Errorf("failed to read %s response: %w", op, err))
	}
	if int64(len(raw)) > c.maxResponseBytes {
		return c.fail(ctx, span, op, fmt.Errorf("%s: %w", op, &ResponseTooLargeError{Limit: c.maxResponseBytes}))
	}

	c.logger.Debug("backend request",
		"op", op,
		"status", resp.StatusCode,
		"duration_ms", duration.Milliseconds(),
		"request_id", requestID,
	)

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return c.fail(ctx, span, op, malformed("%s: empty body", op))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return c.fail(ctx, span, op, malformed("%s: %v", op, err))
	}
	return nil
}

func (c *Client) fail(ctx context.Context, span trace.Span, op string, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	c.failures.Add(ctx, 1, metric.WithAttributes(attribute.String("backend.operation", op)))
	c.logger.Debug("backend request failed", "op", op, "error", err)
	return err
}

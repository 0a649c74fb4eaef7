package devserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/cors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"ChatFront/internal/backend"
	"ChatFront/internal/config"
	"ChatFront/internal/session"
)

const DefaultFrontendOrigin = "http://localhost:3000"

// Server serves the Session/Chat contract over HTTP
type Server struct {
	store     Store
	responder Responder
	logger    *slog.Logger
	tracer    trace.Tracer
	origins   []string
	now       func() time.Time

	// turns on one session run one at a time so each sees the previous reply
	locksMu sync.Mutex
	locks   map[string]*sessionLock
}

type sessionLock struct {
	mu   sync.Mutex
	refs int
}

type Option func(*Server)

// WithFrontendOrigin adds origin to the CORS allow list
func WithFrontendOrigin(origin string) Option {
	return func(s *Server) {
		if origin != "" {
			s.origins = append(s.origins, origin)
		}
	}
}

// WithTracer sets the tracer for per-request spans; the global provider is used otherwise
func WithTracer(tracer trace.Tracer) Option {
	return func(s *Server) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// WithClock overrides time.Now for session timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Server) {
		s.now = now
	}
}

func NewServer(store Store, responder Responder, logger *slog.Logger, opts ...Option) (*Server, error) {
	if store == nil {
		return nil, errors.New("devserver: store must not be nil")
	}
	if responder == nil {
		return nil, errors.New("devserver: responder must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		store:     store,
		responder: responder,
		logger:    logger,
		origins:   []string{DefaultFrontendOrigin, "http://127.0.0.1:3000"},
		tracer:    otel.Tracer(instrumentationName),
		now:       time.Now,
		locks:     make(map[string]*sessionLock),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the router wrapped in CORS
func (s *Server) Handler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery(), s.tracing(), s.requestLogger())

	r.GET("/health", s.health)
	r.GET("/sessions", s.listSessions)
	r.POST("/session/create", s.createSession)
	r.GET("/session/:id", s.getSession)
	r.DELETE("/session/:id", s.deleteSession)
	r.POST("/chat", s.chat)

	c := cors.New(cors.Options{
		AllowedOrigins:   s.origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})
	return c.Handler(r)
}

// tracing opens one server span per request, named after the matched route
func (s *Server) tracing() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		ctx, span := s.tracer.Start(c.Request.Context(), c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				attribute.String("http.route", route),
				attribute.String("request.id", c.GetHeader("X-Request-Id")),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.response.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// lockSession serialises work on one session id and returns the unlock func
func (s *Server) lockSession(id string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[id]
	if !ok {
		l = &sessionLock{}
		s.locks[id] = l
	}
	l.refs++
	s.locksMu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.locksMu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, id)
		}
		s.locksMu.Unlock()
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Info("request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", c.GetHeader("X-Request-Id"),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, backend.HealthResponse{Status: "ok"})
}

func (s *Server) listSessions(c *gin.Context) {
	list, err := s.store.List(c.Request.Context())
	if err != nil {
		s.internalError(c, "failed to list sessions", err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) createSession(c *gin.Context) {
	summary, err := s.store.Create(c.Request.Context(), uuid.NewString(), s.now())
	if err != nil {
		s.internalError(c, "failed to create session", err)
		return
	}
	s.logger.Info("created session", "session_id", summary.ID)
	c.JSON(http.StatusOK, backend.CreateSessionResponse{SessionID: summary.ID})
}

func (s *Server) getSession(c *gin.Context) {
	id := c.Param("id")
	messages, err := s.store.Messages(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, backend.ErrorResponse{Error: "session not found"})
		return
	}
	if err != nil {
		s.internalError(c, "failed to load session", err)
		return
	}
	c.JSON(http.StatusOK, backend.SessionDetailResponse{Messages: messages})
}

func (s *Server) deleteSession(c *gin.Context) {
	id := c.Param("id")
	err := s.store.Delete(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		c.JSON(http.StatusNotFound, backend.ErrorResponse{Error: "session not found"})
		return
	}
	if err != nil {
		s.internalError(c, "failed to delete session", err)
		return
	}
	s.logger.Info("deleted session", "session_id", id)
	c.JSON(http.StatusOK, gin.H{"deleted": id})
}

func (s *Server) chat(c *gin.Context) {
	// an absent temperature keeps the default; an explicit 0 is kept
	req := backend.ChatRequest{Temperature: config.Temperature}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, backend.ErrorResponse{Error: "invalid request body: " + err.Error()})
		return
	}
	if err := validateMessages(req.Messages); err != nil {
		c.JSON(http.StatusBadRequest, backend.ErrorResponse{Error: err.Error()})
		return
	}

	ctx := c.Request.Context()
	id := req.SessionID
	isNew := id == ""
	if isNew {
		id = uuid.NewString()
	}

	unlock := s.lockSession(id)
	defer unlock()

	var history []session.Message
	if !isNew {
		var err error
		history, err = s.store.Messages(ctx, id)
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, backend.ErrorResponse{Error: "session not found"})
			return
		}
		if err != nil {
			s.internalError(c, "failed to load session", err)
			return
		}
	}
	history = append(history, req.Messages...)

	text, err := s.responder.Reply(ctx, history, req.Model, req.Temperature)
	if err != nil {
		s.internalError(c, "failed to generate reply", err)
		return
	}
	reply := session.Message{Role: session.RoleAssistant, Content: text}
	turn := append(append([]session.Message{}, req.Messages...), reply)

	// a new session is only stored once there is a reply to put in it
	if isNew {
		if _, err := s.store.Create(ctx, id, s.now()); err != nil {
			s.internalError(c, "failed to create session", err)
			return
		}
		s.logger.Info("created session for chat", "session_id", id)
	}

	if err := s.store.Append(ctx, id, s.now(), turn...); err != nil {
		if isNew {
			if delErr := s.store.Delete(ctx, id); delErr != nil && !errors.Is(delErr, ErrNotFound) {
				s.logger.Warn("failed to remove session after failed save", "session_id", id, "error", delErr)
			}
		}
		if errors.Is(err, ErrNotFound) {
			c.JSON(http.StatusNotFound, backend.ErrorResponse{Error: "session not found"})
			return
		}
		s.internalError(c, "failed to save messages", err)
		return
	}

	trace.SpanFromContext(ctx).SetAttributes(attribute.String("session.id", id))
	c.JSON(http.StatusOK, backend.ChatResponse{Reply: reply, SessionID: id})
}

func (s *Server) internalError(c *gin.Context, msg string, err error) {
	s.logger.Error(msg, "path", c.FullPath(), "error", err)
	c.JSON(http.StatusInternalServerError, backend.ErrorResponse{Error: msg})
}

func validateMessages(messages []session.Message) error {
	if len(messages) == 0 {
		return errors.New("messages must not be empty")
	}
	for i, msg := range messages {
		if !msg.Role.Valid() {
			return fmt.Errorf("messages[%d]: invalid role %q", i, msg.Role)
		}
	}
	return nil
}

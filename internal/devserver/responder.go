package devserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/genai"

	"ChatFront/internal/session"
)

const (
	DefaultGeminiModel = "gemini-2.0-flash"

	instrumentationName = "ChatFront/internal/devserver"
)

// Responder produces the assistant reply for a conversation
type Responder interface {
	Reply(ctx context.Context, history []session.Message, model string, temperature float64) (string, error)
}

// DemoResponder echoes the last user message back
type DemoResponder struct{}

func (DemoResponder) Reply(_ context.Context, history []session.Message, _ string, _ float64) (string, error) {
	return "(Demo mode) You said: " + lastUserMessage(history) + "\nSet GEMINI_API_KEY to enable real model responses.", nil
}

func lastUserMessage(history []session.Message) string {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == session.RoleUser {
			return history[i].Content
		}
	}
	return ""
}

// FallbackResponder answers with a demo echo when next fails. It sits outside any
// CachingResponder so a fallback reply is never cached.
type FallbackResponder struct {
	next   Responder
	logger *slog.Logger
}

func NewFallbackResponder(next Responder, logger *slog.Logger) *FallbackResponder {
	if logger == nil {
		logger = slog.Default()
	}
	return &FallbackResponder{next: next, logger: logger}
}

func (f *FallbackResponder) Reply(ctx context.Context, history []session.Message, model string, temperature float64) (string, error) {
	reply, err := f.next.Reply(ctx, history, model, temperature)
	if err == nil {
		return reply, nil
	}
	f.logger.Warn("model call failed, using demo reply", "model", model, "error", err)
	return "(Demo mode) You said: " + lastUserMessage(history) + "\nThe model call failed; this is a placeholder reply.", nil
}

// GeminiConfig configures a GeminiResponder
type GeminiConfig struct {
	APIKey string
	Model  string // used when a request names none; defaults to DefaultGeminiModel
	// BaseURL overrides the Gemini API endpoint, e.g. for a proxy
	BaseURL    string
	HTTPClient *http.Client
}

// GeminiResponder answers with a Gemini model. Failed calls are returned as errors;
// wrap it in a FallbackResponder for the demo reply.
type GeminiResponder struct {
	client *genai.Client
	model  string
	tracer trace.Tracer
}

func NewGeminiResponder(ctx context.Context, cfg GeminiConfig, tracer trace.Tracer) (*GeminiResponder, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultGeminiModel
	}
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      cfg.APIKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPClient:  cfg.HTTPClient,
		HTTPOptions: genai.HTTPOptions{BaseURL: cfg.BaseURL},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	return &GeminiResponder{client: client, model: cfg.Model, tracer: tracer}, nil
}

func (g *GeminiResponder) Reply(ctx context.Context, history []session.Message, model string, temperature float64) (string, error) {
	if model == "" {
		model = g.model
	}

	ctx, span := g.tracer.Start(ctx, "gemini.generate_content", trace.WithAttributes(
		attribute.String("gen_ai.request.model", model),
		attribute.Float64("gen_ai.request.temperature", temperature),
		attribute.Int("gen_ai.request.messages", len(history)),
	))
	defer span.End()

	system, contents := toGeminiContents(history)
	if len(contents) == 0 {
		err := errors.New("gemini: conversation has no user or assistant messages")
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	temp := float32(temperature)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	result, err := g.client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("gemini %s: %w", model, err)
	}
	return result.Text(), nil
}

// toGeminiContents splits system prompts out of history and maps the rest to
// Gemini's user/model roles.
func toGeminiContents(history []session.Message) (string, []*genai.Content) {
	var (
		system   []string
		contents []*genai.Content
	)
	for _, msg := range history {
		switch msg.Role {
		case session.RoleSystem:
			system = append(system, msg.Content)
		case session.RoleUser:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleUser))
		case session.RoleAssistant:
			contents = append(contents, genai.NewContentFromText(msg.Content, genai.RoleModel))
		}
	}
	return strings.Join(system, "\n\n"), contents
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"ChatFront/internal/config"
	"ChatFront/internal/devserver"
	"ChatFront/internal/telemetry"
)

const serviceName = "chatfront-devserver"

var (
	addr     string
	dbPath   string
	logDir   string
	debug    bool
	cacheTTL time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "chatfront-devserver",
	Short: "Local Session/Chat service for developing chatfront",
	Long: `Serves /health, /sessions, /session/create, /session/{id} and /chat.

Environment:
  GEMINI_API_KEY   enables Gemini replies; without it replies are a demo echo
  GEMINI_MODEL     model used when a request names none (default gemini-2.0-flash)
  GEMINI_BASE_URL  alternative Gemini API endpoint
  FRONTEND_ORIGIN  extra CORS origin (default http://localhost:3000)`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&addr, "addr", ":8000", "Listen address")
	rootCmd.Flags().StringVar(&dbPath, "db", "", "SQLite database file; sessions are kept in memory when empty")
	rootCmd.Flags().StringVar(&logDir, "log-dir", config.DefaultLogDir, "Directory for log files")
	rootCmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.Flags().DurationVar(&cacheTTL, "cache-ttl", 0, "Reuse model replies for identical conversations for this long (0 disables)")
}

func run(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnv(config.EnvFile); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, closeLog, err := telemetry.InitLogger(logDir, serviceName, debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()

	tracer, _, shutdown, err := telemetry.InitTelemetry(ctx, logDir, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdown()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	responder, err := newResponder(ctx, logger, tracer)
	if err != nil {
		return err
	}

	frontendOrigin := os.Getenv("FRONTEND_ORIGIN")
	if frontendOrigin == "" {
		frontendOrigin = devserver.DefaultFrontendOrigin
	}

	gin.SetMode(gin.ReleaseMode)
	srv, err := devserver.NewServer(store, responder, logger,
		devserver.WithFrontendOrigin(frontendOrigin),
		devserver.WithTracer(tracer),
	)
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr, "db", dbPath)
		errCh <- httpServer.ListenAndServe()
	}()
	fmt.Fprintf(cmd.OutOrStdout(), "chatfront-devserver listening on %s\n", addr)

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down")
	return httpServer.Shutdown(shutdownCtx)
}

func openStore() (devserver.Store, error) {
	if dbPath == "" {
		return devserver.NewMemoryStore(), nil
	}
	store, err := devserver.OpenSQLite(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

// newResponder builds fallback -> cache -> gemini, so a failed model call is
// answered with the demo reply but never cached
func newResponder(ctx context.Context, logger *slog.Logger, tracer trace.Tracer) (devserver.Responder, error) {
	apiKey := os.Getenv("GEMINI_API_KEY")
	if apiKey == "" {
		logger.Info("GEMINI_API_KEY not set, using demo replies")
		return devserver.DemoResponder{}, nil
	}

	gemini, err := devserver.NewGeminiResponder(ctx, devserver.GeminiConfig{
		APIKey:  apiKey,
		Model:   os.Getenv("GEMINI_MODEL"),
		BaseURL: os.Getenv("GEMINI_BASE_URL"),
	}, tracer)
	if err != nil {
		return nil, err
	}

	var next devserver.Responder = gemini
	if cacheTTL > 0 {
		next = devserver.NewCachingResponder(gemini, cacheTTL)
	}
	return devserver.NewFallbackResponder(next, logger), nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"ChatFront/internal/backend"
	"ChatFront/internal/chatbot"
	"ChatFront/internal/config"
	"ChatFront/internal/telemetry"
	"ChatFront/internal/tui"
)

const serviceName = "chatfront"

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "chatfront",
	Short: "Terminal chat client for a session-aware chat service",
	Long: `chatfront talks to a remote Session/Chat service over HTTP.

It keeps one transcript on screen, lets you create, switch and delete
sessions, and sends each new message with the current session id.

The service address comes from --backend-url, then BACKEND_URL (a .env file
in the working directory is read first), then http://localhost:8000.`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&cfg.BackendURL, "backend-url", "", "Session/Chat service base URL")
	rootCmd.Flags().StringVar(&cfg.Model, "model", "", "Model name forwarded with each chat request")
	rootCmd.Flags().BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&cfg.Plain, "plain", false, "Use the line-oriented REPL instead of the full-screen UI")
	rootCmd.Flags().StringVar(&cfg.LogDir, "log-dir", config.DefaultLogDir, "Directory for log, trace and metric files")
}

func run(cmd *cobra.Command, _ []string) error {
	if err := config.LoadEnv(config.EnvFile); err != nil {
		return err
	}
	if err := cfg.Normalize(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, closeLog, err := telemetry.InitLogger(cfg.LogDir, serviceName, cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()

	tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, cfg.LogDir, serviceName)
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer shutdown()

	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	client, err := backend.NewClient(cfg.BackendURL,
		backend.WithLogger(logger),
		backend.WithTracer(tracer),
		backend.WithMeter(meter),
	)
	if err != nil {
		return err
	}

	var opts []chatbot.Option
	if cfg.Model != "" {
		opts = append(opts, chatbot.WithModel(cfg.Model))
	}
	ctrl, err := chatbot.New(client, logger, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize chatbot: %w", err)
	}

	logger.Info("starting", "backend_url", cfg.BackendURL, "plain", cfg.Plain, "model", cfg.Model)

	if cfg.Plain {
		return ctrl.Run(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	}

	model := tui.New(ctx, ctrl,
		tui.WithBackendURL(cfg.BackendURL),
		tui.WithHealthCheck(client.Health),
	)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("chat UI failed: %w", err)
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

const (
	// DefaultBackendURL is where the session/chat service listens in local development
	DefaultBackendURL = "http://localhost:8000"
	// EnvBackendURL names the environment variable that overrides DefaultBackendURL
	EnvBackendURL = "BACKEND_URL"
	// EnvFile is loaded, if present, before the environment is read
	EnvFile = ".env"

	// Temperature is sent with every chat request
	Temperature = 0.2
	// DefaultLogDir holds the rotating log, trace and metric files
	DefaultLogDir = "logs"
)

// Config holds application configuration
type Config struct {
	BackendURL string
	Model      string // Optional model name forwarded to the service; empty lets it choose
	Debug      bool
	Plain      bool // Line-oriented REPL instead of the full-screen UI
	LogDir     string
}

// LoadEnv reads key=value pairs from path into the process environment without
// overriding variables that are already set. A missing file is not an error.
func LoadEnv(path string) error {
	if path == "" {
		path = EnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	return nil
}

// ResolveBackendURL picks the base URL: explicit value, then BACKEND_URL, then the default.
// The result has no trailing slash.
func ResolveBackendURL(explicit string) (string, error) {
	raw := strings.TrimSpace(explicit)
	if raw == "" {
		raw = strings.TrimSpace(os.Getenv(EnvBackendURL))
	}
	if raw == "" {
		raw = DefaultBackendURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid backend URL %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid backend URL %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid backend URL %q: missing host", raw)
	}
	return strings.TrimRight(raw, "/"), nil
}

// Normalize fills unset fields with defaults and validates the backend URL
func (c *Config) Normalize() error {
	backendURL, err := ResolveBackendURL(c.BackendURL)
	if err != nil {
		return err
	}
	c.BackendURL = backendURL
	c.Model = strings.TrimSpace(c.Model)
	if c.LogDir == "" {
		c.LogDir = DefaultLogDir
	}
	return nil
}

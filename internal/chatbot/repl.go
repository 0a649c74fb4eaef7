package chatbot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"ChatFront/internal/session"
)

// healthChecker is implemented by services that expose GET /health
type healthChecker interface {
	Health(ctx context.Context) (string, error)
}

// Run starts the line-oriented chat loop, reading from in and writing to out
// until EOF or /quit.
func (c *Controller) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	c.Initialize(ctx)

	fmt.Fprintln(out, "=== chatfront ===")
	fmt.Fprintf(out, "Session: %s\n", displaySessionID(c.SessionID()))
	fmt.Fprintln(out, "Type /help for commands, /quit to exit")
	fmt.Fprintln(out)
	c.printMessages(out, c.Visible())

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "You: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := c.handleCommand(ctx, input, out)
			if err != nil {
				fmt.Fprintf(out, "Error: %v\n", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		before := len(c.Transcript())
		if !c.Send(ctx, input) {
			continue
		}
		transcript := c.Transcript()
		if len(transcript) > before+1 {
			// skip the echoed user message
			c.printMessages(out, transcript[before+1:])
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	fmt.Fprintln(out, "Goodbye!")
	return nil
}

// handleCommand handles special commands. Service failures are already logged by
// the controller and are not repeated here; only usage errors are returned.
func (c *Controller) handleCommand(ctx context.Context, cmd string, out io.Writer) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/new":
		if err := c.CreateSession(ctx); err == nil {
			fmt.Fprintln(out, "Started new session:", c.SessionID())
			c.printMessages(out, c.Visible())
		}
		return false, nil

	case "/sessions":
		_ = c.RefreshSessions(ctx)
		c.printSessions(out)
		return false, nil

	case "/switch":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /switch <number|session-id>")
		}
		id := c.resolveSessionRef(parts[1])
		if err := c.SwitchSession(ctx, id); err == nil {
			fmt.Fprintf(out, "Switched to session %s\n", id)
			c.printMessages(out, c.Visible())
		}
		return false, nil

	case "/delete":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /delete <number|session-id>")
		}
		id := c.resolveSessionRef(parts[1])
		if err := c.DeleteSession(ctx, id); err == nil {
			fmt.Fprintf(out, "Deleted session %s\n", id)
		}
		return false, nil

	case "/history":
		c.printMessages(out, c.Visible())
		return false, nil

	case "/health":
		hc, ok := c.svc.(healthChecker)
		if !ok {
			return false, fmt.Errorf("health check not supported by this backend")
		}
		status, err := hc.Health(ctx)
		if err != nil {
			c.logger.Warn("health check failed", "error", err)
			fmt.Fprintln(out, "Backend: unreachable")
			return false, nil
		}
		fmt.Fprintf(out, "Backend: %s\n", status)
		return false, nil

	case "/help":
		fmt.Fprintln(out, "Available commands:")
		fmt.Fprintln(out, "  /quit, /exit          - Exit")
		fmt.Fprintln(out, "  /new                  - Start a new session")
		fmt.Fprintln(out, "  /sessions             - List sessions")
		fmt.Fprintln(out, "  /switch <n|id>        - Switch to a session")
		fmt.Fprintln(out, "  /delete <n|id>        - Delete a session")
		fmt.Fprintln(out, "  /history              - Show the current transcript")
		fmt.Fprintln(out, "  /health               - Check the backend")
		fmt.Fprintln(out, "  /help                 - Show this help message")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s", parts[0])
	}
}

// resolveSessionRef maps a 1-based index into the cached list to its id;
// anything else is taken as an id.
func (c *Controller) resolveSessionRef(ref string) string {
	n, err := strconv.Atoi(ref)
	if err != nil {
		return ref
	}
	sessions := c.Sessions()
	if n < 1 || n > len(sessions) {
		return ref
	}
	return sessions[n-1].ID
}

func (c *Controller) printSessions(out io.Writer) {
	sessions := c.Sessions()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions.")
		return
	}
	current := c.SessionID()
	fmt.Fprintln(out, "\nSessions:")
	for i, s := range sessions {
		marker := ""
		if s.ID == current {
			marker = " (current)"
		}
		fmt.Fprintf(out, "%d. %s - %d messages, last active %s%s\n",
			i+1, s.ID, s.MessageCount, formatTimestamp(s.LastActive), marker)
	}
	fmt.Fprintln(out)
}

func (c *Controller) printMessages(out io.Writer, messages []session.Message) {
	for _, msg := range messages {
		switch msg.Role {
		case session.RoleUser:
			fmt.Fprintf(out, "You: %s\n", msg.Content)
		case session.RoleAssistant:
			fmt.Fprintf(out, "Bot: %s\n\n", msg.Content)
		}
	}
}

func displaySessionID(id string) string {
	if id == "" {
		return "(unsaved)"
	}
	return id
}

func formatTimestamp(ts session.Timestamp) string {
	if ts.IsZero() {
		return "-"
	}
	return ts.Local().Format("2006-01-02 15:04")
}

package hooks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/soyeahso/agentstudio/internal/config"
)

// DefaultCommandTimeout bounds a hook command with no configured timeout.
const DefaultCommandTimeout = 10 * time.Second

// CommandHandler returns a Handler that runs command through "sh -c" with the
// JSON payload on stdin. A non-zero exit is reported as an error.
func CommandHandler(command string, timeout time.Duration) Handler {
	if timeout <= 0 {
		timeout = DefaultCommandTimeout
	}
	return func(ctx context.Context, p Payload) error {
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encoding hook payload: %w", err)
		}

		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Stdin = bytes.NewReader(body)
		cmd.Env = append(cmd.Environ(), "AGENTSTUDIO_HOOK_EVENT="+p.Event)
		var stderr bytes.Buffer
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			if msg := strings.TrimSpace(stderr.String()); msg != "" {
				return fmt.Errorf("hook command %q: %w: %s", command, err, msg)
			}
			return fmt.Errorf("hook command %q: %w", command, err)
		}
		return nil
	}
}

// RegisterConfig registers a command handler for every configured hook entry.
// Handlers are named "config:<event>:<index>".
func (m *Manager) RegisterConfig(cfg config.HooksConfig) int {
	byEvent := map[string][]config.HookEntry{
		EventAgentCreated: cfg.AgentCreated,
		EventAgentUpdated: cfg.AgentUpdated,
		EventAgentDeleted: cfg.AgentDeleted,
		EventSessionStart: cfg.SessionStart,
		EventSessionEnd:   cfg.SessionEnd,
		EventGatewayStart: cfg.GatewayStart,
		EventGatewayStop:  cfg.GatewayStop,
	}

	n := 0
	for _, event := range AllEvents {
		for i, entry := range byEvent[event] {
			if entry.Command == "" {
				continue
			}
			timeout := time.Duration(entry.Timeout) * time.Millisecond
			m.On(event, fmt.Sprintf("config:%s:%d", event, i), CommandHandler(entry.Command, timeout))
			n++
		}
	}
	return n
}

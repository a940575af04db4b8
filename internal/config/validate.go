package config

import (
	"fmt"
	"maps"
	"slices"
)

// ValidationIssue describes a problem with a config value.
type ValidationIssue struct {
	Path    string
	Message string
}

func (v ValidationIssue) String() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// Validate reports every problem in cfg. Empty enum fields are accepted since
// Load fills them with defaults.
func Validate(cfg *Config) []ValidationIssue {
	var v validator

	v.oneOf("llm.auth", cfg.LLM.Auth, "api-key", "adc")
	v.nonNegative("llm.timeoutSeconds", cfg.LLM.TimeoutSeconds)

	v.oneOf("store.backend", cfg.Store.Backend, "sqlite", "file", "memory")
	v.oneOf("store.onCorrupt", cfg.Store.OnCorrupt, "fail", "seed", "empty")

	if cfg.Gateway.Port < 0 || cfg.Gateway.Port > 65535 {
		v.add("gateway.port", "port must be 0-65535, got %d", cfg.Gateway.Port)
	}
	v.oneOf("gateway.bind", cfg.Gateway.Bind, "loopback", "lan", "custom")
	v.oneOf("gateway.auth.mode", cfg.Gateway.Auth.Mode, "token", "password")

	v.oneOf("logging.level", cfg.Logging.Level, "silent", "fatal", "error", "warn", "info", "debug", "trace")
	v.oneOf("logging.consoleStyle", cfg.Logging.ConsoleStyle, "pretty", "compact", "json")

	hooks := cfg.Hooks.byEvent()
	for _, event := range slices.Sorted(maps.Keys(hooks)) {
		for i, h := range hooks[event] {
			prefix := fmt.Sprintf("hooks.%s[%d]", event, i)
			if h.Command == "" {
				v.add(prefix+".command", "command is required")
			}
			v.nonNegative(prefix+".timeout", h.Timeout)
		}
	}
	return v.issues
}

type validator struct {
	issues []ValidationIssue
}

func (v *validator) add(path, format string, args ...any) {
	v.issues = append(v.issues, ValidationIssue{Path: path, Message: fmt.Sprintf(format, args...)})
}

func (v *validator) oneOf(path, got string, allowed ...string) {
	if got != "" && !slices.Contains(allowed, got) {
		v.add(path, "must be one of %v, got %q", allowed, got)
	}
}

func (v *validator) nonNegative(path string, n int) {
	if n < 0 {
		v.add(path, "must not be negative, got %d", n)
	}
}

// byEvent returns the configured hook entries keyed by their YAML field name.
func (h HooksConfig) byEvent() map[string][]HookEntry {
	return map[string][]HookEntry{
		"agentCreated": h.AgentCreated,
		"agentUpdated": h.AgentUpdated,
		"agentDeleted": h.AgentDeleted,
		"sessionStart": h.SessionStart,
		"sessionEnd":   h.SessionEnd,
		"gatewayStart": h.GatewayStart,
		"gatewayStop":  h.GatewayStop,
	}
}

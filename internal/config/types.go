package config

// Config is the root configuration for agentstudio.
type Config struct {
	LLM     LLMConfig     `yaml:"llm,omitempty"`
	Store   StoreConfig   `yaml:"store,omitempty"`
	Gateway GatewayConfig `yaml:"gateway,omitempty"`
	Logging LoggingConfig `yaml:"logging,omitempty"`
	Hooks   HooksConfig   `yaml:"hooks,omitempty"`
}

// LLMConfig configures access to the Gemini generative-language API.
type LLMConfig struct {
	Auth           string `yaml:"auth,omitempty"`     // "api-key" | "adc"
	APIKey         string `yaml:"apiKey,omitempty"`   // used when auth: api-key
	Endpoint       string `yaml:"endpoint,omitempty"` // base URL, e.g. https://generativelanguage.googleapis.com/v1beta
	TimeoutSeconds int    `yaml:"timeoutSeconds,omitempty"`
	SuggestModel   string `yaml:"suggestModel,omitempty"`
}

// StoreConfig selects where the agent collection is persisted.
type StoreConfig struct {
	Backend   string `yaml:"backend,omitempty"`   // "sqlite" | "file" | "memory"
	Path      string `yaml:"path,omitempty"`      // db file (sqlite) or directory (file); defaults under the data dir
	Key       string `yaml:"key,omitempty"`       // storage key holding the serialized collection
	OnCorrupt string `yaml:"onCorrupt,omitempty"` // "fail" | "seed" | "empty"
}

// GatewayConfig controls the local WebSocket gateway a browser UI connects to.
type GatewayConfig struct {
	Port           int         `yaml:"port,omitempty"`
	Bind           string      `yaml:"bind,omitempty"` // "loopback" | "lan" | "custom"
	CustomBindHost string      `yaml:"customBindHost,omitempty"`
	Auth           GatewayAuth `yaml:"auth,omitempty"`
	AllowedOrigins []string    `yaml:"allowedOrigins,omitempty"`
}

// GatewayAuth configures the gateway connect handshake.
type GatewayAuth struct {
	Mode     string `yaml:"mode,omitempty"` // "token" | "password"
	Token    string `yaml:"token,omitempty"`
	Password string `yaml:"password,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level        string `yaml:"level,omitempty"` // "silent" | "fatal" | "error" | "warn" | "info" | "debug" | "trace"
	File         string `yaml:"file,omitempty"`
	ConsoleStyle string `yaml:"consoleStyle,omitempty"` // "pretty" | "compact" | "json"
}

// HooksConfig maps lifecycle events to shell commands.
type HooksConfig struct {
	AgentCreated []HookEntry `yaml:"agentCreated,omitempty"`
	AgentUpdated []HookEntry `yaml:"agentUpdated,omitempty"`
	AgentDeleted []HookEntry `yaml:"agentDeleted,omitempty"`
	SessionStart []HookEntry `yaml:"sessionStart,omitempty"`
	SessionEnd   []HookEntry `yaml:"sessionEnd,omitempty"`
	GatewayStart []HookEntry `yaml:"gatewayStart,omitempty"`
	GatewayStop  []HookEntry `yaml:"gatewayStop,omitempty"`
}

// HookEntry defines a single hook action. The event payload is written to
// the command's stdin as JSON.
type HookEntry struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout,omitempty"` // milliseconds
}

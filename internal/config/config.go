package config

import "fmt"

// ConfigError represents a configuration error.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s", e.Message)
}

const (
	DefaultEndpoint       = "https://generativelanguage.googleapis.com/v1beta"
	DefaultStoreKey       = "gemini_agents"
	DefaultGatewayPort    = 18790
	DefaultTimeoutSeconds = 120
)

// Defaults returns a Config with sensible defaults applied.
func Defaults() Config {
	return Config{
		LLM: LLMConfig{
			Auth:           "api-key",
			Endpoint:       DefaultEndpoint,
			TimeoutSeconds: DefaultTimeoutSeconds,
			SuggestModel:   "gemini-3-flash-preview",
		},
		Store: StoreConfig{
			Backend:   "sqlite",
			Key:       DefaultStoreKey,
			OnCorrupt: "fail",
		},
		Gateway: GatewayConfig{
			Port: DefaultGatewayPort,
			Bind: "loopback",
			Auth: GatewayAuth{
				Mode: "token",
			},
		},
		Logging: LoggingConfig{
			Level:        "info",
			ConsoleStyle: "pretty",
		},
	}
}

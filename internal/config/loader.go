package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} patterns in strings.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// expandEnvVars replaces ${VAR} patterns with environment variable values.
// Unset variables are left unchanged.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// expandSensitiveFields processes environment variable references in
// credential fields so keys and tokens can be stored as ${ENV_VAR}.
func expandSensitiveFields(cfg *Config) {
	cfg.LLM.APIKey = expandEnvVars(cfg.LLM.APIKey)
	cfg.Gateway.Auth.Token = expandEnvVars(cfg.Gateway.Auth.Token)
	cfg.Gateway.Auth.Password = expandEnvVars(cfg.Gateway.Auth.Password)
}

// Load returns the effective configuration: defaults, then the YAML file at
// path if it exists, then environment overrides.
func Load(path string) (Config, error) {
	cfg := Defaults()

	data, err := readOptional(path)
	if err != nil {
		return cfg, err
	}
	if data != nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, parseError(err)
		}
		applyDefaults(&cfg)
		expandSensitiveFields(&cfg)
	}
	applyEnvOverrides(&cfg)
	return cfg, nil
}

// readOptional returns nil data without error when path does not exist.
func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func parseError(err error) error {
	return &ConfigError{Message: "failed to parse config: " + err.Error()}
}

// LoadRaw reads the file as an untyped document for "config get/set".
// A missing file reads as an empty document.
func LoadRaw(path string) (map[string]any, error) {
	raw := map[string]any{}
	data, err := readOptional(path)
	if err != nil || data == nil {
		return raw, err
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, parseError(err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	return raw, nil
}

// SaveRaw writes a generic map back to a YAML config file.
func SaveRaw(path string, raw map[string]any) error {
	data, err := yaml.Marshal(raw)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// applyDefaults restores defaults for fields the file set to a zero value.
func applyDefaults(cfg *Config) {
	d := Defaults()
	orDefault(&cfg.LLM.Auth, d.LLM.Auth)
	orDefault(&cfg.LLM.Endpoint, d.LLM.Endpoint)
	orDefault(&cfg.LLM.TimeoutSeconds, d.LLM.TimeoutSeconds)
	orDefault(&cfg.LLM.SuggestModel, d.LLM.SuggestModel)
	orDefault(&cfg.Store.Backend, d.Store.Backend)
	orDefault(&cfg.Store.Key, d.Store.Key)
	orDefault(&cfg.Store.OnCorrupt, d.Store.OnCorrupt)
	orDefault(&cfg.Gateway.Port, d.Gateway.Port)
	orDefault(&cfg.Gateway.Bind, d.Gateway.Bind)
	orDefault(&cfg.Gateway.Auth.Mode, d.Gateway.Auth.Mode)
	orDefault(&cfg.Logging.Level, d.Logging.Level)
	orDefault(&cfg.Logging.ConsoleStyle, d.Logging.ConsoleStyle)
}

func orDefault[T comparable](field *T, def T) {
	var zero T
	if *field == zero {
		*field = def
	}
}

// apiKeyEnvVars are consulted in order when no API key is configured.
var apiKeyEnvVars = []string{"AGENTSTUDIO_API_KEY", "GEMINI_API_KEY", "API_KEY"}

// envOverrides maps AGENTSTUDIO_* variables onto config fields. Each setter
// receives a non-empty value.
var envOverrides = map[string]func(cfg *Config, v string){
	"AGENTSTUDIO_GATEWAY_PORT": func(cfg *Config, v string) {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Gateway.Port = port
		}
	},
	"AGENTSTUDIO_GATEWAY_BIND": func(cfg *Config, v string) { cfg.Gateway.Bind = v },
	"AGENTSTUDIO_GATEWAY_TOKEN": func(cfg *Config, v string) {
		if cfg.Gateway.Auth.Token == "" {
			cfg.Gateway.Auth.Token = v
		}
	},
	"AGENTSTUDIO_STORE_BACKEND": func(cfg *Config, v string) { cfg.Store.Backend = strings.ToLower(v) },
	"AGENTSTUDIO_LOG_LEVEL":     func(cfg *Config, v string) { cfg.Logging.Level = strings.ToLower(v) },
}

func applyEnvOverrides(cfg *Config) {
	if cfg.LLM.APIKey == "" {
		for _, name := range apiKeyEnvVars {
			if v := os.Getenv(name); v != "" {
				cfg.LLM.APIKey = v
				break
			}
		}
	}
	for name, set := range envOverrides {
		if v := os.Getenv(name); v != "" {
			set(cfg, v)
		}
	}
}

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

const defaultBaseDir = ".agentstudio"

// Paths locates agentstudio's files under one base directory.
type Paths struct {
	Base   string
	Config string // config.yaml
	Data   string // agent store
	Logs   string
}

// ResolvePaths roots Paths at $AGENTSTUDIO_HOME, or ~/.agentstudio when unset.
func ResolvePaths() (Paths, error) {
	base, ok := os.LookupEnv("AGENTSTUDIO_HOME")
	if !ok || base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Paths{}, fmt.Errorf("locating home directory: %w", err)
		}
		base = filepath.Join(home, defaultBaseDir)
	}
	return pathsAt(base), nil
}

func pathsAt(base string) Paths {
	return Paths{
		Base:   base,
		Config: filepath.Join(base, "config.yaml"),
		Data:   filepath.Join(base, "data"),
		Logs:   filepath.Join(base, "logs"),
	}
}

// EnsureDirs creates the base, data and log directories with owner-only
// permissions.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.Base, p.Data, p.Logs} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("creating %s: %w", dir, err)
		}
	}
	return nil
}

// StorePath returns the location of the agent store for the configured backend.
// An explicit store.path wins; otherwise sqlite uses data/agentstudio.db and
// the file backend uses the data directory itself.
func (p Paths) StorePath(cfg StoreConfig) string {
	if cfg.Path != "" {
		return cfg.Path
	}
	switch cfg.Backend {
	case "file":
		return p.Data
	case "memory":
		return ""
	default:
		return filepath.Join(p.Data, "agentstudio.db")
	}
}

// ParseConfigPath splits a dotted key such as "gateway.auth.token" into its
// segments. Empty keys and empty segments are rejected.
func ParseConfigPath(raw string) ([]string, error) {
	parts := strings.Split(raw, ".")
	if slices.Contains(parts, "") {
		msg := "config path contains empty segment"
		if raw == "" {
			msg = "empty config path"
		}
		return nil, &ConfigError{Message: msg}
	}
	return parts, nil
}

// parent walks root along all but the last segment of path and returns the
// map holding the final key. With create set, missing or non-map
// intermediates are replaced by empty maps.
func parent(root map[string]any, path []string, create bool) (map[string]any, bool) {
	node := root
	for _, key := range path[:len(path)-1] {
		child, ok := node[key].(map[string]any)
		if !ok {
			if !create {
				return nil, false
			}
			child = map[string]any{}
			node[key] = child
		}
		node = child
	}
	return node, true
}

// GetValueAtPath returns the value stored under path in a nested map.
func GetValueAtPath(root map[string]any, path []string) (any, bool) {
	if len(path) == 0 {
		return root, true
	}
	m, ok := parent(root, path, false)
	if !ok {
		return nil, false
	}
	v, ok := m[path[len(path)-1]]
	return v, ok
}

// SetValueAtPath stores value under path, creating intermediate maps.
func SetValueAtPath(root map[string]any, path []string, value any) {
	m, _ := parent(root, path, true)
	m[path[len(path)-1]] = value
}

// UnsetValueAtPath deletes the value under path and reports whether it existed.
func UnsetValueAtPath(root map[string]any, path []string) bool {
	m, ok := parent(root, path, false)
	if !ok {
		return false
	}
	last := path[len(path)-1]
	if _, ok := m[last]; !ok {
		return false
	}
	delete(m, last)
	return true
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConfigPath(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []string
		wantErr bool
	}{
		{"single segment", "store", []string{"store"}, false},
		{"two segments", "store.backend", []string{"store", "backend"}, false},
		{"three segments", "gateway.auth.token", []string{"gateway", "auth", "token"}, false},
		{"empty", "", nil, true},
		{"empty segment", "store..backend", nil, true},
		{"trailing dot", "store.", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseConfigPath(tt.input)
			if tt.wantErr {
				var ce *ConfigError
				assert.ErrorAs(t, err, &ce)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueAtPath(t *testing.T) {
	root := map[string]any{
		"store": map[string]any{"backend": "sqlite"},
		"llm":   "not-a-map",
	}

	v, ok := GetValueAtPath(root, []string{"store", "backend"})
	require.True(t, ok)
	assert.Equal(t, "sqlite", v)

	_, ok = GetValueAtPath(root, []string{"llm", "model"})
	assert.False(t, ok, "walking through a scalar")

	SetValueAtPath(root, []string{"llm", "auth"}, "adc")
	assert.Equal(t, map[string]any{"auth": "adc"}, root["llm"], "scalar replaced by a map")

	SetValueAtPath(root, []string{"gateway", "auth", "token"}, "t")
	v, ok = GetValueAtPath(root, []string{"gateway", "auth", "token"})
	require.True(t, ok)
	assert.Equal(t, "t", v)

	assert.True(t, UnsetValueAtPath(root, []string{"store", "backend"}))
	assert.False(t, UnsetValueAtPath(root, []string{"store", "backend"}))
	assert.False(t, UnsetValueAtPath(root, []string{"missing", "x"}))
	assert.Equal(t, map[string]any{}, root["store"])
}

func TestResolvePaths(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	tests := []struct {
		name string
		env  string
		base string
	}{
		{"default", "", filepath.Join(home, ".agentstudio")},
		{"override", "/tmp/studio", "/tmp/studio"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("AGENTSTUDIO_HOME", tt.env)

			p, err := ResolvePaths()
			require.NoError(t, err)
			assert.Equal(t, Paths{
				Base:   tt.base,
				Config: filepath.Join(tt.base, "config.yaml"),
				Data:   filepath.Join(tt.base, "data"),
				Logs:   filepath.Join(tt.base, "logs"),
			}, p)
		})
	}
}

func TestEnsureDirs(t *testing.T) {
	p := pathsAt(filepath.Join(t.TempDir(), "nested", "home"))

	require.NoError(t, p.EnsureDirs())
	require.NoError(t, p.EnsureDirs(), "idempotent")

	for _, dir := range []string{p.Base, p.Data, p.Logs} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
		assert.Equal(t, os.FileMode(0o700), info.Mode().Perm())
	}
}

func TestStorePath(t *testing.T) {
	p := Paths{Data: "/d"}

	tests := []struct {
		cfg  StoreConfig
		want string
	}{
		{StoreConfig{Backend: "sqlite"}, "/d/agentstudio.db"},
		{StoreConfig{}, "/d/agentstudio.db"},
		{StoreConfig{Backend: "file"}, "/d"},
		{StoreConfig{Backend: "memory"}, ""},
		{StoreConfig{Backend: "sqlite", Path: "/x.db"}, "/x.db"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, p.StorePath(tt.cfg), "%+v", tt.cfg)
	}
}

package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// lines decodes every JSON log line written to buf.
func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, l := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if l == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(l), &m), l)
		out = append(out, m)
	}
	return out
}

func TestSubAndWithFields(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "debug").Sub("store").With("agent", "42").Info().Msg("saved")

	got := lines(t, &buf)
	require.Len(t, got, 1)
	assert.Equal(t, "store", got[0]["subsystem"])
	assert.Equal(t, "42", got[0]["agent"])
	assert.Equal(t, "saved", got[0]["message"])
	assert.Equal(t, "info", got[0]["level"])
	assert.Contains(t, got[0], "time")
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn")

	log.Debug().Msg("d")
	log.Info().Msg("i")
	log.Warn().Msg("w")
	log.Error().Msg("e")

	var msgs []any
	for _, l := range lines(t, &buf) {
		msgs = append(msgs, l["message"])
	}
	assert.Equal(t, []any{"w", "e"}, msgs)
}

func TestParseLevel(t *testing.T) {
	tests := map[string]zerolog.Level{
		"trace":   zerolog.TraceLevel,
		"debug":   zerolog.DebugLevel,
		"info":    zerolog.InfoLevel,
		"WARN":    zerolog.WarnLevel,
		" error ": zerolog.ErrorLevel,
		"silent":  zerolog.Disabled,
		"":        zerolog.InfoLevel,
		"loud":    zerolog.InfoLevel,
	}
	for in, want := range tests {
		assert.Equal(t, want, parseLevel(in), "%q", in)
	}
}

func TestNewWithOptions(t *testing.T) {
	t.Run("console only", func(t *testing.T) {
		for _, style := range []string{"pretty", "compact", "json", ""} {
			log, closer, err := NewWithOptions(Options{Level: "silent", Style: style})
			require.NoError(t, err, style)
			require.NotNil(t, log)
			assert.NoError(t, closer.Close())
		}
	})

	t.Run("file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "agentstudio.log")

		log, closer, err := NewWithOptions(Options{Level: "info", Style: "json", File: path})
		require.NoError(t, err)
		log.Sub("gateway").Info().Msg("to file")
		require.NoError(t, closer.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		got := lines(t, bytes.NewBuffer(data))
		require.Len(t, got, 1)
		assert.Equal(t, "gateway", got[0]["subsystem"])
	})
}

func TestNilWriterFallsBackToConsole(t *testing.T) {
	assert.NotNil(t, New(nil, "silent").Zerolog())
}

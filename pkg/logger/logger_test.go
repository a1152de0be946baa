package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.input))
		})
	}
}

func TestNewWritesToExtraWriter(t *testing.T) {
	var buf bytes.Buffer
	l := New("info", "json", &buf)

	l.Debug("hidden")
	l.Info("visible", "pid", "42")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"visible"`)
	assert.Contains(t, out, `"pid":"42"`)
}

func TestNewFileAppendsTextLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scrape.log")

	l, closer, err := NewFile("info", "json", path)
	require.NoError(t, err)

	l.With("component", "detail").Warn("fetch error", "error", "fetch error for https://x/prid/1 (ID: 1): unexpected status 403 Forbidden")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	line := strings.TrimSpace(string(data))
	assert.Contains(t, line, "level=WARN")
	assert.Contains(t, line, "component=detail")
	assert.Contains(t, line, "(ID: 1)")
	assert.Contains(t, line, "403 Forbidden")
}

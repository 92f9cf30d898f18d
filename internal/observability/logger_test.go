package observability

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "info", "json")

	logger.Info("query routed", "kind", "query", "event_count", 3)

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "query routed", line["msg"])
	assert.Equal(t, "query", line["kind"])
	assert.Equal(t, 3.0, line["event_count"])
}

func TestNewLogger_TextAndLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "text")

	logger.Info("dropped")
	logger.Warn("kept", "feed", "all_day")

	out := buf.String()
	assert.NotContains(t, out, "dropped")
	assert.Contains(t, out, "msg=kept")
	assert.Contains(t, out, "feed=all_day")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"", slog.LevelInfo},
		{"verbose", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseLevel(tt.input))
		})
	}
}

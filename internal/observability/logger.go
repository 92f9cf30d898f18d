package observability

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/quake-query-service/internal/config"
)

// NewLogger builds a slog.Logger writing to stdout using the configured level and format.
func NewLogger(cfg *config.Config) *slog.Logger {
	return newLogger(os.Stdout, cfg.LogLevel, cfg.LogFormat)
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "text") {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

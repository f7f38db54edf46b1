// Package logger configures the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
)

// Setup installs a logger writing to stderr, keeping stdout free for
// command output.
func Setup(level string, format string) {
	slog.SetDefault(New(os.Stderr, level, format))
}

func New(w io.Writer, level string, format string) *slog.Logger {
	var handler slog.Handler
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	switch format {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

func WithComponent(component string) *slog.Logger {
	return slog.Default().With("component", component)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

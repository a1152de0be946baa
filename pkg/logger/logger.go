package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// New builds a slog.Logger writing to stdout and any extra writers.
// format is "json" or "text"; anything else falls back to text.
func New(level, format string, extra ...io.Writer) *slog.Logger {
	writers := append([]io.Writer{os.Stdout}, extra...)
	var w io.Writer = os.Stdout
	if len(writers) > 1 {
		w = io.MultiWriter(writers...)
	}

	return slog.New(newHandler(w, level, format))
}

// NewFile is New plus a line-oriented text copy of every record appended to path.
// The file copy is always text so the log-mining tools can grep it.
func NewFile(level, format, path string) (*slog.Logger, io.Closer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open log file: %w", err)
	}

	console := newHandler(os.Stdout, level, format)
	file := newHandler(f, level, "text")

	return slog.New(fanout{console, file}), f, nil
}

func newHandler(w io.Writer, level, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel maps debug/info/warn/error to a slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

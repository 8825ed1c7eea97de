// Package logging builds the structured loggers shared by the service components.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/LavishGent/imgedge/internal/types"
)

// New returns a slog logger writing to w in the given format ("text" or "json").
func New(w io.Writer, level, format string) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: lvl}

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("invalid log format: %s", format)
	}

	return slog.New(handler), nil
}

// ParseLevel maps a level name to a slog.Level.
func ParseLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level: %s", level)
	}
}

// FromLogger turns a types.Logger into a *slog.Logger.
// A nil logger yields slog.Default(), and a *slog.Logger is returned unchanged.
func FromLogger(l types.Logger) *slog.Logger {
	switch v := l.(type) {
	case nil:
		return slog.Default()
	case *slog.Logger:
		return v
	default:
		return slog.New(adapter{logger: l})
	}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

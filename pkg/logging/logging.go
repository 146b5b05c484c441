// Package logging sets up the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config selects the log level and output format.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ParseLevel converts debug, info, warn or error into a slog.Level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("unknown log level %q", s)
}

// Init configures the global slog default with the given level and format.
// If w is nil, os.Stdout is used. Format is "text" or "json".
func Init(level slog.Level, format string, w ...io.Writer) *slog.Logger {
	var writer io.Writer = os.Stdout
	if len(w) > 0 && w[0] != nil {
		writer = w[0]
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch format {
	case "json":
		handler = slog.NewJSONHandler(writer, opts)
	default:
		handler = slog.NewTextHandler(writer, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// Setup applies cfg, falling back to info level on an unknown level name.
func Setup(cfg Config, w ...io.Writer) *slog.Logger {
	level, err := ParseLevel(cfg.Level)
	logger := Init(level, cfg.Format, w...)
	if err != nil {
		logger.Warn("falling back to info level", "error", err)
	}
	return logger
}

// New returns a logger with a "component" attribute.
func New(component string) *slog.Logger {
	return slog.Default().With(slog.String("component", component))
}

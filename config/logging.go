package config

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/pkg/errors"
)

const (
	LoggingLevelDebug = "debug"
	LoggingLevelInfo  = "info"
	LoggingLevelWarn  = "warn"
	LoggingLevelError = "error"
)

// ParseLevel converts a logging level name to a slog level
func ParseLevel(level string) (slog.Level, error) {

	switch strings.ToLower(strings.TrimSpace(level)) {
	case LoggingLevelDebug:
		return slog.LevelDebug, nil
	case LoggingLevelInfo:
		return slog.LevelInfo, nil
	case LoggingLevelWarn:
		return slog.LevelWarn, nil
	case LoggingLevelError:
		return slog.LevelError, nil
	}

	return slog.LevelError, errors.Errorf("unknown logging level %q", level)
}

// NewLogger returns a colorized logger writing to w at the given level
func NewLogger(level slog.Level, w io.Writer) *slog.Logger {
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: time.RFC3339,
	}))
}

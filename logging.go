package simpledb

import (
	"log/slog"
	"os"
	"strings"
)

// newLogger returns cfg.Logger, or a text logger on stderr at cfg.LogLevel.
func newLogger(cfg Config) *slog.Logger {
	if cfg.Logger != nil {
		return cfg.Logger
	}
	level := new(slog.LevelVar)
	level.Set(parseLevel(cfg.LogLevel))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})).
		With("component", "simpledb")
}

// parseLevel accepts "debug", "info", "warn", "error" in any case.
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

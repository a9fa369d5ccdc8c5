package clog

import (
	"log/slog"
	"os"
)

// Setup installs a JSON slog logger wrapped with the context-attributes
// handler as the process default and returns it.
func Setup(level slog.Level) *slog.Logger {
	handler := NewAttributesHandler(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

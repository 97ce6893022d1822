// Package logger constructs the process-wide structured logger.
package logger

import (
	"log/slog"
	"os"
)

// New builds a slog.Logger from level and format strings. Unknown values fall
// back to info/json, which is what production wants anyway.
func New(levelStr, format string) *slog.Logger {
	level := slog.LevelInfo
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}

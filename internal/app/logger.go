package app

import (
	"io"
	"log/slog"
)

// newLogger builds the app's isolated logger. The global default is left
// alone so embedding programs and tests keep their own instances. Level
// names follow slog's own parsing ("debug", "INFO", "warn+2", ...); anything
// unparseable falls back to info.
func newLogger(levelStr, formatStr string, outW io.Writer) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelStr)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if formatStr == "json" {
		return slog.New(slog.NewJSONHandler(outW, opts))
	}
	return slog.New(slog.NewTextHandler(outW, opts))
}

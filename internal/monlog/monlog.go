// Package monlog builds the monitor's default logger, grounded on
// cmd/cc/main.go's slog setup (text handler to stderr, level gated by a
// debug flag). The logger is passed to internal/simharness, which logs
// discovery results and unexpected trap causes through it; the other
// packages do not log.
package monlog

import (
	"io"
	"log/slog"
)

// New builds a text-handler logger writing to w at the given level and
// installs it as slog's default, mirroring cmd/cc/main.go's
// slog.SetDefault(slog.New(slog.NewTextHandler(...))) call at boot.
func New(w io.Writer, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	logger := slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}

// ForHart returns a logger with the hart ID attached as a structured
// attribute, for use along any code path keyed to a specific physical
// core.
func ForHart(logger *slog.Logger, hartID int) *slog.Logger {
	return logger.With(slog.Int("hart", hartID))
}

// ForCapsule returns a logger with the capsule ID attached as a
// structured attribute.
func ForCapsule(logger *slog.Logger, capsuleID uint64) *slog.Logger {
	return logger.With(slog.Uint64("capsule", capsuleID))
}

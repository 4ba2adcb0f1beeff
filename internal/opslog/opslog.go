// Package opslog is the vault's operator-facing diagnostic logger: failed
// opens, integrity warnings, save errors. It is never the audit chain and
// never logs passphrases or key material. Configured the way the pack's
// logging package configures slog, rotated through lumberjack instead of
// a hand-rolled reset writer.
package opslog

import (
	"context"
	"log/slog"
	"os"

	"github.com/natefinch/lumberjack"
)

// Config controls where and how operational log lines are written.
type Config struct {
	// File is the path to the rotated log file. Empty disables file
	// logging; the logger then writes to stderr only.
	File string
	// AlsoStderr duplicates every line to stderr in addition to File.
	AlsoStderr bool
	// MaxSizeMB is the rotation threshold lumberjack applies to File.
	MaxSizeMB int
	// MaxBackups is how many rotated files lumberjack retains.
	MaxBackups int
	// Level is the minimum slog level that gets emitted.
	Level slog.Level
}

// DefaultConfig returns defaults that log to stderr only: File is left
// empty, so no rotated log file is written unless the caller sets one.
func DefaultConfig() Config {
	return Config{
		AlsoStderr: true,
		MaxSizeMB:  10,
		MaxBackups: 3,
		Level:      slog.LevelInfo,
	}
}

// New builds a slog.Logger from cfg. When both File and AlsoStderr are
// set, lines are written to both; when neither is configured it falls
// back to a bare stderr text logger so callers always get a usable one.
func New(cfg Config) *slog.Logger {
	var handlers []slog.Handler

	if cfg.File != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			Compress:   true,
		}
		handlers = append(handlers, slog.NewJSONHandler(rotator, &slog.HandlerOptions{Level: cfg.Level}))
	}
	if cfg.AlsoStderr || len(handlers) == 0 {
		handlers = append(handlers, slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Level}))
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0])
	}
	return slog.New(multiHandler{handlers})
}

// multiHandler fans a record out to every wrapped handler, mirroring the
// pack's own MultiHandler for slog.
type multiHandler struct {
	handlers []slog.Handler
}

func (m multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if err := h.Handle(ctx, r); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithAttrs(attrs)
	}
	return multiHandler{out}
}

func (m multiHandler) WithGroup(name string) slog.Handler {
	out := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		out[i] = h.WithGroup(name)
	}
	return multiHandler{out}
}

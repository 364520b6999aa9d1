// Package log wraps log/slog with the conventions every orchestrator
// component shares: a service attribute on each record and expansion of
// coded errors into error_code, suggestions and cause.
package log

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"

	"github.com/Kingmaker16/codex-os/internal/errors"
)

// Logger is a *slog.Logger whose derived loggers stay Loggers.
type Logger struct {
	*slog.Logger
}

// New creates a Logger from cfg.
func New(cfg Config) *Logger {
	l := slog.New(cfg.handler())
	if cfg.Service != "" {
		l = l.With("service", cfg.Service)
	}
	if cfg.Version != "" {
		l = l.With("version", cfg.Version)
	}
	return &Logger{Logger: l}
}

// Nop returns a logger that discards everything.
func Nop() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: LevelError + 1}))}
}

// SetDefault makes l the process-wide slog default, so libraries logging
// through slog share its handler.
func SetDefault(l *Logger) {
	if l != nil {
		slog.SetDefault(l.Logger)
	}
}

func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

func (l *Logger) WithGroup(name string) *Logger {
	return &Logger{Logger: l.Logger.WithGroup(name)}
}

// WithError attaches err. Coded errors contribute error_code, suggestions,
// docs_url and cause as separate attributes.
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.With(errorArgs(err, "error")...)
}

// LogError logs err at ERROR with its full details.
func (l *Logger) LogError(err error) {
	l.LogErrorContext(context.Background(), err)
}

func (l *Logger) LogErrorContext(ctx context.Context, err error) {
	if err == nil {
		return
	}
	l.ErrorContext(ctx, "operation failed", errorArgs(err, "error_message")...)
}

func errorArgs(err error, msgKey string) []any {
	var oe *errors.OrchestratorError
	if !stderrors.As(err, &oe) {
		return []any{msgKey, err.Error()}
	}

	args := []any{msgKey, oe.Message, "error_code", string(oe.Code)}
	if len(oe.Suggestions) > 0 {
		args = append(args, "suggestions", oe.Suggestions)
	}
	if oe.DocsURL != "" {
		args = append(args, "docs_url", oe.DocsURL)
	}
	if oe.Cause != nil {
		args = append(args, "cause", oe.Cause.Error())
	}
	return args
}

// Package logging configures the structured logger shared by the controller,
// the transport invoker and the CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// Logger wraps slog with component scoping.
type Logger struct {
	*slog.Logger
}

func ParseLevel(s string) slog.Level {
	switch Level(strings.ToLower(strings.TrimSpace(s))) {
	case LevelDebug:
		return slog.LevelDebug
	case LevelWarn:
		return slog.LevelWarn
	case LevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a text logger writing to w (stderr when nil).
func New(level string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return &Logger{Logger: slog.New(h)}
}

// NewJSON builds a JSON logger, used when logs are collected by tooling.
func NewJSON(level string, w io.Writer) *Logger {
	if w == nil {
		w = os.Stderr
	}
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)})
	return &Logger{Logger: slog.New(h)}
}

// Discard drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// WithComponent tags every record with the component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.With("component", component)}
}

// WithRun tags every record with the run id.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{Logger: l.With("run", runID)}
}

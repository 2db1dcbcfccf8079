// =============================================================================
// rowimport - Logging
// =============================================================================
//
// Logger is the printf-style logging interface used across the importer and
// server. The implementation writes through log/slog, as text or JSON.
//
// =============================================================================

package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

// Logger is an interface for logging.
type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// SlogLogger implements Logger on a *slog.Logger.
type SlogLogger struct {
	log *slog.Logger
}

// New creates a logger writing to w.
//
// PARAMETERS:
//   - level: debug, info, warn or error. Anything else means info.
//   - format: "json" for JSON lines, anything else for text.
//   - w: The destination.
func New(level, format string, w io.Writer) *SlogLogger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}

	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}

	return &SlogLogger{log: slog.New(handler)}
}

// FromSlog wraps an existing slog logger.
func FromSlog(l *slog.Logger) *SlogLogger {
	return &SlogLogger{log: l}
}

// Nop returns a logger that discards everything.
func Nop() *SlogLogger {
	return FromSlog(slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1})))
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
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

// Slog returns the underlying slog logger.
func (l *SlogLogger) Slog() *slog.Logger {
	return l.log
}

// With returns a logger that adds the given key/value pairs to every entry.
func (l *SlogLogger) With(args ...any) *SlogLogger {
	return &SlogLogger{log: l.log.With(args...)}
}

func (l *SlogLogger) Debug(msg string, args ...interface{}) {
	l.logf(slog.LevelDebug, msg, args)
}

func (l *SlogLogger) Info(msg string, args ...interface{}) {
	l.logf(slog.LevelInfo, msg, args)
}

func (l *SlogLogger) Warn(msg string, args ...interface{}) {
	l.logf(slog.LevelWarn, msg, args)
}

func (l *SlogLogger) Error(msg string, args ...interface{}) {
	l.logf(slog.LevelError, msg, args)
}

func (l *SlogLogger) logf(level slog.Level, msg string, args []interface{}) {
	ctx := context.Background()
	if !l.log.Enabled(ctx, level) {
		return
	}
	if len(args) > 0 {
		msg = fmt.Sprintf(msg, args...)
	}
	l.log.Log(ctx, level, msg)
}

// Package logging defines the structured logger used across modcore.
//
// Every package in the module logs through the Logger interface using
// variadic key-value pairs:
//
//	logger.Info("component registered", "service", "UserRepository", "priority", 5)
//
// Adapters for log/slog and go.uber.org/zap are provided, so applications
// can keep whatever backend they already run.
package logging

import "strings"

// Logger defines the interface for framework logging.
type Logger interface {
	// Info logs an informational message, e.g. a component registration.
	Info(msg string, args ...any)

	// Error logs an error that did not abort the current operation.
	Error(msg string, args ...any)

	// Warn logs an unusual condition, e.g. a startup field that could not be injected.
	Warn(msg string, args ...any)

	// Debug logs detailed diagnostics such as interceptor resolution.
	Debug(msg string, args ...any)
}

// Level is a logger severity used by level-aware decorators and config.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLevel converts a textual level to a Level. Unknown values map to LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "info"
	}
}

type nopLogger struct{}

func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Debug(string, ...any) {}

// Nop returns a Logger that discards everything.
func Nop() Logger { return nopLogger{} }

// OrNop returns l, or a no-op logger when l is nil.
func OrNop(l Logger) Logger {
	if l == nil {
		return Nop()
	}
	return l
}

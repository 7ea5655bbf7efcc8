package testutil

import (
	"fmt"
	"strings"
	"sync"
	"testing"
)

// Entry is one recorded log call.
type Entry struct {
	Level string
	Msg   string
	Args  []any
}

// Logger records log calls and mirrors them to t.Log.
type Logger struct {
	t       *testing.T
	mu      sync.Mutex
	entries []Entry
}

// NewLogger creates a recording logger bound to t. t may be nil.
func NewLogger(t *testing.T) *Logger {
	return &Logger{t: t}
}

func (l *Logger) record(level, msg string, args []any) {
	l.mu.Lock()
	l.entries = append(l.entries, Entry{Level: level, Msg: msg, Args: args})
	l.mu.Unlock()
	if l.t != nil {
		l.t.Helper()
		l.t.Log(fmt.Sprintf("[%s] %s", level, msg), args)
	}
}

func (l *Logger) Info(msg string, args ...any)  { l.record("info", msg, args) }
func (l *Logger) Error(msg string, args ...any) { l.record("error", msg, args) }
func (l *Logger) Warn(msg string, args ...any)  { l.record("warn", msg, args) }
func (l *Logger) Debug(msg string, args ...any) { l.record("debug", msg, args) }

// Entries returns a copy of everything recorded so far.
func (l *Logger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Contains reports whether any entry at level has a message containing substr.
// An empty level matches every level.
func (l *Logger) Contains(level, substr string) bool {
	for _, e := range l.Entries() {
		if (level == "" || e.Level == level) && strings.Contains(e.Msg, substr) {
			return true
		}
	}
	return false
}

package logging

import "strings"

// Decorator wraps a Logger to add behaviour without touching the backend.
type Decorator interface {
	Logger

	// Inner returns the wrapped logger
	Inner() Logger
}

// BaseDecorator forwards every call to the wrapped logger. Concrete
// decorators embed it and override what they change.
type BaseDecorator struct {
	inner Logger
}

// NewBaseDecorator creates a forwarding decorator around inner.
func NewBaseDecorator(inner Logger) *BaseDecorator {
	return &BaseDecorator{inner: OrNop(inner)}
}

// Inner returns the wrapped logger
func (d *BaseDecorator) Inner() Logger { return d.inner }

func (d *BaseDecorator) Info(msg string, args ...any)  { d.inner.Info(msg, args...) }
func (d *BaseDecorator) Error(msg string, args ...any) { d.inner.Error(msg, args...) }
func (d *BaseDecorator) Warn(msg string, args ...any)  { d.inner.Warn(msg, args...) }
func (d *BaseDecorator) Debug(msg string, args ...any) { d.inner.Debug(msg, args...) }

// WithValues injects fixed key-value pairs in front of every log call.
type WithValues struct {
	*BaseDecorator
	injected []any
}

// NewWithValues creates a decorator that prepends injected to every call.
func NewWithValues(inner Logger, injected ...any) *WithValues {
	return &WithValues{BaseDecorator: NewBaseDecorator(inner), injected: injected}
}

func (d *WithValues) combine(args []any) []any {
	if len(d.injected) == 0 {
		return args
	}
	combined := make([]any, 0, len(d.injected)+len(args))
	combined = append(combined, d.injected...)
	return append(combined, args...)
}

func (d *WithValues) Info(msg string, args ...any)  { d.inner.Info(msg, d.combine(args)...) }
func (d *WithValues) Error(msg string, args ...any) { d.inner.Error(msg, d.combine(args)...) }
func (d *WithValues) Warn(msg string, args ...any)  { d.inner.Warn(msg, d.combine(args)...) }
func (d *WithValues) Debug(msg string, args ...any) { d.inner.Debug(msg, d.combine(args)...) }

// Prefixed prepends a fixed prefix to every message.
type Prefixed struct {
	*BaseDecorator
	prefix string
}

// NewPrefixed creates a decorator adding prefix to every message.
func NewPrefixed(inner Logger, prefix string) *Prefixed {
	return &Prefixed{BaseDecorator: NewBaseDecorator(inner), prefix: prefix}
}

func (d *Prefixed) format(msg string) string {
	if d.prefix == "" {
		return msg
	}
	var b strings.Builder
	b.Grow(len(d.prefix) + len(msg) + 1)
	b.WriteString(d.prefix)
	b.WriteByte(' ')
	b.WriteString(msg)
	return b.String()
}

func (d *Prefixed) Info(msg string, args ...any)  { d.inner.Info(d.format(msg), args...) }
func (d *Prefixed) Error(msg string, args ...any) { d.inner.Error(d.format(msg), args...) }
func (d *Prefixed) Warn(msg string, args ...any)  { d.inner.Warn(d.format(msg), args...) }
func (d *Prefixed) Debug(msg string, args ...any) { d.inner.Debug(d.format(msg), args...) }

// MinLevel drops every event below a threshold.
type MinLevel struct {
	*BaseDecorator
	min Level
}

// NewMinLevel creates a decorator that only forwards events at or above min.
func NewMinLevel(inner Logger, min Level) *MinLevel {
	return &MinLevel{BaseDecorator: NewBaseDecorator(inner), min: min}
}

func (d *MinLevel) Debug(msg string, args ...any) {
	if d.min <= LevelDebug {
		d.inner.Debug(msg, args...)
	}
}

func (d *MinLevel) Info(msg string, args ...any) {
	if d.min <= LevelInfo {
		d.inner.Info(msg, args...)
	}
}

func (d *MinLevel) Warn(msg string, args ...any) {
	if d.min <= LevelWarn {
		d.inner.Warn(msg, args...)
	}
}

func (d *MinLevel) Error(msg string, args ...any) { d.inner.Error(msg, args...) }

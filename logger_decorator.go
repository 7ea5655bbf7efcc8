package modcore

import "github.com/GoCodeAlone/modcore/logging"

// LoggerDecorator wraps a Logger to add behaviour without touching the
// backend.
type LoggerDecorator = logging.Decorator

// BaseLoggerDecorator forwards every call to the wrapped logger.
type BaseLoggerDecorator = logging.BaseDecorator

// PrefixLoggerDecorator prepends a fixed prefix to every message.
type PrefixLoggerDecorator = logging.Prefixed

// ValueInjectionLoggerDecorator prepends fixed key-value pairs to every call.
type ValueInjectionLoggerDecorator = logging.WithValues

// LevelFilterLoggerDecorator drops calls below a minimum level.
type LevelFilterLoggerDecorator = logging.MinLevel

// NewBaseLoggerDecorator creates a forwarding decorator.
func NewBaseLoggerDecorator(inner Logger) *BaseLoggerDecorator {
	return logging.NewBaseDecorator(inner)
}

// NewPrefixLoggerDecorator creates a decorator prefixing every message.
func NewPrefixLoggerDecorator(inner Logger, prefix string) *PrefixLoggerDecorator {
	return logging.NewPrefixed(inner, prefix)
}

// NewValueInjectionLoggerDecorator creates a decorator injecting args into
// every call.
func NewValueInjectionLoggerDecorator(inner Logger, args ...any) *ValueInjectionLoggerDecorator {
	return logging.NewWithValues(inner, args...)
}

// NewLevelFilterLoggerDecorator creates a decorator dropping calls below
// level.
func NewLevelFilterLoggerDecorator(inner Logger, level logging.Level) *LevelFilterLoggerDecorator {
	return logging.NewMinLevel(inner, level)
}

package modcore

import (
	"log/slog"

	"go.uber.org/zap"

	"github.com/GoCodeAlone/modcore/logging"
)

// Logger defines the interface for framework logging. It uses variadic
// key-value pairs:
//
//	logger.Info("component registered", "component", "userRepository", "priority", 5)
//
// Every sub-package logs through the same interface, defined in package
// logging so they do not need to import this package.
type Logger = logging.Logger

// NewSlogLogger adapts a *slog.Logger.
func NewSlogLogger(l *slog.Logger) Logger { return logging.NewSlogLogger(l) }

// NewZapLogger adapts a *zap.Logger.
func NewZapLogger(l *zap.Logger) Logger { return logging.NewZapLogger(l) }

// NopLogger returns a Logger discarding everything.
func NopLogger() Logger { return logging.Nop() }

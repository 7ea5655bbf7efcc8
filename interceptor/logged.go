package interceptor

import (
	"context"

	"github.com/GoCodeAlone/modcore/logging"
)

// Logged marks a method whose calls are logged.
type Logged struct {
	// Message overrides the default log message.
	Message string
	// Args includes the call arguments in the entry.
	Args bool
}

func (Logged) AnnotationName() string { return "Logged" }

// LoggingInterceptor logs calls of methods annotated with Logged.
type LoggingInterceptor struct {
	Logger logging.Logger
}

func (l *LoggingInterceptor) Before(_ context.Context, a Logged, inv *Invocation) error {
	msg := a.Message
	if msg == "" {
		msg = "calling component method"
	}
	kv := []any{"method", inv.Method}
	if a.Args {
		kv = append(kv, "args", inv.Args)
	}
	logging.OrNop(l.Logger).Info(msg, kv...)
	return nil
}

func (l *LoggingInterceptor) After(_ context.Context, _ Logged, inv *Invocation) error {
	logging.OrNop(l.Logger).Debug("component method returned", "method", inv.Method)
	return nil
}

package modcore

import (
	"errors"
	"fmt"
)

// Initializer errors
var (
	// Startup errors, returned wrapped in a StartupError
	ErrNoConstructor          = errors.New("component has no constructor")
	ErrServiceNotImplemented  = errors.New("component does not implement declared service")
	ErrConstructorFailed      = errors.New("component constructor failed")
	ErrConstructorReturnedNil = errors.New("component constructor returned nil")

	// State errors
	ErrAlreadyStarted = errors.New("initializer already started")
	ErrNotStarted     = errors.New("initializer not started")
	ErrNilOption      = errors.New("option value is nil")

	// Injection errors, logged and never returned from Start
	ErrInjectionTargetMissing = errors.New("no component registered for injected field")
	ErrSetterSignature        = errors.New("setter must take exactly one argument")
)

// StartupError reports the component a startup failure belongs to.
type StartupError struct {
	Component string
	Err       error
}

func (e *StartupError) Error() string {
	return fmt.Sprintf("component %s: %v", e.Component, e.Err)
}

func (e *StartupError) Unwrap() error { return e.Err }

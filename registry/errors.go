package registry

import "errors"

// Static errors for the registry package.
var (
	// ErrNoProviderRegistered is returned by lookups for a service type that
	// was never registered. A type whose registrations were all removed is
	// still known and yields an empty result instead.
	ErrNoProviderRegistered = errors.New("no provider registered")
	ErrNilComponent         = errors.New("component instance is nil")
	ErrNilServiceType       = errors.New("service type is nil")
	ErrNotAssignable        = errors.New("component does not implement service type")
	ErrProxyMismatch        = errors.New("proxy factory result does not implement service type")
)

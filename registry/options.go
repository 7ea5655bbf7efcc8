package registry

import (
	"github.com/GoCodeAlone/modcore/filter"
	"github.com/GoCodeAlone/modcore/interceptor"
	"github.com/GoCodeAlone/modcore/logging"
)

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l logging.Logger) Option {
	return func(r *Registry) { r.logger = logging.OrNop(l) }
}

// WithDefaultPriority sets the priority used for registrations without a
// configuration.
func WithDefaultPriority(p int) Option {
	return func(r *Registry) { r.defaultPriority = p }
}

// WithObserver adds an observer.
func WithObserver(o Observer) Option {
	return func(r *Registry) { r.observers = append(r.observers, o) }
}

// WithProxying sets the dispatcher wrapping components that have a proxy
// factory. Its locator is pointed at the registry.
func WithProxying(d *interceptor.Dispatcher) Option {
	return func(r *Registry) { r.dispatcher = d }
}

// WithInterceptorPolicy sets the resolution policy of the interceptor table.
func WithInterceptorPolicy(p interceptor.Policy) Option {
	return func(r *Registry) { r.table.SetPolicy(p) }
}

// WithFilterBuilder replaces the default filter builder.
func WithFilterBuilder(b filter.Builder) Option {
	return func(r *Registry) {
		if b != nil {
			r.builder = b
		}
	}
}

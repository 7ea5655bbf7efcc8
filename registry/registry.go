// Package registry provides the component registry: components are filed
// under one or more service types with a priority and a property bag, and
// looked up by service type and property filter.
package registry

import (
	"cmp"
	"context"
	"fmt"
	"reflect"
	"slices"
	"sync"
	"time"

	"github.com/GoCodeAlone/modcore/filter"
	"github.com/GoCodeAlone/modcore/interceptor"
	"github.com/GoCodeAlone/modcore/lifecycle"
	"github.com/GoCodeAlone/modcore/logging"
)

// Registration is one component filed under one service type.
type Registration struct {
	handle       string
	serviceType  reflect.Type
	component    any
	config       *Configuration
	seq          uint64
	registeredAt time.Time
	registry     *Registry
}

// Handle is the unique registration handle.
func (r *Registration) Handle() string { return r.handle }

// ServiceType is the key the component is filed under.
func (r *Registration) ServiceType() reflect.Type { return r.serviceType }

// Component is the stored instance, proxy wrapped when a proxy factory is
// registered for the service type.
func (r *Registration) Component() any { return r.component }

// RegisteredAt is the registration time.
func (r *Registration) RegisteredAt() time.Time { return r.registeredAt }

// Configuration returns a copy of the live configuration.
func (r *Registration) Configuration() *Configuration { return r.config.Clone() }

// Priority returns the live priority.
func (r *Registration) Priority() int { return r.config.Priority() }

// AddProperty sets a property on the live configuration.
func (r *Registration) AddProperty(name string, value any) {
	r.config.AddProperty(name, value)
	r.registry.notify(EventTypePropertyChanged, ComponentEventData{
		ServiceType: typeName(r.serviceType),
		Handle:      r.handle,
		Property:    name,
		Value:       fmt.Sprint(value),
	})
}

// RemoveProperty removes a property from the live configuration.
func (r *Registration) RemoveProperty(name string) bool {
	if !r.config.RemoveProperty(name) {
		return false
	}
	r.registry.notify(EventTypePropertyChanged, ComponentEventData{
		ServiceType: typeName(r.serviceType),
		Handle:      r.handle,
		Property:    name,
		Removed:     true,
	})
	return true
}

// HasProperty reports whether the live configuration has name.
func (r *Registration) HasProperty(name string) bool { return r.config.HasProperty(name) }

// SetPriority changes the live priority; it applies to subsequent lookups
// and to interceptor resolution when the component is an interceptor.
func (r *Registration) SetPriority(p int) {
	r.config.SetPriority(p)
	r.registry.table.SetPriority(r.handle, p)
}

// Unregister removes the registration from its registry.
func (r *Registration) Unregister() bool { return r.registry.Unregister(r) }

// Registry is the component registry. Reads take a snapshot under a read
// lock, so lookups are safe during concurrent registration and removal.
type Registry struct {
	mu       sync.RWMutex
	byType   map[reflect.Type][]*Registration
	byHandle map[string]*Registration
	seq      uint64

	obsMu     sync.RWMutex
	observers []Observer

	factoriesMu sync.RWMutex
	factories   map[reflect.Type]interceptor.ProxyFactory

	defaultPriority int
	logger          logging.Logger
	table           *interceptor.Table
	dispatcher      *interceptor.Dispatcher
	builder         filter.Builder
}

// New creates a registry and registers the default filter builder under
// filter.Builder.
func New(opts ...Option) *Registry {
	r := &Registry{
		byType:          make(map[reflect.Type][]*Registration),
		byHandle:        make(map[string]*Registration),
		factories:       make(map[reflect.Type]interceptor.ProxyFactory),
		defaultPriority: DefaultPriority,
		logger:          logging.Nop(),
		table:           interceptor.NewTable(interceptor.FirstRegistered),
		builder:         filter.NewBuilder(filter.Token),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dispatcher == nil {
		r.dispatcher = interceptor.NewDispatcher(nil, interceptor.WithLogger(r.logger))
	}
	r.dispatcher.SetLocator(func() interceptor.Source { return r })

	if _, err := r.RegisterComponent(reflect.TypeFor[filter.Builder](), r.builder,
		NewConfiguration().WithPriority(DefaultPriority)); err != nil {
		r.logger.Error("failed to register default filter builder", "error", err)
	}
	return r
}

// Interceptors returns the interceptor table. It makes the registry the
// interceptor.Source of its dispatcher.
func (r *Registry) Interceptors() *interceptor.Table { return r.table }

// Dispatcher returns the dispatcher used to wrap proxied components.
func (r *Registry) Dispatcher() *interceptor.Dispatcher { return r.dispatcher }

// Logger returns the registry logger.
func (r *Registry) Logger() logging.Logger { return r.logger }

// DefaultPriority returns the priority used when no configuration is given.
func (r *Registry) DefaultPriority() int { return r.defaultPriority }

// SetProxyFactory registers the wrapper factory for serviceType. Components
// registered afterwards under serviceType are stored wrapped.
func (r *Registry) SetProxyFactory(serviceType reflect.Type, f interceptor.ProxyFactory) {
	r.factoriesMu.Lock()
	defer r.factoriesMu.Unlock()
	if f == nil {
		delete(r.factories, serviceType)
		return
	}
	r.factories[serviceType] = f
}

func (r *Registry) proxyFactory(serviceType reflect.Type) interceptor.ProxyFactory {
	r.factoriesMu.RLock()
	defer r.factoriesMu.RUnlock()
	return r.factories[serviceType]
}

// RegisterComponent files instance under serviceType. A nil cfg registers
// with the default priority and no properties; a non-nil cfg is copied.
// Registrations are additive.
func (r *Registry) RegisterComponent(serviceType reflect.Type, instance any, cfg *Configuration) (*Registration, error) {
	if serviceType == nil {
		return nil, ErrNilServiceType
	}
	if instance == nil || isNilPointer(instance) {
		return nil, fmt.Errorf("%w: %s", ErrNilComponent, typeName(serviceType))
	}
	if !reflect.TypeOf(instance).AssignableTo(serviceType) {
		return nil, fmt.Errorf("%w: %T is not %s", ErrNotAssignable, instance, serviceType)
	}

	if cfg == nil {
		cfg = NewConfiguration().WithPriority(r.defaultPriority)
	} else {
		cfg = cfg.Clone()
	}

	component := instance
	if factory := r.proxyFactory(serviceType); factory != nil {
		if _, already := instance.(interceptor.Proxy); !already {
			wrapped := factory(r.dispatcher.Wrap(instance))
			if wrapped == nil || !reflect.TypeOf(wrapped).AssignableTo(serviceType) {
				return nil, fmt.Errorf("%w: %T for %s", ErrProxyMismatch, wrapped, serviceType)
			}
			if _, ok := wrapped.(interceptor.Proxy); !ok {
				return nil, fmt.Errorf("%w: %T does not implement interceptor.Proxy", ErrProxyMismatch, wrapped)
			}
			component = wrapped
		}
	}

	reg := &Registration{
		handle:       newID(),
		serviceType:  serviceType,
		component:    component,
		config:       cfg,
		registeredAt: time.Now(),
		registry:     r,
	}

	r.mu.Lock()
	r.seq++
	reg.seq = r.seq
	list := r.byType[serviceType]
	next := make([]*Registration, len(list), len(list)+1)
	copy(next, list)
	r.byType[serviceType] = append(next, reg)
	r.byHandle[reg.handle] = reg
	r.mu.Unlock()

	r.logger.Debug("component registered", "service", typeName(serviceType), "component", componentName(instance), "priority", cfg.Priority(), "handle", reg.handle)
	r.notify(EventTypeComponentRegistered, ComponentEventData{
		ServiceType: typeName(serviceType),
		Handle:      reg.handle,
		Component:   componentName(instance),
		Priority:    cfg.Priority(),
	})
	return reg, nil
}

// Registrations returns the registrations under serviceType matching f,
// highest priority first and in registration order among equal priorities.
// It fails with ErrNoProviderRegistered when serviceType was never
// registered.
func (r *Registry) Registrations(serviceType reflect.Type, f filter.Filter) ([]*Registration, error) {
	r.mu.RLock()
	list, known := r.byType[serviceType]
	r.mu.RUnlock()

	if !known {
		r.notify(EventTypeLookupMiss, ComponentEventData{ServiceType: typeName(serviceType)})
		return nil, fmt.Errorf("%w: %s", ErrNoProviderRegistered, typeName(serviceType))
	}

	type ranked struct {
		reg      *Registration
		priority int
	}
	matched := make([]ranked, 0, len(list))
	for _, reg := range list {
		if reg.config.Matches(f) {
			matched = append(matched, ranked{reg, reg.config.Priority()})
		}
	}
	slices.SortStableFunc(matched, func(a, b ranked) int {
		if c := cmp.Compare(b.priority, a.priority); c != 0 {
			return c
		}
		return cmp.Compare(a.reg.seq, b.reg.seq)
	})

	out := make([]*Registration, len(matched))
	for i, m := range matched {
		out[i] = m.reg
	}
	return out, nil
}

// FindComponents returns the components of Registrations.
func (r *Registry) FindComponents(serviceType reflect.Type, f filter.Filter) ([]any, error) {
	regs, err := r.Registrations(serviceType, f)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(regs))
	for i, reg := range regs {
		out[i] = reg.component
	}
	return out, nil
}

// FindComponent returns the first component of FindComponents, or nil when
// nothing matches.
func (r *Registry) FindComponent(serviceType reflect.Type, f filter.Filter) (any, error) {
	regs, err := r.Registrations(serviceType, f)
	if err != nil {
		return nil, err
	}
	if len(regs) == 0 {
		return nil, nil
	}
	return regs[0].component, nil
}

// Registration returns the registration with handle.
func (r *Registry) Registration(handle string) (*Registration, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	reg, ok := r.byHandle[handle]
	return reg, ok
}

// ServiceTypes returns every service type ever registered.
func (r *Registry) ServiceTypes() []reflect.Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]reflect.Type, 0, len(r.byType))
	for t := range r.byType {
		out = append(out, t)
	}
	slices.SortFunc(out, func(a, b reflect.Type) int {
		switch {
		case a.String() < b.String():
			return -1
		case a.String() > b.String():
			return 1
		}
		return 0
	})
	return out
}

// Unregister removes reg. It returns false when reg is nil or no longer
// registered.
func (r *Registry) Unregister(reg *Registration) bool {
	if reg == nil {
		return false
	}
	r.mu.Lock()
	if _, ok := r.byHandle[reg.handle]; !ok {
		r.mu.Unlock()
		return false
	}
	r.removeLocked(reg)
	r.mu.Unlock()

	r.afterRemove(reg)
	return true
}

// UnregisterComponent removes the first registration under serviceType whose
// component is instance. Proxies on either side are compared by the
// component they wrap.
func (r *Registry) UnregisterComponent(serviceType reflect.Type, instance any) bool {
	if instance == nil {
		return false
	}
	r.mu.Lock()
	var found *Registration
	for _, reg := range r.byType[serviceType] {
		if interceptor.SameInstance(reg.component, instance) {
			found = reg
			break
		}
	}
	if found == nil {
		r.mu.Unlock()
		return false
	}
	r.removeLocked(found)
	r.mu.Unlock()

	r.afterRemove(found)
	return true
}

// removeLocked drops reg. The type key stays known even when its list
// becomes empty.
func (r *Registry) removeLocked(reg *Registration) {
	list := r.byType[reg.serviceType]
	next := make([]*Registration, 0, len(list))
	for _, x := range list {
		if x != reg {
			next = append(next, x)
		}
	}
	r.byType[reg.serviceType] = next
	delete(r.byHandle, reg.handle)
}

func (r *Registry) afterRemove(reg *Registration) {
	r.table.Remove(reg.handle)
	r.logger.Debug("component unregistered", "service", typeName(reg.serviceType), "handle", reg.handle)
	r.notify(EventTypeComponentUnregistered, ComponentEventData{
		ServiceType: typeName(reg.serviceType),
		Handle:      reg.handle,
		Component:   componentName(interceptor.Identity(reg.component)),
		Priority:    reg.config.Priority(),
	})
}

// FilterBuilder resolves the filter.Builder component. The builder
// registered by New is used when none can be found.
func (r *Registry) FilterBuilder() filter.Builder {
	c, err := r.FindComponent(reflect.TypeFor[filter.Builder](), nil)
	if err == nil && c != nil {
		if b, ok := c.(filter.Builder); ok {
			return b
		}
	}
	return r.builder
}

// CreateFilter is shorthand for FilterBuilder().CreateFilter.
func (r *Registry) CreateFilter(name string, value any) filter.Filter {
	return r.FilterBuilder().CreateFilter(name, value)
}

// InvokeLifecycle runs the phase hook of instance, logging and swallowing
// failures.
func (r *Registry) InvokeLifecycle(ctx context.Context, phase lifecycle.Phase, instance any) bool {
	return lifecycle.Invoke(ctx, phase, instance, r.logger)
}

func isNilPointer(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

package registry

import (
	"fmt"
	"reflect"

	"github.com/GoCodeAlone/modcore/filter"
	"github.com/GoCodeAlone/modcore/interceptor"
)

// Register files instance under the service type T.
func Register[T any](r *Registry, instance T, cfg *Configuration) (*Registration, error) {
	return r.RegisterComponent(reflect.TypeFor[T](), instance, cfg)
}

// FindAll returns the components registered under T matching f, highest
// priority first.
func FindAll[T any](r *Registry, f filter.Filter) ([]T, error) {
	components, err := r.FindComponents(reflect.TypeFor[T](), f)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(components))
	for _, c := range components {
		if v, ok := c.(T); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

// Find returns the first component under T matching f. It returns the zero
// value and a nil error when T is known but nothing matches.
func Find[T any](r *Registry, f filter.Filter) (T, error) {
	var zero T
	c, err := r.FindComponent(reflect.TypeFor[T](), f)
	if err != nil || c == nil {
		return zero, err
	}
	v, ok := c.(T)
	if !ok {
		return zero, nil
	}
	return v, nil
}

// Lookup is Find for optional collaborators: unknown types and empty results
// both report false.
func Lookup[T any](r *Registry, f filter.Filter) (T, bool) {
	v, err := Find[T](r, f)
	if err != nil {
		return v, false
	}
	return v, !isZero(v)
}

// MustFind is Find for mandatory collaborators. It panics when nothing
// matches.
func MustFind[T any](r *Registry, f filter.Filter) T {
	v, err := Find[T](r, f)
	if err != nil {
		panic(err)
	}
	if isZero(v) {
		panic(fmt.Errorf("%w: %s (no match)", ErrNoProviderRegistered, reflect.TypeFor[T]()))
	}
	return v
}

// Unregister removes instance from the registrations under T.
func Unregister[T any](r *Registry, instance T) bool {
	return r.UnregisterComponent(reflect.TypeFor[T](), instance)
}

// RegisterProxyFactory installs the wrapper factory for service type T.
func RegisterProxyFactory[T any](r *Registry, factory func(h *interceptor.Handler) T) {
	r.SetProxyFactory(reflect.TypeFor[T](), func(h *interceptor.Handler) any { return factory(h) })
}

// RegisterBefore registers impl as a component under interceptor.Before[A]
// and files it in the interceptor table. Unregistering the returned
// registration removes it from both.
func RegisterBefore[A interceptor.Annotation](r *Registry, impl interceptor.Before[A], cfg *Configuration) (*Registration, error) {
	reg, err := Register[interceptor.Before[A]](r, impl, cfg)
	if err != nil {
		return nil, err
	}
	interceptor.RegisterBefore[A](r.table, reg.handle, reg.Priority(), impl)
	return reg, nil
}

// RegisterAfter is RegisterBefore for interceptor.After[A].
func RegisterAfter[A interceptor.Annotation](r *Registry, impl interceptor.After[A], cfg *Configuration) (*Registration, error) {
	reg, err := Register[interceptor.After[A]](r, impl, cfg)
	if err != nil {
		return nil, err
	}
	interceptor.RegisterAfter[A](r.table, reg.handle, reg.Priority(), impl)
	return reg, nil
}

// RegisterBeforeFields is RegisterBefore for interceptor.BeforeFields[A].
func RegisterBeforeFields[A interceptor.Annotation](r *Registry, impl interceptor.BeforeFields[A], cfg *Configuration) (*Registration, error) {
	reg, err := Register[interceptor.BeforeFields[A]](r, impl, cfg)
	if err != nil {
		return nil, err
	}
	interceptor.RegisterBeforeFields[A](r.table, reg.handle, reg.Priority(), impl)
	return reg, nil
}

// RegisterAfterFields is RegisterBefore for interceptor.AfterFields[A].
func RegisterAfterFields[A interceptor.Annotation](r *Registry, impl interceptor.AfterFields[A], cfg *Configuration) (*Registration, error) {
	reg, err := Register[interceptor.AfterFields[A]](r, impl, cfg)
	if err != nil {
		return nil, err
	}
	interceptor.RegisterAfterFields[A](r.table, reg.handle, reg.Priority(), impl)
	return reg, nil
}

func isZero[T any](v T) bool {
	rv := reflect.ValueOf(&v).Elem()
	return rv.IsZero()
}

package interceptor

import "reflect"

// Proxy is implemented by every wrapper produced by a ProxyFactory.
type Proxy interface {
	InvocationHandler() *Handler
}

// ProxyFactory builds a typed wrapper around the target of h. The result
// must implement the service type the factory is registered for and Proxy.
type ProxyFactory func(h *Handler) any

// Unwrap removes one proxy level. Non-proxies are returned unchanged.
func Unwrap(v any) any {
	if p, ok := v.(Proxy); ok {
		if h := p.InvocationHandler(); h != nil {
			return h.Target()
		}
	}
	return v
}

// Identity removes every proxy level and returns the underlying component.
func Identity(v any) any {
	for i := 0; i < 16; i++ {
		next := Unwrap(v)
		if sameValue(next, v) {
			return v
		}
		v = next
	}
	return v
}

// SameInstance reports whether a and b denote the same component once
// proxies are removed.
func SameInstance(a, b any) bool {
	return sameValue(Identity(a), Identity(b))
}

// sameValue compares by pointer for reference kinds and by == for other
// comparable values. It never panics on uncomparable values.
func sameValue(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb {
		return false
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	switch va.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	}
	if ta.Comparable() {
		return a == b
	}
	return false
}

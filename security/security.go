// Package security carries the logged principal through a context.Context.
package security

import (
	"context"
	"reflect"
)

// Principal identifies the caller.
type Principal interface {
	Name() string
}

// User is a minimal Principal implementation.
type User struct {
	Username string
	Admin    bool
	Roles    []string
}

func (u *User) Name() string { return u.Username }

// IsAdmin reports whether the user bypasses permission checks.
func (u *User) IsAdmin() bool { return u.Admin }

// RoleNames returns the roles declared on the user itself.
func (u *User) RoleNames() []string { return u.Roles }

type principalKey struct{}

// WithPrincipal returns a context carrying p. A nil p, including a typed nil
// pointer, clears the principal.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if isNil(p) {
		p = nil
	}
	return context.WithValue(ctx, principalKey{}, p)
}

func isNil(p Principal) bool {
	if p == nil {
		return true
	}
	switch v := reflect.ValueOf(p); v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Interface, reflect.Chan:
		return v.IsNil()
	}
	return false
}

// PrincipalFrom returns the principal carried by ctx.
func PrincipalFrom(ctx context.Context) (Principal, bool) {
	if ctx == nil {
		return nil, false
	}
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p != nil
}

// RunAs runs fn with p as the principal. The caller's context is not
// modified, so the previous principal is back in effect once fn returns or
// panics.
func RunAs(ctx context.Context, p Principal, fn func(ctx context.Context) error) error {
	return fn(WithPrincipal(ctx, p))
}

// RunAsValue is RunAs for functions returning a value.
func RunAsValue[T any](ctx context.Context, p Principal, fn func(ctx context.Context) (T, error)) (T, error) {
	return fn(WithPrincipal(ctx, p))
}

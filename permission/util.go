package permission

import (
	"context"
	"reflect"

	"github.com/GoCodeAlone/modcore/action"
	"github.com/GoCodeAlone/modcore/filter"
	"github.com/GoCodeAlone/modcore/logging"
	"github.com/GoCodeAlone/modcore/registry"
)

// Util resolves actions and the permission manager through the component
// registry on every check, so managers can be swapped at runtime.
type Util struct {
	registry      *registry.Registry
	managerFilter filter.Filter
	logger        logging.Logger
}

// UtilOption configures a Util.
type UtilOption func(*Util)

// WithManagerFilter selects which Manager registration to use.
func WithManagerFilter(f filter.Filter) UtilOption {
	return func(u *Util) { u.managerFilter = f }
}

// WithLogger sets the logger.
func WithLogger(l logging.Logger) UtilOption {
	return func(u *Util) { u.logger = logging.OrNop(l) }
}

// NewUtil creates a Util over r.
func NewUtil(r *registry.Registry, opts ...UtilOption) *Util {
	u := &Util{registry: r, logger: r.Logger()}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Manager returns the active permission manager.
func (u *Util) Manager() (Manager, bool) {
	return registry.Lookup[Manager](u.registry, u.managerFilter)
}

func (u *Util) resolve(resourceName, actionName string) (Manager, action.Action, bool) {
	m, ok := u.Manager()
	if !ok {
		u.logger.Debug("no permission manager registered", "resource", resourceName)
		return nil, nil, false
	}
	ra, err := action.Find(u.registry, resourceName, actionName)
	if err != nil || ra == nil {
		u.logger.Debug("action not registered", "resource", resourceName, "action", actionName)
		return nil, nil, false
	}
	return m, ra.Action, true
}

// CanPerform reports whether user may perform actionName on resourceName.
// Missing managers or actions deny.
func (u *Util) CanPerform(ctx context.Context, user User, resourceName, actionName string) bool {
	if user == nil {
		return false
	}
	m, a, ok := u.resolve(resourceName, actionName)
	if !ok {
		return false
	}
	return m.HasPermission(ctx, user, resourceName, a)
}

// CanPerformOnEntity is CanPerform for a specific entity, letting the
// manager apply ownership rules.
func (u *Util) CanPerformOnEntity(ctx context.Context, user User, entity any, actionName string) bool {
	if user == nil || isNil(entity) {
		return false
	}
	m, a, ok := u.resolve(EntityResourceName(entity), actionName)
	if !ok {
		return false
	}
	return m.HasPermissionOnEntity(ctx, user, entity, a)
}

// UserCanPerform is CanPerform for the user logged in ctx.
func (u *Util) UserCanPerform(ctx context.Context, resourceName, actionName string) bool {
	user, ok := UserFrom(ctx)
	return ok && u.CanPerform(ctx, user, resourceName, actionName)
}

// UserCanPerformOnEntity is CanPerformOnEntity for the user logged in ctx.
func (u *Util) UserCanPerformOnEntity(ctx context.Context, entity any, actionName string) bool {
	user, ok := UserFrom(ctx)
	return ok && u.CanPerformOnEntity(ctx, user, entity, actionName)
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Interface, reflect.Func, reflect.Chan:
		return rv.IsNil()
	}
	return false
}

func typeOf(v any) reflect.Type {
	if v == nil {
		return nil
	}
	return reflect.TypeOf(v)
}

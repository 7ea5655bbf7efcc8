package permission

import (
	"context"
	"fmt"
	"reflect"

	"github.com/GoCodeAlone/modcore/interceptor"
	"github.com/GoCodeAlone/modcore/registry"
)

// AllowPermissions requires the logged user to hold every action on the
// resource named by the target component (see ResourceNamer). With Entity
// set, the check runs against the first call argument instead, which lets
// the manager apply ownership rules.
type AllowPermissions struct {
	Actions []string
	Entity  bool
}

func (AllowPermissions) AnnotationName() string { return "AllowPermissions" }

// AllowPermissionsOnReturn checks the returned entity after the call. Slice
// results are filtered down to the permitted elements.
type AllowPermissionsOnReturn struct {
	Actions []string
}

func (AllowPermissionsOnReturn) AnnotationName() string { return "AllowPermissionsOnReturn" }

// AllowLoggedUser requires any logged user. It is only ever executed by
// LoggedUserInterceptor.
type AllowLoggedUser struct{}

func (AllowLoggedUser) AnnotationName() string { return "AllowLoggedUser" }

// Executor pins the interceptor implementation.
func (AllowLoggedUser) Executor() reflect.Type { return reflect.TypeFor[*LoggedUserInterceptor]() }

// AllowGenericPermissions requires actions on an explicitly named resource,
// for operations that are not tied to the target's own resource.
type AllowGenericPermissions struct {
	ResourceName string
	Actions      []string
}

func (AllowGenericPermissions) AnnotationName() string { return "AllowGenericPermissions" }

func denied(resourceName, actionName string) error {
	return fmt.Errorf("%w: %s on %s", ErrUnauthorized, actionName, resourceName)
}

// PermissionInterceptor enforces AllowPermissions.
type PermissionInterceptor struct {
	Util *Util
}

func (p *PermissionInterceptor) Before(ctx context.Context, a AllowPermissions, inv *interceptor.Invocation) error {
	user, ok := UserFrom(ctx)
	if !ok {
		return fmt.Errorf("%w: no logged user for %s", ErrUnauthorized, inv.Method)
	}

	if a.Entity {
		if len(inv.Args) == 0 || inv.Args[0] == nil {
			return fmt.Errorf("%w: %s has no entity argument", ErrMissingTarget, inv.Method)
		}
		entity := inv.Args[0]
		for _, name := range a.Actions {
			if !p.Util.CanPerformOnEntity(ctx, user, entity, name) {
				return denied(EntityResourceName(entity), name)
			}
		}
		return nil
	}

	namer, ok := interceptor.Identity(inv.Target).(ResourceNamer)
	if !ok {
		return fmt.Errorf("%w: %T", ErrMissingTarget, inv.Target)
	}
	resource := namer.ResourceName()
	for _, name := range a.Actions {
		if !p.Util.CanPerform(ctx, user, resource, name) {
			return denied(resource, name)
		}
	}
	return nil
}

// ReturnPermissionInterceptor enforces AllowPermissionsOnReturn.
type ReturnPermissionInterceptor struct {
	Util *Util
}

func (p *ReturnPermissionInterceptor) After(ctx context.Context, a AllowPermissionsOnReturn, inv *interceptor.Invocation) error {
	if isNil(inv.Result) {
		return nil
	}
	user, ok := UserFrom(ctx)
	if !ok {
		return fmt.Errorf("%w: no logged user for %s", ErrUnauthorized, inv.Method)
	}
	allowed := func(entity any) (bool, string) {
		for _, name := range a.Actions {
			if !p.Util.CanPerformOnEntity(ctx, user, entity, name) {
				return false, name
			}
		}
		return true, ""
	}

	rv := reflect.ValueOf(inv.Result)
	if rv.Kind() == reflect.Slice {
		kept := reflect.MakeSlice(rv.Type(), 0, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			if ok, _ := allowed(rv.Index(i).Interface()); ok {
				kept = reflect.Append(kept, rv.Index(i))
			}
		}
		inv.Result = kept.Interface()
		return nil
	}

	if ok, name := allowed(inv.Result); !ok {
		return denied(EntityResourceName(inv.Result), name)
	}
	return nil
}

// LoggedUserInterceptor enforces AllowLoggedUser.
type LoggedUserInterceptor struct{}

func (*LoggedUserInterceptor) Before(ctx context.Context, _ AllowLoggedUser, inv *interceptor.Invocation) error {
	if _, ok := UserFrom(ctx); !ok {
		return fmt.Errorf("%w: %s requires a logged user", ErrUnauthorized, inv.Method)
	}
	return nil
}

// GenericPermissionInterceptor enforces AllowGenericPermissions.
type GenericPermissionInterceptor struct {
	Util *Util
}

func (p *GenericPermissionInterceptor) Before(ctx context.Context, a AllowGenericPermissions, inv *interceptor.Invocation) error {
	if a.ResourceName == "" {
		return fmt.Errorf("%w: %s", ErrMissingTarget, inv.Method)
	}
	user, ok := UserFrom(ctx)
	if !ok {
		return fmt.Errorf("%w: no logged user for %s", ErrUnauthorized, inv.Method)
	}
	for _, name := range a.Actions {
		if !p.Util.CanPerform(ctx, user, a.ResourceName, name) {
			return denied(a.ResourceName, name)
		}
	}
	return nil
}

// RegisterInterceptors registers the four permission interceptors in r.
func RegisterInterceptors(r *registry.Registry, util *Util) ([]*registry.Registration, error) {
	var regs []*registry.Registration
	add := func(reg *registry.Registration, err error) error {
		if err != nil {
			return err
		}
		regs = append(regs, reg)
		return nil
	}

	if err := add(registry.RegisterBefore[AllowPermissions](r, &PermissionInterceptor{Util: util}, nil)); err != nil {
		return regs, err
	}
	if err := add(registry.RegisterAfter[AllowPermissionsOnReturn](r, &ReturnPermissionInterceptor{Util: util}, nil)); err != nil {
		return regs, err
	}
	if err := add(registry.RegisterBefore[AllowLoggedUser](r, &LoggedUserInterceptor{}, nil)); err != nil {
		return regs, err
	}
	if err := add(registry.RegisterBefore[AllowGenericPermissions](r, &GenericPermissionInterceptor{Util: util}, nil)); err != nil {
		return regs, err
	}
	return regs, nil
}

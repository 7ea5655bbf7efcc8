package permission

import (
	"context"
	"errors"
	"fmt"

	"github.com/GoCodeAlone/modcore/action"
	"github.com/GoCodeAlone/modcore/registry"
)

// RegisterDefaultRoleAccess grants the default role actions declared in ac
// on the resource of list, creating missing roles. It is a no-op when no
// Manager or RoleManager is registered.
func RegisterDefaultRoleAccess(ctx context.Context, r *registry.Registry, resourceName string, list *action.ActionList, ac action.AccessControl) error {
	if len(ac.RoleAccess) == 0 {
		return nil
	}
	m, ok := registry.Lookup[Manager](r, nil)
	if !ok {
		r.Logger().Debug("skipping default role access, no permission manager", "resource", resourceName)
		return nil
	}
	roles, ok := registry.Lookup[RoleManager](r, nil)
	if !ok {
		r.Logger().Debug("skipping default role access, no role manager", "resource", resourceName)
		return nil
	}

	var errs []error
	for _, access := range ac.RoleAccess {
		if !roles.ExistsRole(ctx, access.Role) {
			if err := roles.CreateRole(ctx, access.Role); err != nil {
				errs = append(errs, fmt.Errorf("create role %s: %w", access.Role, err))
				continue
			}
		}
		var granted []action.Action
		for _, name := range access.Actions {
			ra, ok := list.Action(name)
			if !ok {
				errs = append(errs, fmt.Errorf("%s: unknown action %q for role %s", resourceName, name, access.Role))
				continue
			}
			granted = append(granted, ra.Action)
		}
		if len(granted) == 0 {
			continue
		}
		if err := m.AddPermissions(ctx, access.Role, resourceName, granted...); err != nil {
			errs = append(errs, fmt.Errorf("grant %s on %s: %w", access.Role, resourceName, err))
		}
	}
	return errors.Join(errs...)
}

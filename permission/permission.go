// Package permission answers "may this user perform that action on this
// resource" and enforces the answer through method interceptors.
//
// Managers only ever return booleans. The interceptors in this package turn
// a denial into ErrUnauthorized at the call boundary.
package permission

import (
	"context"
	"errors"

	"github.com/GoCodeAlone/modcore/action"
	"github.com/GoCodeAlone/modcore/security"
)

// Static errors for the permission package.
var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrRoleNotFound  = errors.New("role not found")
	ErrMissingTarget = errors.New("permission annotation has no resource name")
)

// User is a principal the permission layer can reason about.
type User interface {
	security.Principal
	IsAdmin() bool
}

// Owned is implemented by entities that always grant access to their owner.
type Owned interface {
	OwnerName() string
}

// ResourceNamer lets a component or entity name the resource it acts on.
type ResourceNamer interface {
	ResourceName() string
}

// Manager checks and grants permissions.
type Manager interface {
	HasPermission(ctx context.Context, user User, resourceName string, a action.Action) bool
	HasPermissionOnEntity(ctx context.Context, user User, entity any, a action.Action) bool
	AddPermissions(ctx context.Context, roleName, resourceName string, actions ...action.Action) error
}

// RoleManager stores roles and their assignment to users.
type RoleManager interface {
	CreateRole(ctx context.Context, name string) error
	ExistsRole(ctx context.Context, name string) bool
	AddRole(ctx context.Context, username, roleName string) error
	RemoveRole(ctx context.Context, username, roleName string) error
	UserRoles(ctx context.Context, username string) []string
}

type principalUser struct {
	security.Principal
}

func (principalUser) IsAdmin() bool { return false }

// AsUser adapts p to User. Principals that do not implement User are never
// admins.
func AsUser(p security.Principal) User {
	if p == nil {
		return nil
	}
	if u, ok := p.(User); ok {
		return u
	}
	return principalUser{p}
}

// UserFrom returns the logged user carried by ctx.
func UserFrom(ctx context.Context) (User, bool) {
	p, ok := security.PrincipalFrom(ctx)
	if !ok {
		return nil, false
	}
	return AsUser(p), true
}

// EntityResourceName returns the resource name of entity: its own
// ResourceName when it implements ResourceNamer, else its type name.
func EntityResourceName(entity any) string {
	if n, ok := entity.(ResourceNamer); ok {
		return n.ResourceName()
	}
	return action.TypeName(typeOf(entity))
}

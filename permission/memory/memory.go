// Package memory provides an in-memory permission.Manager and
// permission.RoleManager storing one bitmask per (role, resource) pair.
package memory

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/GoCodeAlone/modcore/action"
	"github.com/GoCodeAlone/modcore/logging"
	"github.com/GoCodeAlone/modcore/permission"
	"github.com/GoCodeAlone/modcore/registry"
)

type grantKey struct {
	role     string
	resource string
}

// Store implements permission.Manager and permission.RoleManager.
type Store struct {
	mu        sync.RWMutex
	roles     map[string]struct{}
	userRoles map[string][]string
	grants    map[grantKey]int64
	logger    logging.Logger
}

var (
	_ permission.Manager     = (*Store)(nil)
	_ permission.RoleManager = (*Store)(nil)
)

// New creates an empty store.
func New(logger logging.Logger) *Store {
	return &Store{
		roles:     make(map[string]struct{}),
		userRoles: make(map[string][]string),
		grants:    make(map[grantKey]int64),
		logger:    logging.OrNop(logger),
	}
}

// Register files s in r as both the permission and role manager.
func (s *Store) Register(r *registry.Registry, cfg *registry.Configuration) error {
	if _, err := registry.Register[permission.Manager](r, s, cfg); err != nil {
		return err
	}
	if _, err := registry.Register[permission.RoleManager](r, s, cfg); err != nil {
		return err
	}
	return nil
}

func (s *Store) CreateRole(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.roles[name] = struct{}{}
	return nil
}

func (s *Store) ExistsRole(_ context.Context, name string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.roles[name]
	return ok
}

// AddRole assigns an existing role to username.
func (s *Store) AddRole(_ context.Context, username, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleName]; !ok {
		return fmt.Errorf("%w: %s", permission.ErrRoleNotFound, roleName)
	}
	if !slices.Contains(s.userRoles[username], roleName) {
		s.userRoles[username] = append(s.userRoles[username], roleName)
	}
	return nil
}

func (s *Store) RemoveRole(_ context.Context, username, roleName string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	roles := s.userRoles[username]
	i := slices.Index(roles, roleName)
	if i < 0 {
		return fmt.Errorf("%w: %s not assigned to %s", permission.ErrRoleNotFound, roleName, username)
	}
	s.userRoles[username] = slices.Delete(slices.Clone(roles), i, i+1)
	return nil
}

func (s *Store) UserRoles(_ context.Context, username string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.userRoles[username])
}

// AddPermissions ORs the action bits into the role's mask for resourceName.
func (s *Store) AddPermissions(_ context.Context, roleName, resourceName string, actions ...action.Action) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.roles[roleName]; !ok {
		return fmt.Errorf("%w: %s", permission.ErrRoleNotFound, roleName)
	}
	key := grantKey{role: roleName, resource: resourceName}
	s.grants[key] |= action.Mask(actions...)
	s.logger.Debug("permissions granted", "role", roleName, "resource", resourceName, "mask", s.grants[key])
	return nil
}

// Mask returns the bitmask granted to roleName on resourceName.
func (s *Store) Mask(roleName, resourceName string) int64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.grants[grantKey{role: roleName, resource: resourceName}]
}

// HasPermission is true for admins and for users holding a role whose mask
// on resourceName includes a.
func (s *Store) HasPermission(_ context.Context, user permission.User, resourceName string, a action.Action) bool {
	if user == nil || a == nil {
		return false
	}
	if user.IsAdmin() {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, role := range s.rolesOf(user) {
		if action.Has(s.grants[grantKey{role: role, resource: resourceName}], a) {
			return true
		}
	}
	return false
}

// HasPermissionOnEntity grants owners full access to their entities and
// otherwise falls back to HasPermission on the entity's resource.
func (s *Store) HasPermissionOnEntity(ctx context.Context, user permission.User, entity any, a action.Action) bool {
	if user == nil || entity == nil {
		return false
	}
	if owned, ok := entity.(permission.Owned); ok && owned.OwnerName() == user.Name() {
		return true
	}
	return s.HasPermission(ctx, user, permission.EntityResourceName(entity), a)
}

// rolesOf merges stored assignments with roles the user declares itself.
func (s *Store) rolesOf(user permission.User) []string {
	roles := s.userRoles[user.Name()]
	if declared, ok := user.(interface{ RoleNames() []string }); ok {
		for _, r := range declared.RoleNames() {
			if !slices.Contains(roles, r) {
				roles = append(slices.Clip(roles), r)
			}
		}
	}
	return roles
}

package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoCodeAlone/modcore/action"
	"github.com/GoCodeAlone/modcore/permission"
	"github.com/GoCodeAlone/modcore/registry"
	"github.com/GoCodeAlone/modcore/security"
)

type report struct{ owner string }

func (r *report) OwnerName() string    { return r.owner }
func (r *report) ResourceName() string { return "reports" }

func TestStore_Roles(t *testing.T) {
	ctx := context.Background()
	s := New(nil)

	assert.ErrorIs(t, s.AddRole(ctx, "ann", "auditor"), permission.ErrRoleNotFound)
	require.NoError(t, s.CreateRole(ctx, "auditor"))
	assert.True(t, s.ExistsRole(ctx, "auditor"))

	require.NoError(t, s.AddRole(ctx, "ann", "auditor"))
	require.NoError(t, s.AddRole(ctx, "ann", "auditor"))
	assert.Equal(t, []string{"auditor"}, s.UserRoles(ctx, "ann"))

	require.NoError(t, s.RemoveRole(ctx, "ann", "auditor"))
	assert.Empty(t, s.UserRoles(ctx, "ann"))
	assert.ErrorIs(t, s.RemoveRole(ctx, "ann", "auditor"), permission.ErrRoleNotFound)
}

func TestStore_BitmaskPermissions(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	require.NoError(t, s.CreateRole(ctx, "auditor"))
	require.NoError(t, s.AddPermissions(ctx, "auditor", "reports", action.CrudFind, action.CrudFindAll))
	require.NoError(t, s.AddPermissions(ctx, "auditor", "reports", action.CrudSave))
	assert.Equal(t, int64(21), s.Mask("auditor", "reports"))
	assert.ErrorIs(t, s.AddPermissions(ctx, "ghost", "reports", action.CrudSave), permission.ErrRoleNotFound)

	require.NoError(t, s.AddRole(ctx, "ann", "auditor"))
	ann := &security.User{Username: "ann"}
	bob := &security.User{Username: "bob", Roles: []string{"auditor"}}
	root := &security.User{Username: "root", Admin: true}

	tests := []struct {
		name     string
		user     permission.User
		resource string
		action   action.Action
		expected bool
	}{
		{"assigned role", ann, "reports", action.CrudFind, true},
		{"missing bit", ann, "reports", action.CrudRemove, false},
		{"other resource", ann, "invoices", action.CrudFind, false},
		{"declared role", bob, "reports", action.CrudSave, true},
		{"admin", root, "anything", action.APIDelete, true},
		{"nil user", nil, "reports", action.CrudFind, false},
		{"nil action", ann, "reports", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, s.HasPermission(ctx, tt.user, tt.resource, tt.action))
		})
	}
}

func TestStore_HasPermissionOnEntity(t *testing.T) {
	ctx := context.Background()
	s := New(nil)
	require.NoError(t, s.CreateRole(ctx, "reader"))
	require.NoError(t, s.AddPermissions(ctx, "reader", "reports", action.CrudFind))
	require.NoError(t, s.AddRole(ctx, "ann", "reader"))

	ann := &security.User{Username: "ann"}
	carl := &security.User{Username: "carl"}

	assert.True(t, s.HasPermissionOnEntity(ctx, carl, &report{owner: "carl"}, action.CrudRemove))
	assert.False(t, s.HasPermissionOnEntity(ctx, carl, &report{owner: "ann"}, action.CrudFind))
	assert.True(t, s.HasPermissionOnEntity(ctx, ann, &report{owner: "carl"}, action.CrudFind))
	assert.False(t, s.HasPermissionOnEntity(ctx, ann, nil, action.CrudFind))
}

func TestStore_Register(t *testing.T) {
	r := registry.New()
	s := New(nil)
	require.NoError(t, s.Register(r, nil))

	m, ok := registry.Lookup[permission.Manager](r, nil)
	require.True(t, ok)
	assert.Same(t, s, m)
	rm, ok := registry.Lookup[permission.RoleManager](r, nil)
	require.True(t, ok)
	assert.Same(t, s, rm)
}

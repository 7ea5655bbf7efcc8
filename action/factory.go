package action

import (
	"fmt"
	"reflect"
)

// CreateBaseCrudActionList returns a list holding the five CRUD actions.
func CreateBaseCrudActionList(resourceType reflect.Type) *ActionList {
	l := NewActionList(resourceType)
	for _, a := range CrudActions {
		_ = l.Add(a)
	}
	return l
}

// CreateActionList returns a list of generic actions where the action at
// index i has id 1<<i. Duplicate names keep their first position.
func CreateActionList(resourceType reflect.Type, names ...string) (*ActionList, error) {
	l := NewActionList(resourceType)
	typeName := TypeName(resourceType)
	bit := 0
	for _, name := range names {
		if _, dup := l.Action(name); dup {
			continue
		}
		if bit > 62 {
			return nil, ErrTooManyActions
		}
		a, err := NewGenericAction(name, typeName, int64(1)<<bit)
		if err != nil {
			return nil, err
		}
		if err := l.Add(a); err != nil {
			return nil, err
		}
		bit++
	}
	return l, nil
}

// AddNamedAction appends a generic action taking the next free power of
// two. Adding an existing name returns the existing entry.
func AddNamedAction(l *ActionList, name string) (*ResourceAction, error) {
	if ra, ok := l.Action(name); ok {
		return ra, nil
	}
	id, err := l.nextID()
	if err != nil {
		return nil, fmt.Errorf("add %s: %w", name, err)
	}
	a, err := NewGenericAction(name, l.ResourceName(), id)
	if err != nil {
		return nil, err
	}
	ra := &ResourceAction{Action: a, ResourceType: l.ResourceType()}
	if err := l.AddAction(ra); err != nil {
		return nil, err
	}
	return ra, nil
}

// RoleAccess grants actions to a role by default.
type RoleAccess struct {
	Role    string
	Actions []string
}

// AccessControl declares the actions a resource supports and which roles
// get which actions by default.
type AccessControl struct {
	AvailableActions []string
	RoleAccess       []RoleAccess
}

// AccessControlled is implemented by resources that declare access control.
type AccessControlled interface {
	AccessControl() AccessControl
}

// ListFromAccessControl builds the action list declared by ac, bit position
// following declaration order.
func ListFromAccessControl(resourceType reflect.Type, ac AccessControl) (*ActionList, error) {
	return CreateActionList(resourceType, ac.AvailableActions...)
}

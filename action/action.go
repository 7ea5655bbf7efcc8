// Package action models the operations that can be performed on a resource.
//
// Every action carries an id that is a power of two, unique within its
// action type, so sets of actions can be stored and compared as bitmasks:
//
//	mask := action.Mask(action.CrudSave, action.CrudFind)
//	action.Has(mask, action.CrudFind) // true
package action

import (
	"errors"
	"fmt"
	"math/bits"
	"reflect"
)

// Static errors for the action package.
var (
	ErrNotAssignable   = errors.New("action resource type is not assignable to the list resource type")
	ErrNilAction       = errors.New("action is nil")
	ErrInvalidActionID = errors.New("action id must be a power of two")
	ErrTooManyActions  = errors.New("action list has no free bit left")
	ErrEmptyName       = errors.New("action name is empty")
)

// Action is a named operation on a resource.
type Action interface {
	// Name is unique within an ActionList.
	Name() string
	// Type is the fully qualified name of the type owning the action set.
	Type() string
	// ID is a power of two, unique within Type.
	ID() int64
}

// CrudAction is the built-in create/read/update/delete action set.
type CrudAction int64

const (
	CrudSave    CrudAction = 1
	CrudUpdate  CrudAction = 2
	CrudFind    CrudAction = 4
	CrudRemove  CrudAction = 8
	CrudFindAll CrudAction = 16
)

// CrudActions lists the CRUD actions in id order.
var CrudActions = []CrudAction{CrudSave, CrudUpdate, CrudFind, CrudRemove, CrudFindAll}

var crudNames = map[CrudAction]string{
	CrudSave:    "save",
	CrudUpdate:  "update",
	CrudFind:    "find",
	CrudRemove:  "remove",
	CrudFindAll: "find_all",
}

func (a CrudAction) Name() string { return crudNames[a] }
func (a CrudAction) Type() string { return TypeName(reflect.TypeFor[CrudAction]()) }
func (a CrudAction) ID() int64    { return int64(a) }
func (a CrudAction) String() string {
	if n, ok := crudNames[a]; ok {
		return n
	}
	return fmt.Sprintf("CrudAction(%d)", int64(a))
}

// WebAPIAction is the built-in HTTP verb action set.
type WebAPIAction int64

const (
	APIGet    WebAPIAction = 1
	APIPost   WebAPIAction = 2
	APIPut    WebAPIAction = 4
	APIDelete WebAPIAction = 8
	APIPatch  WebAPIAction = 16
)

// WebAPIActions lists the web API actions in id order.
var WebAPIActions = []WebAPIAction{APIGet, APIPost, APIPut, APIDelete, APIPatch}

var webNames = map[WebAPIAction]string{
	APIGet:    "api_get",
	APIPost:   "api_post",
	APIPut:    "api_put",
	APIDelete: "api_delete",
	APIPatch:  "api_patch",
}

func (a WebAPIAction) Name() string { return webNames[a] }
func (a WebAPIAction) Type() string { return TypeName(reflect.TypeFor[WebAPIAction]()) }
func (a WebAPIAction) ID() int64    { return int64(a) }
func (a WebAPIAction) String() string {
	if n, ok := webNames[a]; ok {
		return n
	}
	return fmt.Sprintf("WebAPIAction(%d)", int64(a))
}

// GenericAction is a user defined action. Unlike the built-in sets it is
// mutable.
type GenericAction struct {
	name       string
	actionType string
	id         int64
}

// NewGenericAction creates an action. id must be a power of two.
func NewGenericAction(name, actionType string, id int64) (*GenericAction, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if !IsPowerOfTwo(id) {
		return nil, fmt.Errorf("%w: %s=%d", ErrInvalidActionID, name, id)
	}
	return &GenericAction{name: name, actionType: actionType, id: id}, nil
}

func (a *GenericAction) Name() string { return a.name }
func (a *GenericAction) Type() string { return a.actionType }
func (a *GenericAction) ID() int64    { return a.id }

func (a *GenericAction) SetName(name string)       { a.name = name }
func (a *GenericAction) SetType(actionType string) { a.actionType = actionType }

// SetID changes the id, rejecting values that are not a power of two.
func (a *GenericAction) SetID(id int64) error {
	if !IsPowerOfTwo(id) {
		return fmt.Errorf("%w: %d", ErrInvalidActionID, id)
	}
	a.id = id
	return nil
}

func (a *GenericAction) String() string { return a.name }

// ResourceAction binds an action to the resource type it applies to.
type ResourceAction struct {
	Action       Action
	ResourceType reflect.Type
}

// Name returns the action name.
func (r *ResourceAction) Name() string { return r.Action.Name() }

// ID returns the action id.
func (r *ResourceAction) ID() int64 { return r.Action.ID() }

// ResourceName returns the resource type name used as permission key.
func (r *ResourceAction) ResourceName() string { return TypeName(r.ResourceType) }

// IsPowerOfTwo reports whether id has exactly one bit set.
func IsPowerOfTwo(id int64) bool {
	return id > 0 && bits.OnesCount64(uint64(id)) == 1
}

// Mask combines action ids into a bitmask.
func Mask[A Action](actions ...A) int64 {
	var m int64
	for _, a := range actions {
		m |= a.ID()
	}
	return m
}

// Has reports whether the bit of a is set in mask.
func Has(mask int64, a Action) bool {
	return a != nil && mask&a.ID() != 0
}

// TypeName returns the package qualified name of t, looking through
// pointers. Unnamed types fall back to their string form.
func TypeName(t reflect.Type) string {
	if t == nil {
		return ""
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t.Name() == "" || t.PkgPath() == "" {
		return t.String()
	}
	return t.PkgPath() + "." + t.Name()
}

// ResourceName returns the permission key of the resource type R.
func ResourceName[R any]() string { return TypeName(reflect.TypeFor[R]()) }

package action

import (
	"fmt"
	"reflect"
	"slices"
	"sync"
)

// ActionList maps action names to resource actions for one resource type.
// Names are unique; Actions returns them ordered by id.
type ActionList struct {
	mu           sync.RWMutex
	resourceType reflect.Type
	actions      map[string]*ResourceAction
}

// NewActionList creates an empty list for resourceType.
func NewActionList(resourceType reflect.Type) *ActionList {
	return &ActionList{resourceType: resourceType, actions: make(map[string]*ResourceAction)}
}

// NewActionListFor creates an empty list for R.
func NewActionListFor[R any]() *ActionList {
	return NewActionList(reflect.TypeFor[R]())
}

// ResourceType returns the list's resource type.
func (l *ActionList) ResourceType() reflect.Type { return l.resourceType }

// ResourceName returns the name permissions are keyed by.
func (l *ActionList) ResourceName() string { return TypeName(l.resourceType) }

// AddAction inserts ra, replacing any action with the same name. The
// action's resource type must be assignable to the list's.
func (l *ActionList) AddAction(ra *ResourceAction) error {
	if ra == nil || ra.Action == nil {
		return ErrNilAction
	}
	if ra.ResourceType == nil || !ra.ResourceType.AssignableTo(l.resourceType) {
		return fmt.Errorf("%w: %v to %v", ErrNotAssignable, ra.ResourceType, l.resourceType)
	}
	l.mu.Lock()
	l.actions[ra.Name()] = ra
	l.mu.Unlock()
	return nil
}

// Add wraps a in a ResourceAction for the list's resource type.
func (l *ActionList) Add(a Action) error {
	return l.AddAction(&ResourceAction{Action: a, ResourceType: l.resourceType})
}

// Action returns the entry named name.
func (l *ActionList) Action(name string) (*ResourceAction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	ra, ok := l.actions[name]
	return ra, ok
}

// Actions returns every entry ordered by ascending id, then name.
func (l *ActionList) Actions() []*ResourceAction {
	l.mu.RLock()
	out := make([]*ResourceAction, 0, len(l.actions))
	for _, ra := range l.actions {
		out = append(out, ra)
	}
	l.mu.RUnlock()
	slices.SortFunc(out, func(a, b *ResourceAction) int {
		if a.ID() != b.ID() {
			if a.ID() < b.ID() {
				return -1
			}
			return 1
		}
		if a.Name() < b.Name() {
			return -1
		}
		if a.Name() > b.Name() {
			return 1
		}
		return 0
	})
	return out
}

// Names returns the action names ordered by id.
func (l *ActionList) Names() []string {
	actions := l.Actions()
	names := make([]string, len(actions))
	for i, ra := range actions {
		names[i] = ra.Name()
	}
	return names
}

// Len returns the number of actions.
func (l *ActionList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.actions)
}

// MaskOf returns the bitmask of the named actions. Unknown names are
// ignored.
func (l *ActionList) MaskOf(names ...string) int64 {
	var m int64
	for _, n := range names {
		if ra, ok := l.Action(n); ok {
			m |= ra.ID()
		}
	}
	return m
}

// nextID returns the lowest power of two above every id in the list.
func (l *ActionList) nextID() (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	var highest int64
	for _, ra := range l.actions {
		highest = max(highest, ra.ID())
	}
	if highest == 0 {
		return 1, nil
	}
	if highest >= 1<<62 {
		return 0, ErrTooManyActions
	}
	return highest << 1, nil
}

package interceptor

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"
	"sync"
)

// Policy decides which interceptor runs when several are eligible for the
// same annotation and phase.
type Policy int

const (
	// FirstRegistered picks the earliest registration.
	FirstRegistered Policy = iota
	// HighestPriority picks the highest priority, then the earliest registration.
	HighestPriority
	// Strict fails with ErrAmbiguousInterceptor when more than one is eligible.
	Strict
)

// ParsePolicy maps "first", "priority" and "strict" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "first", "first-registered":
		return FirstRegistered, nil
	case "priority", "highest-priority":
		return HighestPriority, nil
	case "strict":
		return Strict, nil
	}
	return FirstRegistered, fmt.Errorf("%w: %s", ErrUnknownPolicy, s)
}

func (p Policy) String() string {
	switch p {
	case HighestPriority:
		return "priority"
	case Strict:
		return "strict"
	default:
		return "first"
	}
}

type invokeFunc func(ctx context.Context, a Annotation, fields []Field, inv *Invocation) error

// Entry is one interceptor filed in a Table.
type Entry struct {
	ID         string
	Annotation reflect.Type
	Phase      Phase
	FieldAware bool
	Priority   int
	// Impl is the registered interceptor value.
	Impl any

	implType reflect.Type
	seq      uint64
	invoke   invokeFunc
}

// ImplType is the concrete type of the interceptor, one proxy level unwrapped.
func (e *Entry) ImplType() reflect.Type { return e.implType }

type tableKey struct {
	annotation reflect.Type
	phase      Phase
}

// Table maps (annotation type, phase) to the interceptors able to handle it.
// It is filled when interceptors are registered, never by scanning at call
// time.
type Table struct {
	mu      sync.RWMutex
	policy  Policy
	seq     uint64
	entries map[tableKey][]*Entry
	byID    map[string]*Entry
}

// NewTable creates an empty table using policy.
func NewTable(policy Policy) *Table {
	return &Table{
		policy:  policy,
		entries: make(map[tableKey][]*Entry),
		byID:    make(map[string]*Entry),
	}
}

// Policy returns the resolution policy.
func (t *Table) Policy() Policy {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.policy
}

// SetPolicy changes the resolution policy.
func (t *Table) SetPolicy(p Policy) {
	t.mu.Lock()
	t.policy = p
	t.mu.Unlock()
}

func (t *Table) add(e *Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if old, ok := t.byID[e.ID]; ok {
		t.removeLocked(old)
	}
	t.seq++
	e.seq = t.seq
	key := tableKey{e.Annotation, e.Phase}
	t.entries[key] = append(t.entries[key], e)
	t.byID[e.ID] = e
}

// SetPriority changes the priority of the entry registered under id. The
// entry is replaced by a copy so snapshots taken earlier are unaffected.
func (t *Table) SetPriority(id string, priority int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[id]
	if !ok {
		return false
	}
	cp := *e
	cp.Priority = priority
	key := tableKey{e.Annotation, e.Phase}
	list := slices.Clone(t.entries[key])
	if i := slices.Index(list, e); i >= 0 {
		list[i] = &cp
	}
	t.entries[key] = list
	t.byID[id] = &cp
	return true
}

// Remove deletes the entry registered under id.
func (t *Table) Remove(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.byID[id]
	if !ok {
		return false
	}
	t.removeLocked(e)
	return true
}

func (t *Table) removeLocked(e *Entry) {
	key := tableKey{e.Annotation, e.Phase}
	list := t.entries[key]
	next := make([]*Entry, 0, len(list))
	for _, x := range list {
		if x != e {
			next = append(next, x)
		}
	}
	if len(next) == 0 {
		delete(t.entries, key)
	} else {
		t.entries[key] = next
	}
	delete(t.byID, e.ID)
}

// Entries returns a snapshot of the interceptors filed for an annotation type
// and phase, in registration order.
func (t *Table) Entries(annotation reflect.Type, phase Phase) []*Entry {
	t.mu.RLock()
	defer t.mu.RUnlock()
	list := t.entries[tableKey{annotation, phase}]
	out := make([]*Entry, len(list))
	copy(out, list)
	return out
}

// Len returns the number of filed interceptors.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byID)
}

// Resolve selects the interceptor for a annotation and phase. It returns nil
// without error when nothing is eligible.
//
// An annotation declaring its executor resolves to that exact type or to
// nothing. Otherwise field-aware interceptors win over plain ones and the
// table policy breaks ties.
func (t *Table) Resolve(a Annotation, phase Phase) (*Entry, error) {
	candidates := t.Entries(AnnotationType(a), phase)
	if len(candidates) == 0 {
		return nil, nil
	}

	if decl, ok := a.(ExecutorDeclarer); ok && decl.Executor() != nil {
		want := decl.Executor()
		for _, e := range candidates {
			if e.implType == want {
				return e, nil
			}
		}
		return nil, nil
	}

	var fieldAware, plain []*Entry
	for _, e := range candidates {
		if e.FieldAware {
			fieldAware = append(fieldAware, e)
		} else {
			plain = append(plain, e)
		}
	}
	if len(fieldAware) > 0 {
		return t.pick(a, phase, fieldAware)
	}
	return t.pick(a, phase, plain)
}

func (t *Table) pick(a Annotation, phase Phase, list []*Entry) (*Entry, error) {
	switch t.Policy() {
	case Strict:
		if len(list) > 1 {
			return nil, fmt.Errorf("%w: %d %s interceptors for %s", ErrAmbiguousInterceptor, len(list), phase, a.AnnotationName())
		}
		return list[0], nil
	case HighestPriority:
		best := list[0]
		for _, e := range list[1:] {
			if e.Priority > best.Priority {
				best = e
			}
		}
		return best, nil
	default:
		return list[0], nil
	}
}

func newEntry(id string, annotation reflect.Type, phase Phase, fieldAware bool, priority int, impl any, invoke invokeFunc) *Entry {
	return &Entry{
		ID:         id,
		Annotation: annotation,
		Phase:      phase,
		FieldAware: fieldAware,
		Priority:   priority,
		Impl:       impl,
		implType:   reflect.TypeOf(Unwrap(impl)),
		invoke:     invoke,
	}
}

// RegisterBefore files a plain before interceptor for annotation type A.
func RegisterBefore[A Annotation](t *Table, id string, priority int, impl Before[A]) *Entry {
	e := newEntry(id, reflect.TypeFor[A](), PhaseBefore, false, priority, impl,
		func(ctx context.Context, a Annotation, _ []Field, inv *Invocation) error {
			return impl.Before(ctx, a.(A), inv)
		})
	t.add(e)
	return e
}

// RegisterAfter files a plain after interceptor for annotation type A.
func RegisterAfter[A Annotation](t *Table, id string, priority int, impl After[A]) *Entry {
	e := newEntry(id, reflect.TypeFor[A](), PhaseAfter, false, priority, impl,
		func(ctx context.Context, a Annotation, _ []Field, inv *Invocation) error {
			return impl.After(ctx, a.(A), inv)
		})
	t.add(e)
	return e
}

// RegisterBeforeFields files a field-aware before interceptor for A.
func RegisterBeforeFields[A Annotation](t *Table, id string, priority int, impl BeforeFields[A]) *Entry {
	e := newEntry(id, reflect.TypeFor[A](), PhaseBefore, true, priority, impl,
		func(ctx context.Context, a Annotation, fields []Field, inv *Invocation) error {
			return impl.BeforeFields(ctx, a.(A), fields, inv)
		})
	t.add(e)
	return e
}

// RegisterAfterFields files a field-aware after interceptor for A.
func RegisterAfterFields[A Annotation](t *Table, id string, priority int, impl AfterFields[A]) *Entry {
	e := newEntry(id, reflect.TypeFor[A](), PhaseAfter, true, priority, impl,
		func(ctx context.Context, a Annotation, fields []Field, inv *Invocation) error {
			return impl.AfterFields(ctx, a.(A), fields, inv)
		})
	t.add(e)
	return e
}

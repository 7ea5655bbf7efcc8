package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Static errors for lifecycle package
var (
	ErrEventCannotBeNil    = errors.New("event cannot be nil")
	ErrObserverCannotBeNil = errors.New("observer cannot be nil")
	ErrObserverNotFound    = errors.New("observer not found")
)

// Dispatcher delivers lifecycle events synchronously to observers, highest
// priority first. Observer errors are collected and returned joined; they do
// not stop delivery to the remaining observers.
type Dispatcher struct {
	mu        sync.RWMutex
	observers []EventObserver
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Dispatch sends event to every observer subscribed to its type.
func (d *Dispatcher) Dispatch(ctx context.Context, event *Event) error {
	if event == nil {
		return ErrEventCannotBeNil
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	d.mu.RLock()
	observers := d.observers
	d.mu.RUnlock()

	var errs []error
	for _, o := range observers {
		if !subscribed(o, event.Type) {
			continue
		}
		if err := safeNotify(ctx, o, event); err != nil {
			errs = append(errs, fmt.Errorf("observer %s: %w", o.ID(), err))
		}
	}
	return errors.Join(errs...)
}

func safeNotify(ctx context.Context, o EventObserver, event *Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return o.OnEvent(ctx, event)
}

func subscribed(o EventObserver, t EventType) bool {
	types := o.EventTypes()
	return len(types) == 0 || slices.Contains(types, t)
}

// RegisterObserver adds observer, replacing one with the same ID.
func (d *Dispatcher) RegisterObserver(observer EventObserver) error {
	if observer == nil {
		return ErrObserverCannotBeNil
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	next := make([]EventObserver, 0, len(d.observers)+1)
	for _, o := range d.observers {
		if o.ID() != observer.ID() {
			next = append(next, o)
		}
	}
	next = append(next, observer)
	slices.SortStableFunc(next, func(a, b EventObserver) int { return b.Priority() - a.Priority() })
	d.observers = next
	return nil
}

// UnregisterObserver removes the observer with observerID.
func (d *Dispatcher) UnregisterObserver(observerID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, o := range d.observers {
		if o.ID() == observerID {
			d.observers = slices.Delete(slices.Clone(d.observers), i, i+1)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrObserverNotFound, observerID)
}

// Observers returns the observers in delivery order.
func (d *Dispatcher) Observers() []EventObserver {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Clone(d.observers)
}

// BasicObserver is an EventObserver backed by a callback.
type BasicObserver struct {
	id         string
	eventTypes []EventType
	priority   int
	callback   func(context.Context, *Event) error
}

// NewBasicObserver creates a new basic observer.
func NewBasicObserver(id string, eventTypes []EventType, priority int, callback func(context.Context, *Event) error) *BasicObserver {
	return &BasicObserver{
		id:         id,
		eventTypes: eventTypes,
		priority:   priority,
		callback:   callback,
	}
}

func (o *BasicObserver) OnEvent(ctx context.Context, event *Event) error {
	if o.callback != nil {
		return o.callback(ctx, event)
	}
	return nil
}

func (o *BasicObserver) ID() string { return o.id }

func (o *BasicObserver) EventTypes() []EventType { return o.eventTypes }

func (o *BasicObserver) Priority() int { return o.priority }

package registry

import (
	"context"
	"fmt"
	"reflect"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/google/uuid"
)

// Event types emitted by the registry.
const (
	EventTypeComponentRegistered   = "com.modcore.component.registered"
	EventTypeComponentUnregistered = "com.modcore.component.unregistered"
	EventTypePropertyChanged       = "com.modcore.component.property.changed"
	EventTypeLookupMiss            = "com.modcore.component.lookup.miss"
)

// EventSource is the CloudEvents source attribute of registry events.
const EventSource = "modcore/registry"

// Observer receives registry events.
type Observer interface {
	// OnEvent is called synchronously after the registry state changed.
	// Returned errors are logged and otherwise ignored.
	OnEvent(ctx context.Context, event cloudevents.Event) error

	// ObserverID identifies the observer for removal and logging.
	ObserverID() string
}

// FunctionalObserver adapts a function to Observer.
type FunctionalObserver struct {
	id      string
	handler func(ctx context.Context, event cloudevents.Event) error
}

// NewFunctionalObserver creates an observer calling handler.
func NewFunctionalObserver(id string, handler func(ctx context.Context, event cloudevents.Event) error) Observer {
	return &FunctionalObserver{id: id, handler: handler}
}

func (f *FunctionalObserver) OnEvent(ctx context.Context, event cloudevents.Event) error {
	return f.handler(ctx, event)
}

func (f *FunctionalObserver) ObserverID() string { return f.id }

// ComponentEventData is the JSON payload of registry events.
type ComponentEventData struct {
	ServiceType string `json:"serviceType"`
	Handle      string `json:"handle,omitempty"`
	Component   string `json:"component,omitempty"`
	Priority    int    `json:"priority,omitempty"`
	Property    string `json:"property,omitempty"`
	Value       string `json:"value,omitempty"`
	Removed     bool   `json:"removed,omitempty"`
}

func newEvent(eventType string, data ComponentEventData) cloudevents.Event {
	event := cloudevents.NewEvent()
	event.SetID(newID())
	event.SetSource(EventSource)
	event.SetType(eventType)
	event.SetTime(time.Now())
	event.SetSpecVersion(cloudevents.VersionV1)
	event.SetSubject(data.ServiceType)
	_ = event.SetData(cloudevents.ApplicationJSON, data)
	return event
}

// newID returns a UUIDv7 string, falling back to v4.
func newID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return id.String()
}

func typeName(t reflect.Type) string {
	if t == nil {
		return "<nil>"
	}
	return t.String()
}

func componentName(v any) string {
	return fmt.Sprintf("%T", v)
}

// AddObserver registers o. Observers with an ID already present are replaced.
func (r *Registry) AddObserver(o Observer) {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	next := make([]Observer, 0, len(r.observers)+1)
	for _, x := range r.observers {
		if x.ObserverID() != o.ObserverID() {
			next = append(next, x)
		}
	}
	r.observers = append(next, o)
}

// RemoveObserver removes the observer with id.
func (r *Registry) RemoveObserver(id string) bool {
	r.obsMu.Lock()
	defer r.obsMu.Unlock()
	for i, x := range r.observers {
		if x.ObserverID() == id {
			r.observers = append(r.observers[:i:i], r.observers[i+1:]...)
			return true
		}
	}
	return false
}

func (r *Registry) notify(eventType string, data ComponentEventData) {
	r.obsMu.RLock()
	observers := r.observers
	r.obsMu.RUnlock()
	if len(observers) == 0 {
		return
	}
	event := newEvent(eventType, data)
	for _, o := range observers {
		if err := o.OnEvent(context.Background(), event); err != nil {
			r.logger.Warn("registry observer failed", "observer", o.ObserverID(), "event", eventType, "error", err)
		}
	}
}

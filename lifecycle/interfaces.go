// Package lifecycle defines component activation hooks and the lifecycle
// event dispatcher used by the initializer.
package lifecycle

import (
	"context"
	"time"
)

// Activator is implemented by components needing work once they are
// registered.
type Activator interface {
	OnActivate(ctx context.Context) error
}

// Deactivator is implemented by components needing cleanup when they are
// unregistered.
type Deactivator interface {
	OnDeactivate(ctx context.Context) error
}

// Phase selects the hook run by Invoke.
type Phase string

const (
	PhaseActivate   Phase = "activate"
	PhaseDeactivate Phase = "deactivate"
)

// EventObserver observes lifecycle events.
type EventObserver interface {
	// OnEvent is called for every dispatched event of a subscribed type.
	OnEvent(ctx context.Context, event *Event) error

	// ID returns the unique identifier for this observer.
	ID() string

	// EventTypes returns the types the observer wants. Empty means all.
	EventTypes() []EventType

	// Priority orders observers, higher first.
	Priority() int
}

// Event is a lifecycle event.
type Event struct {
	ID        string         `json:"id"`
	Type      EventType      `json:"type"`
	Source    string         `json:"source"`
	Timestamp time.Time      `json:"timestamp"`
	Status    EventStatus    `json:"status"`
	Message   string         `json:"message,omitempty"`
	Error     string         `json:"error,omitempty"`
	Duration  *time.Duration `json:"duration,omitempty"`
	Data      map[string]any `json:"data,omitempty"`
}

// EventType defines the type of lifecycle event.
type EventType string

const (
	EventTypeInitializerStarting  EventType = "initializer.starting"
	EventTypeInitializerStarted   EventType = "initializer.started"
	EventTypeInitializerStopping  EventType = "initializer.stopping"
	EventTypeInitializerStopped   EventType = "initializer.stopped"
	EventTypeComponentRegistered  EventType = "component.registered"
	EventTypeComponentActivated   EventType = "component.activated"
	EventTypeComponentDeactivated EventType = "component.deactivated"
	EventTypeComponentFailed      EventType = "component.failed"
	EventTypeActionsRegistered    EventType = "actions.registered"
)

// EventStatus represents the status of an event.
type EventStatus string

const (
	EventStatusStarted   EventStatus = "started"
	EventStatusCompleted EventStatus = "completed"
	EventStatusFailed    EventStatus = "failed"
	EventStatusSkipped   EventStatus = "skipped"
)

// Package events publishes task lifecycle notifications.
package events

import (
	"context"
	"sync"
	"time"
)

type Type string

const (
	TaskCreated   Type = "task.created"
	TaskUpdated   Type = "task.updated"
	TaskCompleted Type = "task.completed"
	TaskReopened  Type = "task.reopened"
	TaskDeleted   Type = "task.deleted"
	UserDeleted   Type = "user.deleted"
)

// Event is the payload sent for every change.
type Event struct {
	Type   Type      `json:"type"`
	UserID uint      `json:"user_id"`
	TaskID uint      `json:"task_id,omitempty"`
	At     time.Time `json:"at"`
}

// Publisher delivers events. Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Noop drops every event.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }

// Recorder keeps events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Types lists recorded event types in order.
func (r *Recorder) Types() []Type {
	events := r.Events()
	out := make([]Type, 0, len(events))
	for _, e := range events {
		out = append(out, e.Type)
	}
	return out
}

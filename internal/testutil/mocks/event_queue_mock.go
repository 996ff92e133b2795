package mocks

import (
	"context"
	"sync"

	"github.com/vytor/promptfix/internal/events"
)

// RecordingEventQueue is a jobs.EventQueue that keeps every event it is given.
type RecordingEventQueue struct {
	mu     sync.Mutex
	events []events.Event
}

func (q *RecordingEventQueue) Enqueue(_ context.Context, e events.Event) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, e)
}

// Types returns the types of the recorded events in order.
func (q *RecordingEventQueue) Types() []events.Type {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]events.Type, len(q.events))
	for i, e := range q.events {
		out[i] = e.Type
	}
	return out
}

func (q *RecordingEventQueue) Events() []events.Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]events.Event(nil), q.events...)
}

// Package events describes the game events emitted by the orchestrator and
// the publishers that ship them.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Type string

const (
	SessionStarted Type = "session_started"
	RoundCompleted Type = "round_completed"
	GameEnded      Type = "game_ended"
	SessionsSwept  Type = "sessions_swept"
)

type Event struct {
	ID         string         `json:"id"`
	Type       Type           `json:"type"`
	Username   string         `json:"username,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
	Data       map[string]any `json:"data,omitempty"`
}

// New stamps an event with a fresh id.
func New(t Type, username string, at time.Time, data map[string]any) Event {
	return Event{
		ID:         uuid.NewString(),
		Type:       t,
		Username:   username,
		OccurredAt: at,
		Data:       data,
	}
}

// Publisher ships events to wherever they are consumed.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

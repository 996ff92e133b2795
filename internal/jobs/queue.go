package jobs

import (
	"context"

	"github.com/vytor/promptfix/internal/events"
)

// EventQueue provides an abstraction for handing game events to background
// publishing. Enqueue never blocks the caller.
type EventQueue interface {
	Enqueue(ctx context.Context, e events.Event)
}

package events

import (
	"context"

	"github.com/vytor/promptfix/internal/logger"
)

// LogPublisher writes events to the context logger. It is used when no
// broker is configured.
type LogPublisher struct{}

func NewLogPublisher() *LogPublisher { return &LogPublisher{} }

func (p *LogPublisher) Publish(ctx context.Context, e Event) error {
	fields := map[string]any{
		"event":    string(e.Type),
		"event_id": e.ID,
	}
	if e.Username != "" {
		fields["username"] = e.Username
	}
	for k, v := range e.Data {
		fields[k] = v
	}
	logger.FromContext(ctx).WithPrefix("game_events").WithFields(fields).Info("game event")
	return nil
}

func (p *LogPublisher) Close() error { return nil }

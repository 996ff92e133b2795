package jobs

import (
	"context"
	"time"

	"github.com/vytor/promptfix/internal/events"
)

const publishTimeout = 5 * time.Second

// PublishEventJob ships one event through a Publisher.
type PublishEventJob struct {
	Publisher events.Publisher
	Event     events.Event
}

func (j *PublishEventJob) Name() string { return "publish_" + string(j.Event.Type) }

func (j *PublishEventJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	return j.Publisher.Publish(ctx, j.Event)
}

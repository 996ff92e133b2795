package jobs

import (
	"context"
	"errors"

	"github.com/vytor/promptfix/internal/events"
	"github.com/vytor/promptfix/internal/logger"
	"github.com/vytor/promptfix/internal/metrics"
	"github.com/vytor/promptfix/internal/worker"
)

// WorkerQueue implements EventQueue using a worker pool. Events that do not
// fit in the pool's queue are dropped.
type WorkerQueue struct {
	pool      *worker.Pool
	publisher events.Publisher
}

// NewWorkerQueue creates a new WorkerQueue implementation
func NewWorkerQueue(pool *worker.Pool, publisher events.Publisher) *WorkerQueue {
	return &WorkerQueue{pool: pool, publisher: publisher}
}

func (q *WorkerQueue) Enqueue(ctx context.Context, e events.Event) {
	err := q.pool.TrySubmit(&PublishEventJob{Publisher: q.publisher, Event: e})
	if err == nil {
		return
	}
	reason := "queue_full"
	if errors.Is(err, worker.ErrPoolStopped) {
		reason = "stopped"
	}
	metrics.EventDropped(string(e.Type), reason)
	logger.FromContext(ctx).WithPrefix("event_queue").Warn("dropping %s event for %s (%d queued): %v", e.Type, e.Username, q.pool.QueueSize(), err)
}

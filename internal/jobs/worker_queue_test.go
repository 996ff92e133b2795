package jobs_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/vytor/promptfix/internal/events"
	"github.com/vytor/promptfix/internal/jobs"
	"github.com/vytor/promptfix/internal/testutil/mocks"
	"github.com/vytor/promptfix/internal/worker"
)

func TestWorkerQueue_PublishesEvents(t *testing.T) {
	pub := new(mocks.MockPublisher)
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		return e.Type == events.SessionStarted && e.Username == "alice"
	})).Return(nil).Once()
	pub.On("Publish", mock.Anything, mock.MatchedBy(func(e events.Event) bool {
		return e.Type == events.GameEnded
	})).Return(errors.New("broker down")).Once()

	pool := worker.NewPool(1, 8)
	pool.Start(context.Background())
	q := jobs.NewWorkerQueue(pool, pub)

	q.Enqueue(context.Background(), events.New(events.SessionStarted, "alice", time.Now(), nil))
	q.Enqueue(context.Background(), events.New(events.GameEnded, "alice", time.Now(), nil))
	pool.Stop()

	pub.AssertExpectations(t)
}

func TestWorkerQueue_DropsAfterStop(t *testing.T) {
	pub := new(mocks.MockPublisher)
	pool := worker.NewPool(1, 1)
	pool.Start(context.Background())
	pool.Stop()

	q := jobs.NewWorkerQueue(pool, pub)
	q.Enqueue(context.Background(), events.New(events.RoundCompleted, "alice", time.Now(), nil))

	pub.AssertNotCalled(t, "Publish", mock.Anything, mock.Anything)
}

func TestPublishEventJob_Name(t *testing.T) {
	j := &jobs.PublishEventJob{Event: events.New(events.SessionsSwept, "", time.Now(), nil)}
	assert.Equal(t, "publish_sessions_swept", j.Name())
}

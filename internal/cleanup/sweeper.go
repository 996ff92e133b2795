package cleanup

import (
	"context"
	"time"

	"github.com/vytor/promptfix/internal/logger"
)

// SessionSweeper removes sessions older than a maximum age.
type SessionSweeper interface {
	SweepSessions(ctx context.Context, maxAge time.Duration) int
}

// Sweeper periodically drops abandoned sessions.
type Sweeper struct {
	target   SessionSweeper
	interval time.Duration
	maxAge   time.Duration
	log      *logger.Logger
}

func NewSweeper(target SessionSweeper, interval, maxAge time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if maxAge <= 0 {
		maxAge = 2 * time.Hour
	}
	return &Sweeper{
		target:   target,
		interval: interval,
		maxAge:   maxAge,
		log:      logger.Default().WithPrefix("session_sweeper"),
	}
}

// Start runs the sweep loop in a goroutine until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	go s.Run(ctx)
}

// Run blocks, sweeping every interval until ctx is done.
func (s *Sweeper) Run(ctx context.Context) {
	s.log.Info("session sweeper started: interval=%v max_age=%v", s.interval, s.maxAge)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("session sweeper stopped")
			return
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce runs a single sweep and returns how many sessions were removed.
func (s *Sweeper) SweepOnce(ctx context.Context) int {
	n := s.target.SweepSessions(logger.NewContext(ctx, s.log), s.maxAge)
	if n > 0 {
		s.log.Info("cleaned up %d inactive sessions", n)
	} else {
		s.log.Debug("no inactive sessions found")
	}
	return n
}

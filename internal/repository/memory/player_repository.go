// Package memory is an in-process player store. Ties in TopN keep insertion
// order.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/vytor/promptfix/internal/logger"
	"github.com/vytor/promptfix/internal/models"
	"github.com/vytor/promptfix/internal/repository"
)

type playerRepository struct {
	mu      sync.RWMutex
	order   []string
	records map[string]models.PlayerRecord
}

// NewPlayerRepository creates a new, empty in-memory PlayerRepository
func NewPlayerRepository() repository.PlayerRepository {
	return &playerRepository{records: make(map[string]models.PlayerRecord)}
}

func clone(p models.PlayerRecord) models.PlayerRecord {
	p.Rounds = append([]models.Round{}, p.Rounds...)
	return p
}

func (r *playerRepository) Upsert(ctx context.Context, p models.PlayerRecord) error {
	key := p.Key()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.records[key]; !ok {
		r.order = append(r.order, key)
	}
	r.records[key] = clone(p)
	logger.FromContext(ctx).WithPrefix("player_repo").Debug("player upserted: %s", key)
	return nil
}

func (r *playerRepository) Exists(_ context.Context, username string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.records[models.UsernameKey(username)]
	return ok, nil
}

func (r *playerRepository) Get(_ context.Context, username string) (*models.PlayerRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.records[models.UsernameKey(username)]
	if !ok {
		return nil, nil
	}
	out := clone(p)
	return &out, nil
}

func (r *playerRepository) Rank(_ context.Context, username string) (int, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.records[models.UsernameKey(username)]
	if !ok {
		return 0, false, nil
	}
	higher := 0
	for _, q := range r.records {
		if q.BestScore > p.BestScore {
			higher++
		}
	}
	return higher + 1, true, nil
}

func (r *playerRepository) TopN(_ context.Context, n int) ([]models.PlayerRecord, error) {
	if n <= 0 {
		return []models.PlayerRecord{}, nil
	}
	r.mu.RLock()
	all := make([]models.PlayerRecord, 0, len(r.order))
	for _, key := range r.order {
		p := r.records[key]
		p.Rounds = []models.Round{}
		all = append(all, p)
	}
	r.mu.RUnlock()

	slices.SortStableFunc(all, func(a, b models.PlayerRecord) int {
		switch {
		case a.BestScore > b.BestScore:
			return -1
		case a.BestScore < b.BestScore:
			return 1
		}
		return 0
	})
	if len(all) > n {
		all = all[:n]
	}
	return all, nil
}

func (r *playerRepository) Count(context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.records), nil
}

func (r *playerRepository) AverageScore(context.Context) (float64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if len(r.records) == 0 {
		return 0, nil
	}
	sum := 0.0
	for _, p := range r.records {
		sum += p.BestScore
	}
	return sum / float64(len(r.records)), nil
}

func (r *playerRepository) StatusCounts(context.Context) (models.StatusCounts, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := models.StatusCounts{Total: len(r.records)}
	for _, p := range r.records {
		if p.IsCompleted {
			c.Completed++
		}
	}
	c.Active = c.Total - c.Completed
	return c, nil
}

func (r *playerRepository) Ping(context.Context) error { return nil }

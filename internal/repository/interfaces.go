package repository

import (
	"context"

	"github.com/vytor/promptfix/internal/models"
)

// PlayerRepository is the durable leaderboard store, keyed by the
// case-insensitive username.
//
// Get returns nil, nil when the player does not exist. TopN returns records
// without their rounds, ordered by best score descending.
type PlayerRepository interface {
	Upsert(ctx context.Context, record models.PlayerRecord) error
	Exists(ctx context.Context, username string) (bool, error)
	Get(ctx context.Context, username string) (*models.PlayerRecord, error)
	Rank(ctx context.Context, username string) (rank int, found bool, err error)
	TopN(ctx context.Context, n int) ([]models.PlayerRecord, error)
	Count(ctx context.Context) (int, error)
	AverageScore(ctx context.Context) (float64, error)
	StatusCounts(ctx context.Context) (models.StatusCounts, error)
	Ping(ctx context.Context) error
}

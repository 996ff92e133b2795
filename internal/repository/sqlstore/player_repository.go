// Package sqlstore implements the player store on database/sql. The same code
// serves SQLite and PostgreSQL; only placeholders differ.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"

	"github.com/Masterminds/squirrel"

	"github.com/vytor/promptfix/internal/db"
	"github.com/vytor/promptfix/internal/logger"
	"github.com/vytor/promptfix/internal/models"
	"github.com/vytor/promptfix/internal/repository"
)

var playerColumns = []string{
	"username", "rounds_remaining", "best_score", "rounds_played", "total_rounds",
	"is_completed", "created_at", "last_played",
}

var roundColumns = []string{
	"round_number", "scenario_id", "category", "original_prompt", "submitted_prompt",
	"generated_response", "score", "quality_score", "framework_score", "creativity_score",
	"feedback", "completed_at",
}

const upsertPlayerSuffix = `ON CONFLICT (username_key) DO UPDATE SET
	username = excluded.username,
	rounds_remaining = excluded.rounds_remaining,
	best_score = excluded.best_score,
	rounds_played = excluded.rounds_played,
	total_rounds = excluded.total_rounds,
	is_completed = excluded.is_completed,
	created_at = excluded.created_at,
	last_played = excluded.last_played`

type playerRepository struct {
	db *db.DB
	sb squirrel.StatementBuilderType
}

// NewPlayerRepository creates a new PlayerRepository implementation
func NewPlayerRepository(d *db.DB) repository.PlayerRepository {
	return &playerRepository{db: d, sb: d.Builder()}
}

// Upsert replaces the player row and all of its rounds in one transaction,
// so replaying the same record leaves the same state.
func (r *playerRepository) Upsert(ctx context.Context, p models.PlayerRecord) error {
	log := logger.FromContext(ctx).WithPrefix("player_repo").WithField("username", p.Username)
	log.Debug("upserting player: rounds=%d best=%.1f", len(p.Rounds), p.BestScore)

	key := p.Key()
	err := r.db.Tx(ctx, func(tx *sql.Tx) error {
		query, args, err := r.sb.Insert("players").
			Columns(append([]string{"username_key"}, playerColumns...)...).
			Values(key, p.Username, p.RoundsRemaining, p.BestScore, p.RoundsPlayed, p.TotalRounds,
				p.IsCompleted, p.CreatedAt, p.LastPlayed).
			Suffix(upsertPlayerSuffix).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}

		query, args, err = r.sb.Delete("player_rounds").Where(squirrel.Eq{"username_key": key}).ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return err
		}

		if len(p.Rounds) == 0 {
			return nil
		}
		insert := r.sb.Insert("player_rounds").Columns(append([]string{"username_key"}, roundColumns...)...)
		for _, rd := range p.Rounds {
			insert = insert.Values(key, rd.RoundNumber, rd.ScenarioID, rd.Category, rd.OriginalPrompt,
				rd.SubmittedPrompt, rd.GeneratedResponse, rd.Score, rd.Breakdown.Quality,
				rd.Breakdown.FrameworkUsage, rd.Breakdown.Creativity, rd.Feedback, rd.CompletedAt)
		}
		query, args, err = insert.ToSql()
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, query, args...)
		return err
	})
	if err != nil {
		log.Error("failed to upsert player: %v", err)
		return err
	}
	log.Debug("player upserted")
	return nil
}

func (r *playerRepository) Exists(ctx context.Context, username string) (bool, error) {
	log := logger.FromContext(ctx).WithPrefix("player_repo")

	query, args, err := r.sb.Select("COUNT(1)").From("players").
		Where(squirrel.Eq{"username_key": models.UsernameKey(username)}).ToSql()
	if err != nil {
		return false, err
	}
	var n int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		log.Error("failed to check player existence: %v", err)
		return false, err
	}
	return n > 0, nil
}

func (r *playerRepository) Get(ctx context.Context, username string) (*models.PlayerRecord, error) {
	log := logger.FromContext(ctx).WithPrefix("player_repo")
	key := models.UsernameKey(username)
	log.Debug("getting player: %s", key)

	query, args, err := r.sb.Select(playerColumns...).From("players").
		Where(squirrel.Eq{"username_key": key}).ToSql()
	if err != nil {
		return nil, err
	}
	p, err := scanPlayer(r.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		log.Debug("player not found: %s", key)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get player: %v", err)
		return nil, err
	}

	rounds, err := r.rounds(ctx, key)
	if err != nil {
		log.Error("failed to load rounds: %v", err)
		return nil, err
	}
	p.Rounds = rounds
	return &p, nil
}

func (r *playerRepository) rounds(ctx context.Context, key string) ([]models.Round, error) {
	query, args, err := r.sb.Select(roundColumns...).From("player_rounds").
		Where(squirrel.Eq{"username_key": key}).
		OrderBy("round_number ASC").ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	rounds := []models.Round{}
	for rows.Next() {
		var rd models.Round
		if err := rows.Scan(&rd.RoundNumber, &rd.ScenarioID, &rd.Category, &rd.OriginalPrompt,
			&rd.SubmittedPrompt, &rd.GeneratedResponse, &rd.Score, &rd.Breakdown.Quality,
			&rd.Breakdown.FrameworkUsage, &rd.Breakdown.Creativity, &rd.Feedback, &rd.CompletedAt); err != nil {
			return nil, err
		}
		rounds = append(rounds, rd)
	}
	return rounds, rows.Err()
}

func (r *playerRepository) Rank(ctx context.Context, username string) (int, bool, error) {
	log := logger.FromContext(ctx).WithPrefix("player_repo")
	key := models.UsernameKey(username)

	query, args, err := r.sb.Select("best_score").From("players").
		Where(squirrel.Eq{"username_key": key}).ToSql()
	if err != nil {
		return 0, false, err
	}
	var best float64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&best)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		log.Error("failed to read best score: %v", err)
		return 0, false, err
	}

	query, args, err = r.sb.Select("COUNT(1)").From("players").
		Where(squirrel.Gt{"best_score": best}).ToSql()
	if err != nil {
		return 0, false, err
	}
	var higher int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&higher); err != nil {
		log.Error("failed to count higher scores: %v", err)
		return 0, false, err
	}
	return higher + 1, true, nil
}

func (r *playerRepository) TopN(ctx context.Context, n int) ([]models.PlayerRecord, error) {
	log := logger.FromContext(ctx).WithPrefix("player_repo")
	if n <= 0 {
		return []models.PlayerRecord{}, nil
	}

	query, args, err := r.sb.Select(playerColumns...).From("players").
		OrderBy("best_score DESC", "created_at ASC", "username_key ASC").
		Limit(uint64(n)).ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		log.Error("failed to list top players: %v", err)
		return nil, err
	}
	defer rows.Close()

	out := []models.PlayerRecord{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			log.Error("failed to scan player row: %v", err)
			return nil, err
		}
		out = append(out, p)
	}
	log.Debug("found %d top players", len(out))
	return out, rows.Err()
}

func (r *playerRepository) Count(ctx context.Context) (int, error) {
	query, args, err := r.sb.Select("COUNT(1)").From("players").ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&n)
	return n, err
}

func (r *playerRepository) AverageScore(ctx context.Context) (float64, error) {
	query, args, err := r.sb.Select("COALESCE(AVG(best_score), 0)").From("players").ToSql()
	if err != nil {
		return 0, err
	}
	var avg float64
	err = r.db.QueryRowContext(ctx, query, args...).Scan(&avg)
	return avg, err
}

func (r *playerRepository) StatusCounts(ctx context.Context) (models.StatusCounts, error) {
	var c models.StatusCounts
	query, args, err := r.sb.Select("COUNT(1)", "COALESCE(SUM(CASE WHEN is_completed THEN 1 ELSE 0 END), 0)").
		From("players").ToSql()
	if err != nil {
		return c, err
	}
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&c.Total, &c.Completed); err != nil {
		logger.FromContext(ctx).WithPrefix("player_repo").Error("failed to count statuses: %v", err)
		return c, err
	}
	c.Active = c.Total - c.Completed
	return c, nil
}

func (r *playerRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPlayer(s scanner) (models.PlayerRecord, error) {
	var p models.PlayerRecord
	err := s.Scan(&p.Username, &p.RoundsRemaining, &p.BestScore, &p.RoundsPlayed, &p.TotalRounds,
		&p.IsCompleted, &p.CreatedAt, &p.LastPlayed)
	if err != nil {
		return p, err
	}
	p.Rounds = []models.Round{}
	return p, nil
}

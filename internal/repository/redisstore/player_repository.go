// Package redisstore keeps player records in Redis: one JSON document per
// player plus a sorted set of best scores for ranking.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vytor/promptfix/internal/logger"
	"github.com/vytor/promptfix/internal/models"
	"github.com/vytor/promptfix/internal/repository"
)

type Options struct {
	Addr     string
	Password string
	DB       int
}

// Connect opens a client and checks it with PING.
func Connect(ctx context.Context, opts Options) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

type playerRepository struct {
	client *redis.Client
	prefix string
}

// NewPlayerRepository creates a new Redis-backed PlayerRepository. Ties in
// TopN follow the sorted set's reverse member order.
func NewPlayerRepository(client *redis.Client, prefix string) repository.PlayerRepository {
	return &playerRepository{client: client, prefix: prefix}
}

func (r *playerRepository) playerKey(key string) string { return r.prefix + "player:" + key }
func (r *playerRepository) boardKey() string { return r.prefix + "leaderboard" }
func (r *playerRepository) completedKey() string { return r.prefix + "completed" }

func (r *playerRepository) Upsert(ctx context.Context, p models.PlayerRecord) error {
	log := logger.FromContext(ctx).WithPrefix("player_repo").WithField("username", p.Username)
	key := p.Key()

	data, err := json.Marshal(p)
	if err != nil {
		return err
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.playerKey(key), data, 0)
		pipe.ZAdd(ctx, r.boardKey(), redis.Z{Score: p.BestScore, Member: key})
		if p.IsCompleted {
			pipe.SAdd(ctx, r.completedKey(), key)
		} else {
			pipe.SRem(ctx, r.completedKey(), key)
		}
		return nil
	})
	if err != nil {
		log.Error("failed to upsert player: %v", err)
		return err
	}
	log.Debug("player upserted")
	return nil
}

func (r *playerRepository) Exists(ctx context.Context, username string) (bool, error) {
	n, err := r.client.Exists(ctx, r.playerKey(models.UsernameKey(username))).Result()
	return n > 0, err
}

func (r *playerRepository) Get(ctx context.Context, username string) (*models.PlayerRecord, error) {
	log := logger.FromContext(ctx).WithPrefix("player_repo")
	key := models.UsernameKey(username)

	data, err := r.client.Get(ctx, r.playerKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		log.Debug("player not found: %s", key)
		return nil, nil
	}
	if err != nil {
		log.Error("failed to get player: %v", err)
		return nil, err
	}

	var p models.PlayerRecord
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode player %s: %w", key, err)
	}
	if p.Rounds == nil {
		p.Rounds = []models.Round{}
	}
	return &p, nil
}

func (r *playerRepository) Rank(ctx context.Context, username string) (int, bool, error) {
	key := models.UsernameKey(username)
	score, err := r.client.ZScore(ctx, r.boardKey(), key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	higher, err := r.client.ZCount(ctx, r.boardKey(), "("+strconv.FormatFloat(score, 'f', -1, 64), "+inf").Result()
	if err != nil {
		return 0, false, err
	}
	return int(higher) + 1, true, nil
}

func (r *playerRepository) TopN(ctx context.Context, n int) ([]models.PlayerRecord, error) {
	log := logger.FromContext(ctx).WithPrefix("player_repo")
	if n <= 0 {
		return []models.PlayerRecord{}, nil
	}

	keys, err := r.client.ZRevRange(ctx, r.boardKey(), 0, int64(n-1)).Result()
	if err != nil {
		log.Error("failed to read leaderboard: %v", err)
		return nil, err
	}
	if len(keys) == 0 {
		return []models.PlayerRecord{}, nil
	}

	docKeys := make([]string, len(keys))
	for i, k := range keys {
		docKeys[i] = r.playerKey(k)
	}
	values, err := r.client.MGet(ctx, docKeys...).Result()
	if err != nil {
		log.Error("failed to load players: %v", err)
		return nil, err
	}

	out := make([]models.PlayerRecord, 0, len(values))
	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			log.Warn("leaderboard member %s has no record, skipping", keys[i])
			continue
		}
		var p models.PlayerRecord
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			return nil, fmt.Errorf("decode player %s: %w", keys[i], err)
		}
		p.Rounds = []models.Round{}
		out = append(out, p)
	}
	return out, nil
}

func (r *playerRepository) Count(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.boardKey()).Result()
	return int(n), err
}

func (r *playerRepository) AverageScore(ctx context.Context) (float64, error) {
	members, err := r.client.ZRangeWithScores(ctx, r.boardKey(), 0, -1).Result()
	if err != nil {
		return 0, err
	}
	if len(members) == 0 {
		return 0, nil
	}
	sum := 0.0
	for _, m := range members {
		sum += m.Score
	}
	return sum / float64(len(members)), nil
}

func (r *playerRepository) StatusCounts(ctx context.Context) (models.StatusCounts, error) {
	var total, completed *redis.IntCmd
	_, err := r.client.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		total = pipe.ZCard(ctx, r.boardKey())
		completed = pipe.SCard(ctx, r.completedKey())
		return nil
	})
	if err != nil {
		return models.StatusCounts{}, err
	}
	c := models.StatusCounts{Total: int(total.Val()), Completed: int(completed.Val())}
	c.Active = c.Total - c.Completed
	return c, nil
}

func (r *playerRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

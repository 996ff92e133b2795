package models

import (
	"strings"
	"time"
)

// GameStatus is the derived lifecycle state of a PlayerRecord.
type GameStatus string

const (
	StatusNew       GameStatus = "new"
	StatusActive    GameStatus = "active"
	StatusCompleted GameStatus = "completed"
)

// PlayerRecord is the durable, cross-session summary of a player.
type PlayerRecord struct {
	Username        string    `json:"username"`
	RoundsRemaining int       `json:"rounds_remaining"`
	BestScore       float64   `json:"best_score"`
	RoundsPlayed    int       `json:"rounds_played"`
	TotalRounds     int       `json:"total_rounds"`
	Rounds          []Round   `json:"rounds"`
	IsCompleted     bool      `json:"is_completed"`
	CreatedAt       time.Time `json:"created_at"`
	LastPlayed      time.Time `json:"last_played"`
}

// UsernameKey is the case-insensitive identity of a username.
func UsernameKey(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

// NewPlayerRecord returns a record with defaults and no rounds.
func NewPlayerRecord(username string, now time.Time) PlayerRecord {
	return PlayerRecord{
		Username:        username,
		RoundsRemaining: MaxRounds,
		Rounds:          []Round{},
		CreatedAt:       now,
		LastPlayed:      now,
	}
}

// Key is the store key for the record.
func (p PlayerRecord) Key() string {
	return UsernameKey(p.Username)
}

// CanPlayMoreRounds is true for NEW and ACTIVE records.
func (p PlayerRecord) CanPlayMoreRounds() bool {
	return p.RoundsRemaining > 0 && !p.IsCompleted
}

// Status derives the lifecycle state from the counters.
func (p PlayerRecord) Status() GameStatus {
	switch {
	case p.IsCompleted:
		return StatusCompleted
	case p.RoundsPlayed == 0:
		return StatusNew
	default:
		return StatusActive
	}
}

// WithRounds returns a copy of p whose derived fields are recomputed from
// rounds. Rounds only ever append, so BestScore behaves as a running max.
func (p PlayerRecord) WithRounds(rounds []Round, now time.Time) PlayerRecord {
	out := p
	out.Rounds = append([]Round{}, rounds...)
	out.RoundsPlayed = len(rounds)
	out.TotalRounds = len(rounds)
	out.RoundsRemaining = max(0, MaxRounds-len(rounds))
	out.IsCompleted = out.RoundsRemaining == 0
	out.BestScore = BestScore(rounds)
	out.LastPlayed = now
	return out
}

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	Rank         int        `json:"rank"`
	Username     string     `json:"username"`
	BestScore    float64    `json:"best_score"`
	RoundsPlayed int        `json:"rounds_played"`
	Status       GameStatus `json:"game_status"`
	LastPlayed   time.Time  `json:"last_played"`
}

// EntryFromRecord builds a leaderboard row for p at rank.
func EntryFromRecord(rank int, p PlayerRecord) LeaderboardEntry {
	return LeaderboardEntry{
		Rank:         rank,
		Username:     p.Username,
		BestScore:    p.BestScore,
		RoundsPlayed: p.RoundsPlayed,
		Status:       p.Status(),
		LastPlayed:   p.LastPlayed,
	}
}

// StatusCounts is the completed/active split used by the dashboard.
type StatusCounts struct {
	Completed int `json:"completed"`
	Active    int `json:"active"`
	Total     int `json:"total"`
}

// RankEntries turns records already sorted by best score descending into
// leaderboard rows. Equal scores share a rank, so the rank of each row is one
// more than the number of rows scoring strictly higher.
func RankEntries(records []PlayerRecord) []LeaderboardEntry {
	entries := make([]LeaderboardEntry, 0, len(records))
	rank := 0
	for i, r := range records {
		if i == 0 || r.BestScore < records[i-1].BestScore {
			rank = i + 1
		}
		entries = append(entries, EntryFromRecord(rank, r))
	}
	return entries
}

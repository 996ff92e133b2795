package models

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// MaxRounds is the number of rounds each player gets.
const MaxRounds = 3

var (
	ErrRoundInFlight     = errors.New("a round is already being scored")
	ErrNoRoundsRemaining = errors.New("no rounds remaining")
	ErrNoPendingScenario = errors.New("no round prompt is pending")
)

// Session is a player's in-progress play-through. It lives only in process
// memory and is safe for concurrent use.
//
// While active, RoundIndex() == len(Rounds())+1 always holds.
type Session struct {
	mu              sync.Mutex
	commitMu        sync.Mutex
	username        string
	roundIndex      int
	maxRounds       int
	rounds          []Round
	active          bool
	createdAt       time.Time
	recordCreatedAt time.Time
	pending         *Scenario
	claimed         *Scenario
}

// NewSession starts a fresh play-through at round 1.
func NewSession(username string, now time.Time) *Session {
	return &Session{
		username:        username,
		roundIndex:      1,
		maxRounds:       MaxRounds,
		rounds:          []Round{},
		active:          true,
		createdAt:       now,
		recordCreatedAt: now,
	}
}

// ResumeSession starts a session seeded with the rounds already persisted in
// record, so play continues where it stopped.
func ResumeSession(record PlayerRecord, now time.Time) *Session {
	s := NewSession(record.Username, now)
	s.rounds = append(s.rounds, record.Rounds...)
	s.roundIndex = len(s.rounds) + 1
	if !record.CreatedAt.IsZero() {
		s.recordCreatedAt = record.CreatedAt
	}
	return s
}

func (s *Session) Username() string { return s.username }

func (s *Session) CreatedAt() time.Time { return s.createdAt }

func (s *Session) RoundIndex() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.roundIndex
}

func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// CanPlayMore reports whether another round may be submitted.
func (s *Session) CanPlayMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.canPlayMoreLocked()
}

func (s *Session) canPlayMoreLocked() bool {
	return s.active && s.roundIndex <= s.maxRounds
}

// Rounds returns a copy of the completed rounds in order.
func (s *Session) Rounds() []Round {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Round{}, s.rounds...)
}

// BestScore is the highest round score so far.
func (s *Session) BestScore() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BestScore(s.rounds)
}

func (s *Session) usedLocked() map[string]struct{} {
	used := make(map[string]struct{}, len(s.rounds))
	for _, r := range s.rounds {
		used[r.ScenarioID] = struct{}{}
	}
	return used
}

// EnsurePending returns the scenario for the current round, asking pick for
// one when none is set. pick receives the scenarios already played and runs
// under the session lock. While a round is being scored its scenario is
// returned and no new one is picked.
func (s *Session) EnsurePending(pick func(used map[string]struct{}) Scenario) Scenario {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed != nil {
		return *s.claimed
	}
	if s.pending == nil {
		sc := pick(s.usedLocked())
		s.pending = &sc
	}
	return *s.pending
}

// ClaimPending marks the pending scenario as being scored and returns it with
// the round number it belongs to. Until ReleaseClaim or AddRound, further
// claims fail with ErrRoundInFlight.
func (s *Session) ClaimPending() (Scenario, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed != nil {
		return Scenario{}, 0, ErrRoundInFlight
	}
	if !s.canPlayMoreLocked() {
		return Scenario{}, 0, ErrNoRoundsRemaining
	}
	if s.pending == nil {
		return Scenario{}, 0, ErrNoPendingScenario
	}
	s.claimed, s.pending = s.pending, nil
	return *s.claimed, s.roundIndex, nil
}

// ReleaseClaim ends the current claim. With retry the claimed scenario is
// pending again so the round can be resubmitted.
func (s *Session) ReleaseClaim(retry bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.claimed == nil {
		return
	}
	if retry && s.pending == nil {
		s.pending = s.claimed
	}
	s.claimed = nil
}

// AddRound appends a completed round and advances the round index by one.
func (s *Session) AddRound(r Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canPlayMoreLocked() {
		return fmt.Errorf("session for %s cannot accept more rounds", s.username)
	}
	if r.RoundNumber != s.roundIndex {
		return fmt.Errorf("round number %d does not match current round %d", r.RoundNumber, s.roundIndex)
	}
	s.rounds = append(s.rounds, r)
	s.roundIndex++
	s.claimed = nil
	return nil
}

// Record converts the session into a PlayerRecord snapshot without ending it.
func (s *Session) Record(now time.Time) PlayerRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	base := NewPlayerRecord(s.username, s.recordCreatedAt)
	return base.WithRounds(s.rounds, now)
}

// Exclusive runs fn while holding the session's commit lock. Writes that
// persist the session and then mutate it go through here so they cannot
// interleave.
func (s *Session) Exclusive(fn func() error) error {
	s.commitMu.Lock()
	defer s.commitMu.Unlock()
	return fn()
}

// Close marks the session inactive.
func (s *Session) Close() {
	s.mu.Lock()
	s.active = false
	s.mu.Unlock()
}

// SessionView is a read-only snapshot of a session for callers and JSON.
type SessionView struct {
	Username        string    `json:"username"`
	RoundIndex      int       `json:"current_round"`
	MaxRounds       int       `json:"max_rounds"`
	RoundsCompleted int       `json:"rounds_completed"`
	Rounds          []Round   `json:"rounds"`
	Active          bool      `json:"active"`
	CanPlayMore     bool      `json:"can_play_more"`
	BestScore       float64   `json:"best_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// View returns a consistent snapshot of the session.
func (s *Session) View() SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SessionView{
		Username:        s.username,
		RoundIndex:      s.roundIndex,
		MaxRounds:       s.maxRounds,
		RoundsCompleted: len(s.rounds),
		Rounds:          append([]Round{}, s.rounds...),
		Active:          s.active,
		CanPlayMore:     s.canPlayMoreLocked(),
		BestScore:       BestScore(s.rounds),
		CreatedAt:       s.createdAt,
	}
}

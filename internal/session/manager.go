// Package session keeps the in-memory registry of active play-throughs.
package session

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/vytor/promptfix/internal/clock"
	"github.com/vytor/promptfix/internal/logger"
	"github.com/vytor/promptfix/internal/metrics"
	"github.com/vytor/promptfix/internal/models"
	"github.com/vytor/promptfix/internal/repository"
)

// ErrNoSession is returned when no session is registered for a username.
var ErrNoSession = errors.New("no active session found")

// ActiveSessionError is returned by Start when a session already exists. It
// carries that session rather than a new one.
type ActiveSessionError struct {
	Session *models.Session
}

func (e *ActiveSessionError) Error() string {
	return fmt.Sprintf("an active session already exists for %s", e.Session.Username())
}

// DuplicateUsernameError is returned by Start when the username has already
// completed its game.
type DuplicateUsernameError struct {
	Username string
}

func (e *DuplicateUsernameError) Error() string {
	return fmt.Sprintf("username %q has already played", e.Username)
}

// Stats summarises the registry.
type Stats struct {
	ActiveSessions          int      `json:"active_sessions"`
	RoundsInProgress        int      `json:"total_rounds_in_progress"`
	AverageRoundsPerSession float64  `json:"average_rounds_per_session"`
	Usernames               []string `json:"usernames"`
}

// Manager is the registry of active sessions keyed by case-insensitive
// username. The registry lock is held only around map operations, never
// across store calls.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*models.Session
	repo     repository.PlayerRepository
	clock    clock.Clock
}

func NewManager(repo repository.PlayerRepository, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.Real()
	}
	return &Manager{
		sessions: make(map[string]*models.Session),
		repo:     repo,
		clock:    clk,
	}
}

func (m *Manager) lookup(key string) *models.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[key]
}

// Start registers a session for username. A completed player record yields
// *DuplicateUsernameError; an existing session yields *ActiveSessionError.
// An incomplete record is resumed: the session starts after its persisted
// rounds.
func (m *Manager) Start(ctx context.Context, username string) (*models.Session, error) {
	log := logger.FromContext(ctx).WithPrefix("session").WithField("username", username)
	key := models.UsernameKey(username)

	if existing := m.lookup(key); existing != nil {
		log.Info("existing session found")
		return nil, &ActiveSessionError{Session: existing}
	}

	record, err := m.repo.Get(ctx, username)
	if err != nil {
		log.Error("failed to load player record: %v", err)
		return nil, fmt.Errorf("load player record: %w", err)
	}
	if record != nil && !record.CanPlayMoreRounds() {
		log.Info("duplicate username attempt")
		return nil, &DuplicateUsernameError{Username: username}
	}

	now := m.clock.Now()
	var sess *models.Session
	if record != nil {
		sess = models.ResumeSession(*record, now)
	} else {
		sess = models.NewSession(username, now)
	}

	m.mu.Lock()
	if existing, ok := m.sessions[key]; ok {
		m.mu.Unlock()
		log.Info("lost start race to an existing session")
		return nil, &ActiveSessionError{Session: existing}
	}
	m.sessions[key] = sess
	n := len(m.sessions)
	m.mu.Unlock()

	metrics.SetActiveSessions(n)
	if record != nil {
		log.Info("resumed session at round %d", sess.RoundIndex())
	} else {
		log.Info("started new session")
	}
	return sess, nil
}

// Get returns the registered session or nil.
func (m *Manager) Get(username string) *models.Session {
	return m.lookup(models.UsernameKey(username))
}

// End persists the session's record and only then unregisters it. When the
// store fails the session stays registered so End can be retried.
func (m *Manager) End(ctx context.Context, username string) (models.PlayerRecord, error) {
	log := logger.FromContext(ctx).WithPrefix("session").WithField("username", username)
	key := models.UsernameKey(username)

	sess := m.lookup(key)
	if sess == nil {
		return models.PlayerRecord{}, ErrNoSession
	}

	var record models.PlayerRecord
	err := sess.Exclusive(func() error {
		if !sess.Active() {
			return ErrNoSession
		}
		record = sess.Record(m.clock.Now())
		if err := m.repo.Upsert(ctx, record); err != nil {
			return fmt.Errorf("save player record: %w", err)
		}
		sess.Close()
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrNoSession) {
			log.Error("failed to end session, keeping it for retry: %v", err)
		}
		return models.PlayerRecord{}, err
	}

	m.remove(key, sess)
	log.Info("ended session: best score %.1f, rounds %d", record.BestScore, record.RoundsPlayed)
	return record, nil
}

// Finish unregisters sess after its final round was persisted elsewhere.
func (m *Manager) Finish(sess *models.Session) {
	sess.Close()
	m.remove(models.UsernameKey(sess.Username()), sess)
}

func (m *Manager) remove(key string, sess *models.Session) bool {
	m.mu.Lock()
	removed := false
	if m.sessions[key] == sess {
		delete(m.sessions, key)
		removed = true
	}
	n := len(m.sessions)
	m.mu.Unlock()
	metrics.SetActiveSessions(n)
	return removed
}

// Sweep removes sessions created more than maxAge ago, without persisting
// them, and returns how many were removed.
func (m *Manager) Sweep(ctx context.Context, maxAge time.Duration) int {
	now := m.clock.Now()

	m.mu.Lock()
	var removed []*models.Session
	for key, sess := range m.sessions {
		if now.Sub(sess.CreatedAt()) > maxAge {
			delete(m.sessions, key)
			removed = append(removed, sess)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	log := logger.FromContext(ctx).WithPrefix("session")
	for _, sess := range removed {
		sess.Close()
		log.Info("cleaned up inactive session for: %s", sess.Username())
	}
	metrics.SetActiveSessions(n)
	if len(removed) > 0 {
		metrics.SessionsSwept(len(removed))
	}
	return len(removed)
}

// ForceEnd unregisters a session without persisting it.
func (m *Manager) ForceEnd(ctx context.Context, username string) bool {
	key := models.UsernameKey(username)
	sess := m.lookup(key)
	if sess == nil {
		return false
	}
	sess.Close()
	if !m.remove(key, sess) {
		return false
	}
	logger.FromContext(ctx).WithPrefix("session").Warn("force ended session for: %s", username)
	return true
}

// IsUsernameAvailable is true when the username has neither a record nor a
// session.
func (m *Manager) IsUsernameAvailable(ctx context.Context, username string) (bool, error) {
	if m.Get(username) != nil {
		return false, nil
	}
	exists, err := m.repo.Exists(ctx, username)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	sessions := make([]*models.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	m.mu.Unlock()

	st := Stats{Usernames: make([]string, 0, len(sessions))}
	for _, s := range sessions {
		st.RoundsInProgress += len(s.Rounds())
		st.Usernames = append(st.Usernames, s.Username())
	}
	sort.Strings(st.Usernames)
	st.ActiveSessions = len(sessions)
	if st.ActiveSessions > 0 {
		st.AverageRoundsPerSession = float64(st.RoundsInProgress) / float64(st.ActiveSessions)
	}
	return st
}

// Count returns the number of registered sessions.
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

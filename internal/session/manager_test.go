package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/vytor/promptfix/internal/clock"
	"github.com/vytor/promptfix/internal/models"
	"github.com/vytor/promptfix/internal/repository/memory"
	"github.com/vytor/promptfix/internal/repository/repotest"
	"github.com/vytor/promptfix/internal/session"
	"github.com/vytor/promptfix/internal/testutil/mocks"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestStart_NewSession(t *testing.T) {
	m := session.NewManager(memory.NewPlayerRepository(), clock.NewManual(t0))

	sess, err := m.Start(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", sess.Username())
	assert.Equal(t, 1, sess.RoundIndex())
	assert.True(t, sess.CanPlayMore())
	assert.Same(t, sess, m.Get("ALICE"))
	assert.Equal(t, 1, m.Count())
}

func TestStart_ExistingSession(t *testing.T) {
	m := session.NewManager(memory.NewPlayerRepository(), clock.NewManual(t0))
	first, err := m.Start(context.Background(), "alice")
	require.NoError(t, err)

	_, err = m.Start(context.Background(), "Alice")
	var active *session.ActiveSessionError
	require.ErrorAs(t, err, &active)
	assert.Same(t, first, active.Session)
}

func TestStart_CompletedRecordIsDuplicate(t *testing.T) {
	repo := memory.NewPlayerRepository()
	require.NoError(t, repo.Upsert(context.Background(), repotest.Player("alice", t0, 6, 8, 5)))
	m := session.NewManager(repo, clock.NewManual(t0))

	_, err := m.Start(context.Background(), "alice")
	var dup *session.DuplicateUsernameError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, 0, m.Count())
}

func TestStart_ResumesIncompleteRecord(t *testing.T) {
	repo := memory.NewPlayerRepository()
	require.NoError(t, repo.Upsert(context.Background(), repotest.Player("alice", t0, 4)))
	m := session.NewManager(repo, clock.NewManual(t0.Add(time.Hour)))

	sess, err := m.Start(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.RoundIndex())
	assert.Len(t, sess.Rounds(), 1)
	assert.Equal(t, 4.0, sess.BestScore())
}

func TestStart_StoreFailure(t *testing.T) {
	repo := new(mocks.MockPlayerRepository)
	repo.On("Get", mock.Anything, "alice").Return(nil, errors.New("db down"))
	m := session.NewManager(repo, clock.NewManual(t0))

	_, err := m.Start(context.Background(), "alice")
	require.Error(t, err)
	assert.Equal(t, 0, m.Count())
}

func TestStart_ConcurrentSameUsername(t *testing.T) {
	m := session.NewManager(memory.NewPlayerRepository(), clock.NewManual(t0))

	const n = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		started  []*models.Session
		existing []*models.Session
		others   []error
	)
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sess, err := m.Start(context.Background(), "bob")
			mu.Lock()
			defer mu.Unlock()
			var active *session.ActiveSessionError
			switch {
			case err == nil:
				started = append(started, sess)
			case errors.As(err, &active):
				existing = append(existing, active.Session)
			default:
				others = append(others, err)
			}
		}()
	}
	wg.Wait()

	require.Len(t, started, 1)
	assert.Empty(t, others)
	assert.Len(t, existing, n-1)
	for _, s := range existing {
		assert.Same(t, started[0], s)
	}
	assert.Equal(t, 1, m.Count())
}

func TestEnd_PersistsAndRemoves(t *testing.T) {
	repo := memory.NewPlayerRepository()
	m := session.NewManager(repo, clock.NewManual(t0))
	ctx := context.Background()
	_, err := m.Start(ctx, "alice")
	require.NoError(t, err)

	record, err := m.End(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", record.Username)
	assert.Nil(t, m.Get("alice"))

	exists, err := repo.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEnd_NoSession(t *testing.T) {
	m := session.NewManager(memory.NewPlayerRepository(), clock.NewManual(t0))
	_, err := m.End(context.Background(), "ghost")
	assert.ErrorIs(t, err, session.ErrNoSession)
}

func TestEnd_StoreFailureKeepsSession(t *testing.T) {
	repo := new(mocks.MockPlayerRepository)
	repo.On("Get", mock.Anything, "alice").Return(nil, nil)
	repo.On("Upsert", mock.Anything, mock.Anything).Return(errors.New("disk full")).Once()
	repo.On("Upsert", mock.Anything, mock.Anything).Return(nil).Once()
	m := session.NewManager(repo, clock.NewManual(t0))
	ctx := context.Background()

	sess, err := m.Start(ctx, "alice")
	require.NoError(t, err)

	_, err = m.End(ctx, "alice")
	require.Error(t, err)
	assert.Same(t, sess, m.Get("alice"))
	assert.True(t, sess.Active())

	_, err = m.End(ctx, "alice")
	require.NoError(t, err)
	assert.Nil(t, m.Get("alice"))
	assert.False(t, sess.Active())
	repo.AssertExpectations(t)
}

func TestSweep(t *testing.T) {
	clk := clock.NewManual(t0)
	m := session.NewManager(memory.NewPlayerRepository(), clk)
	ctx := context.Background()

	old, err := m.Start(ctx, "old")
	require.NoError(t, err)
	clk.Advance(90 * time.Minute)
	_, err = m.Start(ctx, "fresh")
	require.NoError(t, err)
	clk.Advance(45 * time.Minute)

	removed := m.Sweep(ctx, 2*time.Hour)
	assert.Equal(t, 1, removed)
	assert.Nil(t, m.Get("old"))
	assert.NotNil(t, m.Get("fresh"))
	assert.False(t, old.Active())

	assert.Equal(t, 0, m.Sweep(ctx, 2*time.Hour))
}

func TestForceEnd(t *testing.T) {
	repo := memory.NewPlayerRepository()
	m := session.NewManager(repo, clock.NewManual(t0))
	ctx := context.Background()
	_, err := m.Start(ctx, "alice")
	require.NoError(t, err)

	assert.True(t, m.ForceEnd(ctx, "alice"))
	assert.False(t, m.ForceEnd(ctx, "alice"))
	exists, err := repo.Exists(ctx, "alice")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestIsUsernameAvailable(t *testing.T) {
	repo := memory.NewPlayerRepository()
	require.NoError(t, repo.Upsert(context.Background(), repotest.Player("carol", t0, 3)))
	m := session.NewManager(repo, clock.NewManual(t0))
	ctx := context.Background()
	_, err := m.Start(ctx, "alice")
	require.NoError(t, err)

	for name, want := range map[string]bool{"alice": false, "carol": false, "dave": true} {
		got, err := m.IsUsernameAvailable(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, want, got, name)
	}
}

func TestStats(t *testing.T) {
	repo := memory.NewPlayerRepository()
	require.NoError(t, repo.Upsert(context.Background(), repotest.Player("bob", t0, 4, 5)))
	m := session.NewManager(repo, clock.NewManual(t0))
	ctx := context.Background()

	assert.Equal(t, session.Stats{Usernames: []string{}}, m.Stats())

	_, err := m.Start(ctx, "bob")
	require.NoError(t, err)
	_, err = m.Start(ctx, "alice")
	require.NoError(t, err)

	st := m.Stats()
	assert.Equal(t, 2, st.ActiveSessions)
	assert.Equal(t, 2, st.RoundsInProgress)
	assert.Equal(t, 1.0, st.AverageRoundsPerSession)
	assert.Equal(t, []string{"alice", "bob"}, st.Usernames)
}

package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/vytor/promptfix/internal/repository"
	"github.com/vytor/promptfix/internal/repository/memory"
	"github.com/vytor/promptfix/internal/repository/repotest"
)

func TestPlayerRepositorySuite(t *testing.T) {
	suite.Run(t, &repotest.PlayerRepositorySuite{New: memory.NewPlayerRepository})
}

func TestTopN_TiesKeepInsertionOrder(t *testing.T) {
	ctx := context.Background()
	repo := memory.NewPlayerRepository()
	for _, name := range []string{"zed", "amy", "kim"} {
		require.NoError(t, repo.Upsert(ctx, repotest.Player(name, repotest.T0.Add(time.Hour), 6)))
	}

	top, err := repo.TopN(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"zed", "amy", "kim"}, []string{top[0].Username, top[1].Username, top[2].Username})
}

func TestGet_ReturnsCopy(t *testing.T) {
	ctx := context.Background()
	var repo repository.PlayerRepository = memory.NewPlayerRepository()
	require.NoError(t, repo.Upsert(ctx, repotest.Player("amy", repotest.T0, 4)))

	got, err := repo.Get(ctx, "amy")
	require.NoError(t, err)
	got.Rounds[0].Score = 99

	again, err := repo.Get(ctx, "amy")
	require.NoError(t, err)
	assert.Equal(t, 4.0, again.Rounds[0].Score)
}

// Package repotest holds the behaviour every PlayerRepository backend must
// share, as a testify suite.
package repotest

import (
	"context"
	"fmt"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/vytor/promptfix/internal/models"
	"github.com/vytor/promptfix/internal/repository"
)

var T0 = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

// PlayerRepositorySuite runs against the repository returned by New, which is
// called before each test and must return an empty store.
type PlayerRepositorySuite struct {
	suite.Suite
	New  func() repository.PlayerRepository
	repo repository.PlayerRepository
}

func (s *PlayerRepositorySuite) SetupTest() {
	s.repo = s.New()
}

// Player builds a record whose rounds score the given totals.
func Player(username string, created time.Time, scores ...float64) models.PlayerRecord {
	rounds := make([]models.Round, 0, len(scores))
	for i, sc := range scores {
		q := min(sc, 5)
		f := min(sc-q, 3)
		c := sc - q - f
		rounds = append(rounds, models.NewRound(i+1,
			models.Scenario{ID: fmt.Sprintf("s%d", i+1), Category: "writing", FlawedPrompt: "write"},
			"improved", "response", models.CriterionScores{Quality: q, FrameworkUsage: f, Creativity: c},
			"feedback", created.Add(time.Duration(i+1)*time.Minute)))
	}
	return models.NewPlayerRecord(username, created).WithRounds(rounds, created.Add(time.Duration(len(scores))*time.Minute))
}

func (s *PlayerRepositorySuite) TestUpsertAndGet() {
	ctx := context.Background()
	p := Player("Alice", T0, 6, 8, 5)
	s.Require().NoError(s.repo.Upsert(ctx, p))

	got, err := s.repo.Get(ctx, "ALICE")
	s.Require().NoError(err)
	s.Require().NotNil(got)
	s.Assert().Equal("Alice", got.Username)
	s.Assert().Equal(8.0, got.BestScore)
	s.Assert().True(got.IsCompleted)
	s.Assert().Equal(0, got.RoundsRemaining)
	s.Assert().Equal(3, got.RoundsPlayed)
	s.Require().Len(got.Rounds, 3)
	s.Assert().Equal(2, got.Rounds[1].RoundNumber)
	s.Assert().Equal(8.0, got.Rounds[1].Score)
	s.Assert().Equal(5.0, got.Rounds[1].Breakdown.Quality)
	s.Assert().True(T0.Equal(got.CreatedAt))
}

func (s *PlayerRepositorySuite) TestGet_NotFound() {
	got, err := s.repo.Get(context.Background(), "nobody")
	s.Assert().NoError(err)
	s.Assert().Nil(got)
}

func (s *PlayerRepositorySuite) TestUpsert_Idempotent() {
	ctx := context.Background()
	p := Player("bob", T0, 4, 7)

	s.Require().NoError(s.repo.Upsert(ctx, p))
	first, err := s.repo.Get(ctx, "bob")
	s.Require().NoError(err)

	s.Require().NoError(s.repo.Upsert(ctx, p))
	second, err := s.repo.Get(ctx, "bob")
	s.Require().NoError(err)

	s.Assert().Equal(first.BestScore, second.BestScore)
	s.Assert().Equal(first.RoundsPlayed, second.RoundsPlayed)
	s.Assert().Len(second.Rounds, 2)

	n, err := s.repo.Count(ctx)
	s.Require().NoError(err)
	s.Assert().Equal(1, n)
}

func (s *PlayerRepositorySuite) TestUpsert_ReplacesRecord() {
	ctx := context.Background()
	s.Require().NoError(s.repo.Upsert(ctx, Player("carol", T0, 3)))
	s.Require().NoError(s.repo.Upsert(ctx, Player("Carol", T0, 3, 9)))

	got, err := s.repo.Get(ctx, "carol")
	s.Require().NoError(err)
	s.Assert().Equal(9.0, got.BestScore)
	s.Assert().Len(got.Rounds, 2)
	s.Assert().Equal(1, got.RoundsRemaining)

	n, err := s.repo.Count(ctx)
	s.Require().NoError(err)
	s.Assert().Equal(1, n)
}

func (s *PlayerRepositorySuite) TestExists() {
	ctx := context.Background()
	ok, err := s.repo.Exists(ctx, "dave")
	s.Require().NoError(err)
	s.Assert().False(ok)

	s.Require().NoError(s.repo.Upsert(ctx, Player("Dave", T0)))
	ok, err = s.repo.Exists(ctx, " dave ")
	s.Require().NoError(err)
	s.Assert().True(ok)
}

func (s *PlayerRepositorySuite) TestRankAndTopN() {
	ctx := context.Background()
	players := []models.PlayerRecord{
		Player("p1", T0, 5),
		Player("p2", T0.Add(time.Second), 9),
		Player("p3", T0.Add(2*time.Second), 7),
		Player("p4", T0.Add(3*time.Second), 7),
		Player("p5", T0.Add(4*time.Second)),
	}
	for _, p := range players {
		s.Require().NoError(s.repo.Upsert(ctx, p))
	}

	for _, p := range players {
		higher := 0
		for _, q := range players {
			if q.BestScore > p.BestScore {
				higher++
			}
		}
		rank, found, err := s.repo.Rank(ctx, p.Username)
		s.Require().NoError(err)
		s.Require().True(found)
		s.Assert().Equal(higher+1, rank, "rank of %s", p.Username)
	}

	_, found, err := s.repo.Rank(ctx, "ghost")
	s.Require().NoError(err)
	s.Assert().False(found)

	top, err := s.repo.TopN(ctx, 3)
	s.Require().NoError(err)
	s.Require().Len(top, 3)
	s.Assert().Equal("p2", top[0].Username)
	s.Assert().Equal(7.0, top[1].BestScore)
	s.Assert().Equal(7.0, top[2].BestScore)

	all, err := s.repo.TopN(ctx, 50)
	s.Require().NoError(err)
	s.Assert().Len(all, 5)
	s.Assert().Equal("p5", all[4].Username)

	none, err := s.repo.TopN(ctx, 0)
	s.Require().NoError(err)
	s.Assert().Empty(none)
}

func (s *PlayerRepositorySuite) TestAggregates() {
	ctx := context.Background()

	avg, err := s.repo.AverageScore(ctx)
	s.Require().NoError(err)
	s.Assert().Equal(0.0, avg)

	s.Require().NoError(s.repo.Upsert(ctx, Player("done", T0, 6, 8, 5)))
	s.Require().NoError(s.repo.Upsert(ctx, Player("halfway", T0, 4)))

	avg, err = s.repo.AverageScore(ctx)
	s.Require().NoError(err)
	s.Assert().InDelta(6.0, avg, 1e-9)

	counts, err := s.repo.StatusCounts(ctx)
	s.Require().NoError(err)
	s.Assert().Equal(models.StatusCounts{Completed: 1, Active: 1, Total: 2}, counts)

	s.Assert().NoError(s.repo.Ping(ctx))
}

package services_test

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/vytor/promptfix/internal/catalog"
	"github.com/vytor/promptfix/internal/clock"
	"github.com/vytor/promptfix/internal/errors"
	"github.com/vytor/promptfix/internal/evaluation"
	"github.com/vytor/promptfix/internal/events"
	"github.com/vytor/promptfix/internal/generation"
	"github.com/vytor/promptfix/internal/models"
	"github.com/vytor/promptfix/internal/repository"
	"github.com/vytor/promptfix/internal/repository/memory"
	"github.com/vytor/promptfix/internal/services"
	"github.com/vytor/promptfix/internal/session"
	"github.com/vytor/promptfix/internal/testutil/mocks"
)

var t0 = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type GameServiceSuite struct {
	suite.Suite
	ctx        context.Context
	clock      *clock.Manual
	repo       repository.PlayerRepository
	quality    *mocks.MockProvider
	framework  *mocks.MockProvider
	creativity *mocks.MockProvider
	generator  *mocks.MockProvider
	events     *mocks.RecordingEventQueue
	sessions   *session.Manager
	svc        services.GameService
}

func TestGameServiceSuite(t *testing.T) {
	suite.Run(t, new(GameServiceSuite))
}

func (s *GameServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.clock = clock.NewManual(t0)
	s.repo = memory.NewPlayerRepository()
	s.build()
}

func (s *GameServiceSuite) build() {
	s.quality = new(mocks.MockProvider)
	s.framework = new(mocks.MockProvider)
	s.creativity = new(mocks.MockProvider)
	s.generator = new(mocks.MockProvider)
	s.events = &mocks.RecordingEventQueue{}

	judge := evaluation.JudgeConfig{Model: "judge", Temperature: evaluation.DefaultJudgeTemperature}
	evaluator := evaluation.NewRoundEvaluatorWith(
		evaluation.NewCriterionEvaluator(evaluation.QualityRubric, s.quality, judge),
		evaluation.NewCriterionEvaluator(evaluation.FrameworkUsageRubric, s.framework, judge),
		evaluation.NewCriterionEvaluator(evaluation.CreativityRubric, s.creativity, judge),
	)
	gen := generation.NewResponseGenerator(s.generator, generation.Config{Model: "gen", Temperature: generation.DefaultTemperature})

	s.sessions = session.NewManager(s.repo, s.clock)
	s.svc = services.NewGameService(s.sessions, s.repo, catalog.Default(), gen, evaluator, s.events, s.clock,
		services.GameConfig{LeaderboardSize: 5})
}

// judgeRound queues one round of criterion scores.
func (s *GameServiceSuite) judgeRound(q, f, c float64) {
	s.quality.On("Complete", mock.Anything, mock.Anything).Return(fmt.Sprintf("Score: %g\nok", q), nil).Once()
	s.framework.On("Complete", mock.Anything, mock.Anything).Return(fmt.Sprintf("Score: %g\nok", f), nil).Once()
	s.creativity.On("Complete", mock.Anything, mock.Anything).Return(fmt.Sprintf("Score: %g\nok", c), nil).Once()
	s.generator.On("Complete", mock.Anything, mock.Anything).Return("a generated answer", nil).Once()
}

func (s *GameServiceSuite) play(username string, q, f, c float64) *services.RoundResult {
	_, err := s.svc.CurrentPrompt(s.ctx, username)
	s.Require().NoError(err)
	s.judgeRound(q, f, c)
	s.clock.Advance(time.Minute)
	res, err := s.svc.SubmitRound(s.ctx, username, "Act as an editor. Rewrite this for a CFO audience in 3 bullets.", nil)
	s.Require().NoError(err)
	return res
}

func (s *GameServiceSuite) TestFullGame() {
	start, err := s.svc.Start(s.ctx, "alice")
	s.Require().NoError(err)
	s.Assert().False(start.Resumed)
	s.Assert().Equal(1, start.Prompt.RoundNumber)
	s.Assert().NotEmpty(start.Prompt.FlawedPrompt)

	r1 := s.play("alice", 4, 1, 1)
	s.Assert().Equal(6.0, r1.Round.Score)
	s.Assert().Equal(2, r1.RoundsRemaining)
	s.Assert().True(r1.CanPlayMore)
	s.Assert().Nil(r1.Final)

	r2 := s.play("alice", 5, 2, 1)
	s.Assert().Equal(8.0, r2.BestScore)

	r3 := s.play("alice", 3, 1, 1)
	s.Assert().Equal(5.0, r3.Round.Score)
	s.Assert().Equal(8.0, r3.BestScore)
	s.Assert().Equal(0, r3.RoundsRemaining)
	s.Assert().False(r3.CanPlayMore)
	s.Require().NotNil(r3.Final)
	s.Assert().Equal(1, r3.Final.Rank)
	s.Assert().True(r3.Final.IsTop10)
	s.Assert().Equal(1, r3.Final.TotalPlayers)

	record, err := s.repo.Get(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().NotNil(record)
	s.Assert().Equal(8.0, record.BestScore)
	s.Assert().True(record.IsCompleted)
	s.Assert().Equal(0, record.RoundsRemaining)

	seen := map[string]bool{}
	for _, r := range record.Rounds {
		seen[r.ScenarioID] = true
	}
	s.Assert().Len(seen, 3)

	s.Assert().Nil(s.sessions.Get("alice"))
	s.Assert().Equal([]events.Type{
		events.SessionStarted, events.RoundCompleted, events.RoundCompleted, events.RoundCompleted, events.GameEnded,
	}, s.events.Types())

	_, err = s.svc.Start(s.ctx, "Alice")
	s.Assert().True(errors.HasCode(err, errors.ErrCodeDuplicateUsername))
}

func (s *GameServiceSuite) TestSubmitRound_EmptyPrompt() {
	_, err := s.svc.Start(s.ctx, "alice")
	s.Require().NoError(err)
	before, err := s.svc.CurrentPrompt(s.ctx, "alice")
	s.Require().NoError(err)

	_, err = s.svc.SubmitRound(s.ctx, "alice", "   ", nil)
	s.Assert().True(errors.HasCode(err, errors.ErrCodeValidation))

	after, err := s.svc.CurrentPrompt(s.ctx, "alice")
	s.Require().NoError(err)
	s.Assert().Equal(before.ScenarioID, after.ScenarioID)
	s.Assert().Equal(1, after.RoundNumber)

	exists, err := s.repo.Exists(s.ctx, "alice")
	s.Require().NoError(err)
	s.Assert().False(exists)
	s.generator.AssertNotCalled(s.T(), "Complete", mock.Anything, mock.Anything)
}

func (s *GameServiceSuite) TestSubmitRound_PersistenceFailureIsRetryable() {
	repo := new(mocks.MockPlayerRepository)
	repo.On("Get", mock.Anything, "alice").Return(nil, nil)
	repo.On("Upsert", mock.Anything, mock.Anything).Return(stderrors.New("store offline")).Once()
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(p models.PlayerRecord) bool {
		return len(p.Rounds) == 1 && p.RoundsRemaining == 2
	})).Return(nil).Once()
	s.repo = repo
	s.build()

	_, err := s.svc.Start(s.ctx, "alice")
	s.Require().NoError(err)
	prompt, err := s.svc.CurrentPrompt(s.ctx, "alice")
	s.Require().NoError(err)

	s.judgeRound(3, 2, 1)
	_, err = s.svc.SubmitRound(s.ctx, "alice", "Rewrite as a haiku", nil)
	s.Assert().True(errors.HasCode(err, errors.ErrCodePersistence))

	view, err := s.svc.Summary(s.ctx, "alice")
	s.Require().NoError(err)
	s.Assert().Equal(1, view.RoundIndex)
	s.Assert().Equal(0, view.RoundsCompleted)

	retry, err := s.svc.CurrentPrompt(s.ctx, "alice")
	s.Require().NoError(err)
	s.Assert().Equal(prompt.ScenarioID, retry.ScenarioID)

	s.judgeRound(3, 2, 1)
	res, err := s.svc.SubmitRound(s.ctx, "alice", "Rewrite as a haiku", nil)
	s.Require().NoError(err)
	s.Assert().Equal(6.0, res.Round.Score)
	repo.AssertExpectations(s.T())
}

func (s *GameServiceSuite) TestSubmitRound_SecondSubmitWhileScoring() {
	start, err := s.svc.Start(s.ctx, "alice")
	s.Require().NoError(err)

	entered := make(chan struct{})
	release := make(chan struct{})
	s.quality.On("Complete", mock.Anything, mock.Anything).Return("Score: 4\nok", nil).Once()
	s.framework.On("Complete", mock.Anything, mock.Anything).Return("Score: 1\nok", nil).Once()
	s.creativity.On("Complete", mock.Anything, mock.Anything).Return("Score: 1\nok", nil).Once()
	s.generator.On("Complete", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		close(entered)
		<-release
	}).Return("a generated answer", nil).Once()

	type outcome struct {
		res *services.RoundResult
		err error
	}
	first := make(chan outcome, 1)
	go func() {
		res, err := s.svc.SubmitRound(s.ctx, "alice", "Rewrite for a CFO in 3 bullets", nil)
		first <- outcome{res, err}
	}()
	<-entered

	during, err := s.svc.CurrentPrompt(s.ctx, "alice")
	s.Require().NoError(err)
	s.Assert().Equal(1, during.RoundNumber)
	s.Assert().Equal(start.Prompt.ScenarioID, during.ScenarioID)

	_, err = s.svc.SubmitRound(s.ctx, "alice", "A second try at the same round", nil)
	s.Assert().True(errors.HasCode(err, errors.ErrCodeRoundConflict))

	close(release)
	got := <-first
	s.Require().NoError(got.err)
	s.Assert().Equal(1, got.res.Round.RoundNumber)
	s.Assert().Equal(2, got.res.RoundsRemaining)

	record, err := s.repo.Get(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().NotNil(record)
	s.Assert().Equal(1, record.RoundsPlayed)
	s.Require().Len(record.Rounds, 1)
	s.Assert().Equal(1, record.Rounds[0].RoundNumber)

	next, err := s.svc.CurrentPrompt(s.ctx, "alice")
	s.Require().NoError(err)
	s.Assert().Equal(2, next.RoundNumber)
	s.Assert().NotEqual(start.Prompt.ScenarioID, next.ScenarioID)
	s.generator.AssertNumberOfCalls(s.T(), "Complete", 1)
}

func (s *GameServiceSuite) TestSubmitRound_CallerCancelledStillScores() {
	_, err := s.svc.Start(s.ctx, "alice")
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(s.ctx)
	cancel()

	notCancelled := mock.MatchedBy(func(c context.Context) bool { return c.Err() == nil })
	s.quality.On("Complete", notCancelled, mock.Anything).Return("Score: 4\nok", nil).Once()
	s.framework.On("Complete", notCancelled, mock.Anything).Return("Score: 1\nok", nil).Once()
	s.creativity.On("Complete", notCancelled, mock.Anything).Return("Score: 1\nok", nil).Once()
	s.generator.On("Complete", notCancelled, mock.Anything).Return("a generated answer", nil).Once()

	res, err := s.svc.SubmitRound(ctx, "alice", "Rewrite for a CFO in 3 bullets", nil)
	s.Require().NoError(err)
	s.Assert().False(res.EvaluationFailed)
	s.Assert().Equal(6.0, res.Round.Score)

	record, err := s.repo.Get(s.ctx, "alice")
	s.Require().NoError(err)
	s.Require().NotNil(record)
	s.Assert().Equal(6.0, record.BestScore)
}

func (s *GameServiceSuite) TestSubmitRound_Streaming() {
	_, err := s.svc.Start(s.ctx, "bob")
	s.Require().NoError(err)

	s.quality.On("Complete", mock.Anything, mock.Anything).Return("Score: 2", nil).Once()
	s.framework.On("Complete", mock.Anything, mock.Anything).Return("Score: 1", nil).Once()
	s.creativity.On("Complete", mock.Anything, mock.Anything).Return("Score: 0", nil).Once()
	s.generator.On("Stream", mock.Anything, mock.Anything).Return([]string{"Dear ", "team, ", "thanks."}, nil).Once()

	var chunks []string
	res, err := s.svc.SubmitRound(s.ctx, "bob", "Write a thank-you note to my team", func(c string) {
		chunks = append(chunks, c)
	})
	s.Require().NoError(err)
	s.Assert().Equal([]string{"Dear ", "team, ", "thanks."}, chunks)
	s.Assert().Equal("Dear team, thanks.", res.Round.GeneratedResponse)
	s.Assert().False(res.GenerationFailed)
	s.Assert().Equal(3.0, res.Round.Score)
}

func (s *GameServiceSuite) TestSubmitRound_DegradedJudgeAndGenerator() {
	_, err := s.svc.Start(s.ctx, "carol")
	s.Require().NoError(err)

	s.quality.On("Complete", mock.Anything, mock.Anything).Return("Score: 4", nil).Once()
	s.framework.On("Complete", mock.Anything, mock.Anything).Return("Score: 3", nil).Once()
	s.creativity.On("Complete", mock.Anything, mock.Anything).Return("", context.DeadlineExceeded).Once()
	s.generator.On("Complete", mock.Anything, mock.Anything).Return("", stderrors.New("rate limited")).Once()

	res, err := s.svc.SubmitRound(s.ctx, "carol", "Summarize the attached report in 5 bullets", nil)
	s.Require().NoError(err)
	s.Assert().Equal(7.0, res.Round.Score)
	s.Assert().True(res.GenerationFailed)
	s.Assert().False(res.EvaluationFailed)
	s.Assert().Equal(2, res.RoundsRemaining)
}

func (s *GameServiceSuite) TestStart_ActiveSession() {
	_, err := s.svc.Start(s.ctx, "bob")
	s.Require().NoError(err)

	_, err = s.svc.Start(s.ctx, "BOB")
	s.Assert().True(errors.HasCode(err, errors.ErrCodeActiveSession))
	var active *session.ActiveSessionError
	s.Require().ErrorAs(err, &active)
	s.Assert().Same(s.sessions.Get("bob"), active.Session)
}

func (s *GameServiceSuite) TestEndGame_EarlyThenResume() {
	_, err := s.svc.Start(s.ctx, "dave")
	s.Require().NoError(err)
	s.play("dave", 2, 1, 0)

	final, err := s.svc.EndGame(s.ctx, "dave")
	s.Require().NoError(err)
	s.Assert().False(final.IsCompleted)
	s.Assert().Equal(1, final.RoundsPlayed)
	s.Assert().Equal(3.0, final.BestScore)
	s.Assert().Equal(1, final.Rank)

	_, err = s.svc.EndGame(s.ctx, "dave")
	s.Assert().True(errors.HasCode(err, errors.ErrCodeNotFound))

	history, err := s.svc.History(s.ctx, "dave")
	s.Require().NoError(err)
	s.Assert().False(history.Active)
	s.Require().NotNil(history.Record)
	s.Assert().Equal(2, history.Record.RoundsRemaining)

	start, err := s.svc.Start(s.ctx, "dave")
	s.Require().NoError(err)
	s.Assert().True(start.Resumed)
	s.Assert().Equal(2, start.Session.RoundIndex)
	s.Assert().Equal(2, start.Prompt.RoundNumber)
}

func (s *GameServiceSuite) TestNoSession() {
	_, err := s.svc.CurrentPrompt(s.ctx, "ghost")
	s.Assert().True(errors.HasCode(err, errors.ErrCodeNotFound))
	_, err = s.svc.SubmitRound(s.ctx, "ghost", "prompt", nil)
	s.Assert().True(errors.HasCode(err, errors.ErrCodeNotFound))
	_, err = s.svc.History(s.ctx, "ghost")
	s.Assert().True(errors.HasCode(err, errors.ErrCodeNotFound))
}

func (s *GameServiceSuite) TestLeaderboardAndStats() {
	players := []struct {
		name    string
		q, f, c float64
	}{
		{"erin", 5, 3, 1},
		{"frank", 4, 0, 0},
	}
	for _, p := range players {
		_, err := s.svc.Start(s.ctx, p.name)
		s.Require().NoError(err)
		s.play(p.name, p.q, p.f, p.c)
		_, err = s.svc.EndGame(s.ctx, p.name)
		s.Require().NoError(err)
	}
	_, err := s.svc.Start(s.ctx, "gina")
	s.Require().NoError(err)

	board, err := s.svc.Leaderboard(s.ctx, 0)
	s.Require().NoError(err)
	s.Require().Len(board, 2)
	s.Assert().Equal("erin", board[0].Username)
	s.Assert().Equal(1, board[0].Rank)
	s.Assert().Equal(2, board[1].Rank)

	stats, err := s.svc.Stats(s.ctx)
	s.Require().NoError(err)
	s.Assert().Equal(2, stats.TotalPlayers)
	s.Assert().Equal(6.5, stats.AverageScore)
	s.Assert().Equal(2, stats.Status.Active)
	s.Assert().Equal(1, stats.Sessions.ActiveSessions)
	s.Assert().Equal([]string{"gina"}, stats.Sessions.Usernames)
	s.Assert().Equal(catalog.Default().Count(), stats.Scenarios)

	dash, err := s.svc.Dashboard(s.ctx)
	s.Require().NoError(err)
	s.Assert().Equal(2, dash.Status.Total)
	s.Assert().Len(dash.TopPlayers, 2)
}

func (s *GameServiceSuite) TestSweepSessions() {
	_, err := s.svc.Start(s.ctx, "old")
	s.Require().NoError(err)
	s.clock.Advance(3 * time.Hour)

	s.Assert().Equal(1, s.svc.SweepSessions(s.ctx, 2*time.Hour))
	s.Assert().Equal(0, s.svc.SweepSessions(s.ctx, 2*time.Hour))
	s.Assert().Equal([]events.Type{events.SessionStarted, events.SessionsSwept}, s.events.Types())
}

func TestNormalizeUsername(t *testing.T) {
	tests := []struct {
		raw, domain, want string
		wantErr           bool
	}{
		{"Alice", "", "alice", false},
		{"  bob.smith ", "", "bob.smith", false},
		{"Carol@Example.com", "", "carol", false},
		{"carol@example.com", "example.com", "carol", false},
		{"carol@EXAMPLE.com", "@example.com", "carol", false},
		{"carol@other.com", "example.com", "", true},
		{"", "", "", true},
		{"@example.com", "", "", true},
		{"-dash", "", "", true},
		{"has space", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := services.NormalizeUsername(tt.raw, tt.domain)
			if tt.wantErr {
				assert.True(t, errors.HasCode(err, errors.ErrCodeValidation), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

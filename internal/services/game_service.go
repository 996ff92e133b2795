package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/vytor/promptfix/internal/catalog"
	"github.com/vytor/promptfix/internal/clock"
	"github.com/vytor/promptfix/internal/errors"
	"github.com/vytor/promptfix/internal/evaluation"
	"github.com/vytor/promptfix/internal/events"
	"github.com/vytor/promptfix/internal/generation"
	"github.com/vytor/promptfix/internal/jobs"
	"github.com/vytor/promptfix/internal/logger"
	"github.com/vytor/promptfix/internal/metrics"
	"github.com/vytor/promptfix/internal/models"
	"github.com/vytor/promptfix/internal/repository"
	"github.com/vytor/promptfix/internal/session"
)

var errRoundMoved = stderrors.New("session moved past the round")

const (
	DefaultLeaderboardSize = 10
	maxLeaderboardSize     = 100
	topTenCutoff           = 10
)

// GameService composes the session registry, scenario catalog, generator,
// judge and player store into the operations the chat surface calls.
type GameService interface {
	NormalizeUsername(raw string) (string, error)
	Start(ctx context.Context, username string) (*StartResult, error)
	CurrentPrompt(ctx context.Context, username string) (*RoundPrompt, error)
	SubmitRound(ctx context.Context, username, prompt string, onChunk func(string)) (*RoundResult, error)
	EndGame(ctx context.Context, username string) (*FinalResults, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
	Stats(ctx context.Context) (*GameStats, error)
	Dashboard(ctx context.Context) (*Dashboard, error)
	History(ctx context.Context, username string) (*PlayerHistory, error)
	Summary(ctx context.Context, username string) (*models.SessionView, error)
	SweepSessions(ctx context.Context, maxAge time.Duration) int
	Ready(ctx context.Context) error
}

// GameConfig holds the tunables of the game service.
type GameConfig struct {
	LeaderboardSize    int
	AllowedEmailDomain string

	// RoundTimeout bounds generation, judging and saving of one submission.
	// Zero leaves it to the model client timeouts.
	RoundTimeout time.Duration
}

type StartResult struct {
	Session models.SessionView `json:"session"`
	Resumed bool               `json:"resumed"`
	Prompt  RoundPrompt        `json:"prompt"`
}

// RoundPrompt is what the player sees at the start of a round.
type RoundPrompt struct {
	RoundNumber    int    `json:"round_number"`
	MaxRounds      int    `json:"max_rounds"`
	ScenarioID     string `json:"scenario_id"`
	Category       string `json:"category"`
	FlawedPrompt   string `json:"flawed_prompt"`
	FlawedResponse string `json:"flawed_response"`
	Context        string `json:"context"`
}

type RoundResult struct {
	Round            models.Round             `json:"round"`
	Criteria         []models.CriterionResult `json:"criteria"`
	EvaluationFailed bool                     `json:"evaluation_failed"`
	GenerationFailed bool                     `json:"generation_failed"`
	RoundsRemaining  int                      `json:"rounds_remaining"`
	BestScore        float64                  `json:"best_score"`
	CanPlayMore      bool                     `json:"can_play_more"`
	Final            *FinalResults            `json:"final,omitempty"`
}

type FinalResults struct {
	Username     string                    `json:"username"`
	BestScore    float64                   `json:"best_score"`
	RoundsPlayed int                       `json:"rounds_played"`
	IsCompleted  bool                      `json:"is_completed"`
	Rank         int                       `json:"rank,omitempty"`
	TotalPlayers int                       `json:"total_players"`
	IsTop10      bool                      `json:"is_top_10"`
	TopPlayers   []models.LeaderboardEntry `json:"top_players"`
	Rounds       []models.Round            `json:"rounds"`
}

type GameStats struct {
	TotalPlayers int                 `json:"total_players"`
	AverageScore float64             `json:"average_score"`
	Status       models.StatusCounts `json:"status"`
	Sessions     session.Stats       `json:"sessions"`
	Scenarios    int                 `json:"scenarios"`
	Categories   []string            `json:"categories"`
}

type Dashboard struct {
	Status     models.StatusCounts       `json:"status"`
	TopPlayers []models.LeaderboardEntry `json:"top_players"`
}

// PlayerHistory is the active session when there is one, otherwise the
// persisted record.
type PlayerHistory struct {
	Active  bool                 `json:"active"`
	Session *models.SessionView  `json:"session,omitempty"`
	Record  *models.PlayerRecord `json:"record,omitempty"`
}

type gameService struct {
	sessions  *session.Manager
	repo      repository.PlayerRepository
	catalog   *catalog.Catalog
	generator *generation.ResponseGenerator
	evaluator *evaluation.RoundEvaluator
	events    jobs.EventQueue
	clock     clock.Clock
	cfg       GameConfig
}

// NewGameService creates a new GameService
func NewGameService(
	sessions *session.Manager,
	repo repository.PlayerRepository,
	cat *catalog.Catalog,
	generator *generation.ResponseGenerator,
	evaluator *evaluation.RoundEvaluator,
	eventQueue jobs.EventQueue,
	clk clock.Clock,
	cfg GameConfig,
) GameService {
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = DefaultLeaderboardSize
	}
	if clk == nil {
		clk = clock.Real()
	}
	return &gameService{
		sessions:  sessions,
		repo:      repo,
		catalog:   cat,
		generator: generator,
		evaluator: evaluator,
		events:    eventQueue,
		clock:     clk,
		cfg:       cfg,
	}
}

func (s *gameService) NormalizeUsername(raw string) (string, error) {
	return NormalizeUsername(raw, s.cfg.AllowedEmailDomain)
}

func (s *gameService) emit(ctx context.Context, t events.Type, username string, data map[string]any) {
	if s.events == nil {
		return
	}
	s.events.Enqueue(ctx, events.New(t, username, s.clock.Now(), data))
}

func (s *gameService) Start(ctx context.Context, raw string) (*StartResult, error) {
	username, err := s.NormalizeUsername(raw)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).WithPrefix("game_service").WithField("username", username)

	sess, err := s.sessions.Start(ctx, username)
	if err != nil {
		var active *session.ActiveSessionError
		var dup *session.DuplicateUsernameError
		switch {
		case stderrors.As(err, &active):
			return nil, errors.NewActiveSessionError(username, err)
		case stderrors.As(err, &dup):
			return nil, errors.NewDuplicateUsernameError(username)
		default:
			log.Error("failed to start session: %v", err)
			return nil, errors.NewPersistenceError("load", err)
		}
	}

	prompt := s.promptFor(sess)
	view := sess.View()
	resumed := view.RoundsCompleted > 0
	s.emit(ctx, events.SessionStarted, username, map[string]any{
		"resumed":       resumed,
		"current_round": view.RoundIndex,
	})
	log.Info("game started at round %d", view.RoundIndex)

	return &StartResult{Session: view, Resumed: resumed, Prompt: prompt}, nil
}

func (s *gameService) promptFor(sess *models.Session) RoundPrompt {
	sc := sess.EnsurePending(s.catalog.Random)
	return RoundPrompt{
		RoundNumber:    sess.RoundIndex(),
		MaxRounds:      models.MaxRounds,
		ScenarioID:     sc.ID,
		Category:       sc.Category,
		FlawedPrompt:   sc.FlawedPrompt,
		FlawedResponse: sc.FlawedResponse,
		Context:        sc.Context,
	}
}

func (s *gameService) activeSession(raw string) (*models.Session, string, error) {
	username, err := s.NormalizeUsername(raw)
	if err != nil {
		return nil, "", err
	}
	sess := s.sessions.Get(username)
	if sess == nil {
		return nil, username, errors.NewNotFoundError("session", username)
	}
	return sess, username, nil
}

func (s *gameService) CurrentPrompt(ctx context.Context, raw string) (*RoundPrompt, error) {
	sess, _, err := s.activeSession(raw)
	if err != nil {
		return nil, err
	}
	if !sess.CanPlayMore() {
		return nil, errors.NewBadRequestError("no rounds remaining, end the game to see your results")
	}
	prompt := s.promptFor(sess)
	return &prompt, nil
}

func (s *gameService) SubmitRound(ctx context.Context, raw, prompt string, onChunk func(string)) (*RoundResult, error) {
	if isBlank(prompt) {
		return nil, errors.NewValidationError("prompt", "improved prompt cannot be empty")
	}
	sess, username, err := s.activeSession(raw)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).WithPrefix("game_service").WithField("username", username)

	sc, roundNumber, err := sess.ClaimPending()
	switch {
	case stderrors.Is(err, models.ErrRoundInFlight):
		return nil, errors.NewRoundConflictError(fmt.Sprintf("round %d is already being scored", sess.RoundIndex()))
	case stderrors.Is(err, models.ErrNoRoundsRemaining):
		return nil, errors.NewBadRequestError("no rounds remaining, end the game to see your results")
	case err != nil:
		return nil, errors.NewBadRequestError("no round prompt is pending, request the current prompt first")
	}
	log.Info("scoring round %d on scenario %s", roundNumber, sc.ID)

	// Scoring and saving ignore caller cancellation.
	work := context.WithoutCancel(ctx)
	if s.cfg.RoundTimeout > 0 {
		var cancel context.CancelFunc
		work, cancel = context.WithTimeout(work, s.cfg.RoundTimeout)
		defer cancel()
	}

	generated := s.generator.GenerateStream(work, prompt, sc, onChunk)
	eval := s.evaluator.EvaluateRound(work, sc.FlawedPrompt, prompt, generated, sc.Context)
	round := models.NewRound(roundNumber, sc, prompt, generated, eval.Breakdown(), eval.Feedback, s.clock.Now())

	var record models.PlayerRecord
	err = sess.Exclusive(func() error {
		if !sess.Active() {
			return session.ErrNoSession
		}
		if !sess.CanPlayMore() || sess.RoundIndex() != roundNumber {
			return errRoundMoved
		}
		now := s.clock.Now()
		current := sess.Record(now)
		record = current.WithRounds(append(current.Rounds, round), now)
		if err := s.repo.Upsert(work, record); err != nil {
			return fmt.Errorf("save round %d: %w", roundNumber, err)
		}
		return sess.AddRound(round)
	})
	if err != nil {
		switch {
		case stderrors.Is(err, session.ErrNoSession):
			return nil, errors.NewNotFoundError("session", username)
		case stderrors.Is(err, errRoundMoved):
			metrics.RoundSubmitted("conflict")
			sess.ReleaseClaim(false)
			log.Warn("round %d was already committed, discarding submission", roundNumber)
			return nil, errors.NewRoundConflictError(fmt.Sprintf("round %d was already submitted", roundNumber))
		}
		sess.ReleaseClaim(true)
		metrics.RoundSubmitted("persist_failed")
		log.Error("round %d not saved, scenario restored for retry: %v", roundNumber, err)
		return nil, errors.NewPersistenceError("save", err)
	}

	metrics.RoundSubmitted("scored")
	metrics.RoundScored(round.Score)
	s.emit(ctx, events.RoundCompleted, username, map[string]any{
		"round_number":      round.RoundNumber,
		"scenario_id":       round.ScenarioID,
		"score":             round.Score,
		"evaluation_failed": eval.Failed,
	})
	log.Info("round %d scored %.1f/10", round.RoundNumber, round.Score)

	result := &RoundResult{
		Round:            round,
		Criteria:         eval.Criteria,
		EvaluationFailed: eval.Failed,
		GenerationFailed: generation.Failed(generated),
		RoundsRemaining:  record.RoundsRemaining,
		BestScore:        record.BestScore,
		CanPlayMore:      sess.CanPlayMore(),
	}

	if record.IsCompleted {
		s.sessions.Finish(sess)
		result.Final = s.finalResults(work, record)
		s.emit(ctx, events.GameEnded, username, map[string]any{
			"best_score":    record.BestScore,
			"rounds_played": record.RoundsPlayed,
		})
		log.Info("game completed with best score %.1f", record.BestScore)
	}
	return result, nil
}

func (s *gameService) EndGame(ctx context.Context, raw string) (*FinalResults, error) {
	username, err := s.NormalizeUsername(raw)
	if err != nil {
		return nil, err
	}
	log := logger.FromContext(ctx).WithPrefix("game_service").WithField("username", username)

	record, err := s.sessions.End(ctx, username)
	if err != nil {
		if stderrors.Is(err, session.ErrNoSession) {
			return nil, errors.NewNotFoundError("session", username)
		}
		log.Error("failed to end game: %v", err)
		return nil, errors.NewPersistenceError("save", err)
	}

	s.emit(ctx, events.GameEnded, username, map[string]any{
		"best_score":    record.BestScore,
		"rounds_played": record.RoundsPlayed,
	})
	return s.finalResults(ctx, record), nil
}

// finalResults degrades to an unranked result when the leaderboard cannot be
// read; the record itself is already saved.
func (s *gameService) finalResults(ctx context.Context, record models.PlayerRecord) *FinalResults {
	log := logger.FromContext(ctx).WithPrefix("game_service").WithField("username", record.Username)
	final := &FinalResults{
		Username:     record.Username,
		BestScore:    record.BestScore,
		RoundsPlayed: record.RoundsPlayed,
		IsCompleted:  record.IsCompleted,
		Rounds:       record.Rounds,
		TopPlayers:   []models.LeaderboardEntry{},
	}

	rank, found, err := s.repo.Rank(ctx, record.Username)
	if err != nil {
		log.Warn("failed to compute rank: %v", err)
	} else if found {
		final.Rank = rank
		final.IsTop10 = rank <= topTenCutoff
	}

	if total, err := s.repo.Count(ctx); err != nil {
		log.Warn("failed to count players: %v", err)
	} else {
		final.TotalPlayers = total
	}

	if top, err := s.repo.TopN(ctx, s.cfg.LeaderboardSize); err != nil {
		log.Warn("failed to load top players: %v", err)
	} else {
		final.TopPlayers = models.RankEntries(top)
	}
	return final
}

func (s *gameService) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = s.cfg.LeaderboardSize
	}
	limit = min(limit, maxLeaderboardSize)

	top, err := s.repo.TopN(ctx, limit)
	if err != nil {
		logger.FromContext(ctx).WithPrefix("game_service").Error("failed to load leaderboard: %v", err)
		return nil, errors.NewPersistenceError("load", err)
	}
	return models.RankEntries(top), nil
}

func (s *gameService) Stats(ctx context.Context) (*GameStats, error) {
	log := logger.FromContext(ctx).WithPrefix("game_service")

	total, err := s.repo.Count(ctx)
	if err != nil {
		log.Error("failed to count players: %v", err)
		return nil, errors.NewPersistenceError("load", err)
	}
	avg, err := s.repo.AverageScore(ctx)
	if err != nil {
		log.Error("failed to average scores: %v", err)
		return nil, errors.NewPersistenceError("load", err)
	}
	counts, err := s.repo.StatusCounts(ctx)
	if err != nil {
		log.Error("failed to count statuses: %v", err)
		return nil, errors.NewPersistenceError("load", err)
	}

	return &GameStats{
		TotalPlayers: total,
		AverageScore: avg,
		Status:       counts,
		Sessions:     s.sessions.Stats(),
		Scenarios:    s.catalog.Count(),
		Categories:   s.catalog.Categories(),
	}, nil
}

func (s *gameService) Dashboard(ctx context.Context) (*Dashboard, error) {
	counts, err := s.repo.StatusCounts(ctx)
	if err != nil {
		logger.FromContext(ctx).WithPrefix("game_service").Error("failed to count statuses: %v", err)
		return nil, errors.NewPersistenceError("load", err)
	}
	top, err := s.Leaderboard(ctx, s.cfg.LeaderboardSize)
	if err != nil {
		return nil, err
	}
	return &Dashboard{Status: counts, TopPlayers: top}, nil
}

func (s *gameService) History(ctx context.Context, raw string) (*PlayerHistory, error) {
	username, err := s.NormalizeUsername(raw)
	if err != nil {
		return nil, err
	}
	if sess := s.sessions.Get(username); sess != nil {
		view := sess.View()
		return &PlayerHistory{Active: true, Session: &view}, nil
	}

	record, err := s.repo.Get(ctx, username)
	if err != nil {
		logger.FromContext(ctx).WithPrefix("game_service").Error("failed to load player %s: %v", username, err)
		return nil, errors.NewPersistenceError("load", err)
	}
	if record == nil {
		return nil, errors.NewNotFoundError("player", username)
	}
	return &PlayerHistory{Record: record}, nil
}

func (s *gameService) Summary(ctx context.Context, raw string) (*models.SessionView, error) {
	sess, _, err := s.activeSession(raw)
	if err != nil {
		return nil, err
	}
	view := sess.View()
	return &view, nil
}

func (s *gameService) SweepSessions(ctx context.Context, maxAge time.Duration) int {
	n := s.sessions.Sweep(ctx, maxAge)
	if n > 0 {
		s.emit(ctx, events.SessionsSwept, "", map[string]any{"count": n})
	}
	return n
}

func (s *gameService) Ready(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

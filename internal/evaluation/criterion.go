// Package evaluation scores a player's rewritten prompt with an LLM judge,
// one call per rubric criterion.
package evaluation

import (
	"context"
	"fmt"

	"github.com/vytor/promptfix/internal/llm"
	"github.com/vytor/promptfix/internal/logger"
	"github.com/vytor/promptfix/internal/models"
)

// DefaultJudgeTemperature keeps the judge close to deterministic.
const DefaultJudgeTemperature = 0.1

// JudgeConfig selects the judge model.
type JudgeConfig struct {
	Model       string
	Temperature float64
}

// CriterionEvaluator scores one rubric dimension.
type CriterionEvaluator struct {
	rubric   Rubric
	provider llm.Provider
	cfg      JudgeConfig
}

func NewCriterionEvaluator(rubric Rubric, provider llm.Provider, cfg JudgeConfig) *CriterionEvaluator {
	return &CriterionEvaluator{rubric: rubric, provider: provider, cfg: cfg}
}

// Evaluate never returns an error. A failed judge call scores 0 with an
// "error: ..." rationale and OutcomeJudgeFailed; output without an in-range
// score scores 0, keeps the raw text and is marked OutcomeUnparseable.
func (e *CriterionEvaluator) Evaluate(ctx context.Context, original, improved, scenarioContext string) models.CriterionResult {
	log := logger.FromContext(ctx).WithPrefix("evaluation").WithField("criterion", string(e.rubric.Criterion))

	result := models.CriterionResult{
		Criterion: e.rubric.Criterion,
		MaxScore:  e.rubric.MaxScore,
	}

	text, err := e.provider.Complete(ctx, llm.Request{
		Model:       e.cfg.Model,
		Prompt:      e.rubric.Render(original, improved, scenarioContext),
		Temperature: e.cfg.Temperature,
	})
	if err != nil {
		log.Error("judge call failed: %v", err)
		result.Outcome = models.OutcomeJudgeFailed
		result.Rationale = fmt.Sprintf("error: %v", err)
		return result
	}

	score, ok := ExtractScore(text, e.rubric.MaxScore)
	if !ok {
		log.Warn("could not extract score from response: %.100s", text)
		result.Outcome = models.OutcomeUnparseable
		result.Rationale = text
		return result
	}

	result.Score = score
	result.Rationale = text
	result.Outcome = models.OutcomeScored
	log.Debug("scored %.1f/%.0f", score, e.rubric.MaxScore)
	return result
}

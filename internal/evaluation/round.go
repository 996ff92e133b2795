package evaluation

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/vytor/promptfix/internal/llm"
	"github.com/vytor/promptfix/internal/logger"
	"github.com/vytor/promptfix/internal/metrics"
	"github.com/vytor/promptfix/internal/models"
)

// RoundEvaluator runs every criterion evaluator concurrently for one
// submission and combines their results.
type RoundEvaluator struct {
	criteria []*CriterionEvaluator
}

// NewRoundEvaluator builds the three default criteria on a single judge.
func NewRoundEvaluator(provider llm.Provider, cfg JudgeConfig) *RoundEvaluator {
	rubrics := DefaultRubrics()
	criteria := make([]*CriterionEvaluator, 0, len(rubrics))
	for _, r := range rubrics {
		criteria = append(criteria, NewCriterionEvaluator(r, provider, cfg))
	}
	return &RoundEvaluator{criteria: criteria}
}

// NewRoundEvaluatorWith uses the given criterion evaluators in order.
func NewRoundEvaluatorWith(criteria ...*CriterionEvaluator) *RoundEvaluator {
	return &RoundEvaluator{criteria: criteria}
}

// EvaluateRound waits for all criteria. A criterion that panics is recorded
// as a judge failure; if every criterion fails that way the evaluation is
// marked Failed with a zero total.
func (r *RoundEvaluator) EvaluateRound(ctx context.Context, original, improved, generated, scenarioContext string) models.RoundEvaluation {
	log := logger.FromContext(ctx).WithPrefix("evaluation")
	log.Debug("evaluating submission (%d chars, response %d chars)", len(improved), len(generated))

	results := make([]models.CriterionResult, len(r.criteria))
	failures := make([]error, len(r.criteria))

	var g errgroup.Group
	for i, c := range r.criteria {
		g.Go(func() (err error) {
			defer func() {
				if p := recover(); p != nil {
					err = fmt.Errorf("%s evaluator panicked: %v", c.rubric.Criterion, p)
					failures[i] = err
					results[i] = models.CriterionResult{
						Criterion: c.rubric.Criterion,
						MaxScore:  c.rubric.MaxScore,
						Rationale: "error: " + err.Error(),
						Outcome:   models.OutcomeJudgeFailed,
					}
				}
			}()
			results[i] = c.Evaluate(ctx, original, improved, scenarioContext)
			return nil
		})
	}
	waitErr := g.Wait()

	for _, res := range results {
		metrics.CriterionOutcome(string(res.Criterion), string(res.Outcome))
	}

	if len(r.criteria) > 0 && allFailed(failures) {
		log.Error("evaluation failed: %v", waitErr)
		return models.RoundEvaluation{
			TotalScore: 0,
			Criteria:   results,
			Feedback:   fmt.Sprintf("evaluation failed: %v", waitErr),
			Failed:     true,
		}
	}

	total := 0.0
	for _, res := range results {
		total += res.Score
	}

	log.Info("evaluation completed, total score %.1f/%.0f", total, models.MaxRoundScore)
	return models.RoundEvaluation{
		TotalScore: total,
		Criteria:   results,
		Feedback:   buildFeedback(r.criteria, results, total),
	}
}

func allFailed(errs []error) bool {
	for _, err := range errs {
		if err == nil {
			return false
		}
	}
	return true
}

func buildFeedback(criteria []*CriterionEvaluator, results []models.CriterionResult, total float64) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "**Total Score: %.1f/%.0f**\n", total, models.MaxRoundScore)
	for i, res := range results {
		fmt.Fprintf(&sb, "\n**%s: %.1f/%.0f**\n%s\n", criteria[i].rubric.Label, res.Score, res.MaxScore, strings.TrimSpace(res.Rationale))
	}
	sb.WriteString("\n")
	sb.WriteString(BandMessage(total))
	return sb.String()
}

type band struct {
	min     float64
	message string
}

// Inclusive lower bounds, checked top-down.
var bands = []band{
	{9, "Outstanding! You've mastered prompt engineering!"},
	{7, "Excellent work! Your prompt improvement skills are strong!"},
	{5, "Good job! You're on the right track with prompt improvement!"},
	{3, "Keep practicing! Consider focusing more on the COSTAR framework!"},
}

const fallbackBand = "Don't give up! Review the COSTAR framework and try again!"

// BandMessage returns the encouragement line for a total score.
func BandMessage(total float64) string {
	for _, b := range bands {
		if total >= b.min {
			return b.message
		}
	}
	return fallbackBand
}

package models

// Criterion names one rubric dimension judged per round.
type Criterion string

const (
	CriterionQuality        Criterion = "quality"
	CriterionFrameworkUsage Criterion = "framework_usage"
	CriterionCreativity     Criterion = "creativity"
)

// Outcome says how a criterion score was obtained.
type Outcome string

const (
	// OutcomeScored means the judge answered and a score was extracted.
	OutcomeScored Outcome = "scored"
	// OutcomeUnparseable means the judge answered but no in-range score was found.
	OutcomeUnparseable Outcome = "unparseable"
	// OutcomeJudgeFailed means the judge call itself failed or timed out.
	OutcomeJudgeFailed Outcome = "judge_failed"
)

// CriterionResult is the result of one criterion evaluation.
type CriterionResult struct {
	Criterion Criterion `json:"criterion"`
	Score     float64   `json:"score"`
	MaxScore  float64   `json:"max_score"`
	Rationale string    `json:"rationale"`
	Outcome   Outcome   `json:"outcome"`
}

// Degraded is true when the score is zero because of a failure rather than
// a judgement.
func (r CriterionResult) Degraded() bool {
	return r.Outcome != OutcomeScored
}

// RoundEvaluation combines the three criterion results for one submission.
type RoundEvaluation struct {
	TotalScore float64           `json:"total_score"`
	Criteria   []CriterionResult `json:"criteria"`
	Feedback   string            `json:"feedback"`
	Failed     bool              `json:"failed"`
}

// Breakdown maps the criterion results onto CriterionScores.
func (e RoundEvaluation) Breakdown() CriterionScores {
	var c CriterionScores
	for _, r := range e.Criteria {
		switch r.Criterion {
		case CriterionQuality:
			c.Quality = r.Score
		case CriterionFrameworkUsage:
			c.FrameworkUsage = r.Score
		case CriterionCreativity:
			c.Creativity = r.Score
		}
	}
	return c
}

// Result returns the result for criterion c.
func (e RoundEvaluation) Result(c Criterion) (CriterionResult, bool) {
	for _, r := range e.Criteria {
		if r.Criterion == c {
			return r, true
		}
	}
	return CriterionResult{}, false
}

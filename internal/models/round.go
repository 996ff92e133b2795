package models

import "time"

// MaxRoundScore is the sum of the three criterion maxima (5 + 3 + 2).
const MaxRoundScore = 10.0

// CriterionScores is the per-criterion breakdown of a round score.
type CriterionScores struct {
	Quality        float64 `json:"quality"`
	FrameworkUsage float64 `json:"framework_usage"`
	Creativity     float64 `json:"creativity"`
}

// Total is the unweighted sum of the three criteria.
func (c CriterionScores) Total() float64 {
	return c.Quality + c.FrameworkUsage + c.Creativity
}

// Round is one scored attempt at improving a scenario prompt. A Round is
// created once per successful submission and never modified afterwards.
type Round struct {
	RoundNumber       int             `json:"round_number"`
	ScenarioID        string          `json:"scenario_id"`
	Category          string          `json:"category"`
	OriginalPrompt    string          `json:"original_prompt"`
	SubmittedPrompt   string          `json:"submitted_prompt"`
	GeneratedResponse string          `json:"generated_response"`
	Score             float64         `json:"score"`
	Breakdown         CriterionScores `json:"breakdown"`
	Feedback          string          `json:"feedback"`
	CompletedAt       time.Time       `json:"completed_at"`
}

// NewRound builds a round for scenario s. The score is taken from the
// breakdown so the two can never disagree.
func NewRound(number int, s Scenario, submitted, generated string, breakdown CriterionScores, feedback string, at time.Time) Round {
	return Round{
		RoundNumber:       number,
		ScenarioID:        s.ID,
		Category:          s.Category,
		OriginalPrompt:    s.FlawedPrompt,
		SubmittedPrompt:   submitted,
		GeneratedResponse: generated,
		Score:             breakdown.Total(),
		Breakdown:         breakdown,
		Feedback:          feedback,
		CompletedAt:       at,
	}
}

// BestScore returns the highest round score, or 0 for no rounds.
func BestScore(rounds []Round) float64 {
	best := 0.0
	for i, r := range rounds {
		if i == 0 || r.Score > best {
			best = r.Score
		}
	}
	return best
}

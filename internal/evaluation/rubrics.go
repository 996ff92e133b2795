package evaluation

import (
	"strings"

	"github.com/vytor/promptfix/internal/models"
)

// Rubric is the fixed judging instruction for one criterion. Template may
// reference {original_prompt}, {improved_prompt} and {context}.
type Rubric struct {
	Criterion models.Criterion
	Label     string
	MaxScore  float64
	Template  string
}

// Render substitutes the inputs into the template verbatim.
func (r Rubric) Render(original, improved, context string) string {
	return strings.NewReplacer(
		"{original_prompt}", original,
		"{improved_prompt}", improved,
		"{context}", context,
	).Replace(r.Template)
}

// DefaultRubrics returns the quality, framework usage and creativity rubrics
// in that order. Their maxima sum to models.MaxRoundScore.
func DefaultRubrics() []Rubric {
	return []Rubric{QualityRubric, FrameworkUsageRubric, CreativityRubric}
}

var QualityRubric = Rubric{
	Criterion: models.CriterionQuality,
	Label:     "Prompt Quality",
	MaxScore:  5,
	Template: `You are evaluating a user's attempt to improve a bad prompt.

ORIGINAL BAD PROMPT: "{original_prompt}"
CONTEXT (provided by the game, NOT by the user): {context}
USER'S IMPROVED PROMPT (what you are evaluating): "{improved_prompt}"

Score ONLY the user's improved prompt from 0-5 points.

The improved prompt must:
1. Be an actual prompt that could be given to an AI to complete the same task as the original
2. Be significantly better than the original bad prompt
3. Stay within the same topic as the original task
4. Not be a description or explanation of how to write prompts

Give 0 points if the improved prompt only describes the COSTAR framework instead of applying it,
is not a usable prompt for the task, is about a different topic, is generic advice about prompt
writing, or is a single word or meaningless phrase.

SCORING:
- 5 points: Excellent prompt that dramatically improves the original, highly specific and actionable
- 4 points: Good prompt with clear improvements, specific and usable
- 3 points: Decent prompt with some improvements
- 2 points: Minor improvements but still unclear or incomplete
- 1 point: Barely better than original or very poor quality
- 0 points: No actual improvement, wrong topic, or not a real prompt

Start your response with "Score: X" then explain why in at most 2 sentences.`,
}

var FrameworkUsageRubric = Rubric{
	Criterion: models.CriterionFrameworkUsage,
	Label:     "COSTAR Framework Usage",
	MaxScore:  3,
	Template: `You are evaluating how well a user applied the COSTAR framework to improve a bad prompt.

ORIGINAL BAD PROMPT: "{original_prompt}"
CONTEXT (provided by the game, NOT by the user): {context}
USER'S IMPROVED PROMPT (what you are evaluating): "{improved_prompt}"

Score ONLY the user's improved prompt for actual COSTAR usage (0-3 points).

COSTAR elements to look for in the improved prompt:
- Context: relevant background
- Objective: clear goals or outcomes
- Style: format, structure or style preferences
- Tone: desired tone or voice
- Audience: the target audience
- Response: the desired response format

Give 0 points if the improved prompt explains what COSTAR is instead of using it, does not apply
it to the task, is about a different topic, or copies framework definitions.

SCORING:
- 3 points: Uses 4+ COSTAR elements effectively in the prompt for the task
- 2 points: Uses 2-3 COSTAR elements clearly
- 1 point: Uses 1 COSTAR element clearly
- 0 points: No actual COSTAR application

Start your response with "Score: X" then name the elements that were applied, in at most 2 sentences.`,
}

var CreativityRubric = Rubric{
	Criterion: models.CriterionCreativity,
	Label:     "Creativity Bonus",
	MaxScore:  2,
	Template: `You are evaluating the creativity in a user's prompt improvement.

ORIGINAL BAD PROMPT: "{original_prompt}"
CONTEXT (provided by the game, NOT by the user): {context}
USER'S IMPROVED PROMPT (what you are evaluating): "{improved_prompt}"

Score ONLY the user's improved prompt for creativity (0-2 points).

Give 0 points if the improved prompt explains a framework, is not a prompt for the task, copies
definitions, is generic writing advice, or is about a different topic.

SCORING (only if it is a usable prompt for the task):
- 2 points: Highly creative approach, novel techniques or formatting for the specific task
- 1 point: Some creative elements or unique approaches
- 0 points: No creativity, generic, or not a prompt for the task

Start your response with "Score: X" then explain in at most 2 sentences.`,
}

// Package generation produces the model's answer to a player's rewritten
// prompt, framed by the scenario it belongs to.
package generation

import (
	"context"
	"fmt"
	"iter"
	"strings"

	"github.com/vytor/promptfix/internal/llm"
	"github.com/vytor/promptfix/internal/logger"
	"github.com/vytor/promptfix/internal/models"
)

// DefaultTemperature is the generation model temperature.
const DefaultTemperature = 0.7

// ErrorPrefix starts the text returned in place of a response when
// generation fails.
const ErrorPrefix = "Error generating response: "

type Config struct {
	Model       string
	Temperature float64
}

type ResponseGenerator struct {
	provider llm.Provider
	cfg      Config
}

func NewResponseGenerator(provider llm.Provider, cfg Config) *ResponseGenerator {
	return &ResponseGenerator{provider: provider, cfg: cfg}
}

// BuildPrompt wraps the player's prompt so the model completes the
// scenario's task rather than discussing prompt writing.
func BuildPrompt(improved string, sc models.Scenario) string {
	category := strings.ToLower(sc.Category)
	return fmt.Sprintf(`You are helping with a task in the category: %s

Context: %s

The user has provided this prompt for you to respond to:
"%s"

Please respond to this prompt as if you are completing the original task. Focus on providing a helpful response for the %s task described in the context above.

If the user's prompt is unclear, off-topic, or seems to be describing how to write prompts rather than actually giving you a task, please politely indicate that you need a clearer prompt for the %s task.`,
		sc.Category, sc.Context, improved, category, category)
}

func (g *ResponseGenerator) request(improved string, sc models.Scenario) llm.Request {
	return llm.Request{
		Model:       g.cfg.Model,
		Prompt:      BuildPrompt(improved, sc),
		Temperature: g.cfg.Temperature,
	}
}

// Generate returns the complete response. On failure it returns text
// starting with ErrorPrefix instead of an error.
func (g *ResponseGenerator) Generate(ctx context.Context, improved string, sc models.Scenario) string {
	text, err := g.provider.Complete(ctx, g.request(improved, sc))
	if err != nil {
		logger.FromContext(ctx).WithPrefix("generation").Error("error generating response for scenario %s: %v", sc.ID, err)
		return ErrorPrefix + err.Error()
	}
	return text
}

// Stream yields response chunks in generation order.
func (g *ResponseGenerator) Stream(ctx context.Context, improved string, sc models.Scenario) iter.Seq2[string, error] {
	return g.provider.Stream(ctx, g.request(improved, sc))
}

// GenerateStream forwards each chunk to sink as it arrives, on the calling
// goroutine, and returns the concatenated text. A nil sink falls back to
// Generate. On failure it returns text starting with ErrorPrefix.
func (g *ResponseGenerator) GenerateStream(ctx context.Context, improved string, sc models.Scenario, sink func(chunk string)) string {
	if sink == nil {
		return g.Generate(ctx, improved, sc)
	}

	var sb strings.Builder
	for chunk, err := range g.Stream(ctx, improved, sc) {
		if err != nil {
			logger.FromContext(ctx).WithPrefix("generation").Error("stream failed for scenario %s after %d chars: %v", sc.ID, sb.Len(), err)
			return ErrorPrefix + err.Error()
		}
		sb.WriteString(chunk)
		sink(chunk)
	}
	return sb.String()
}

// Failed reports whether text is a generation error placeholder.
func Failed(text string) bool {
	return strings.HasPrefix(text, ErrorPrefix)
}

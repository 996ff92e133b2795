package models

// Scenario is a pre-authored flawed prompt the player must rewrite. Scenarios
// are loaded once at startup and never mutated.
type Scenario struct {
	ID                   string   `json:"id" yaml:"id"`
	Category             string   `json:"category" yaml:"category"`
	FlawedPrompt         string   `json:"flawed_prompt" yaml:"flawed_prompt"`
	FlawedResponse       string   `json:"flawed_response" yaml:"flawed_response"`
	Context              string   `json:"context" yaml:"context"`
	ExpectedImprovements []string `json:"expected_improvements" yaml:"expected_improvements"`
}

// Package catalog holds the fixed set of flawed-prompt scenarios served to
// players, one per round.
package catalog

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/vytor/promptfix/internal/logger"
	"github.com/vytor/promptfix/internal/models"
)

//go:embed scenarios.yaml
var defaultScenarios []byte

// Catalog is a read-only, ordered set of scenarios. It is safe for
// concurrent use.
type Catalog struct {
	scenarios []models.Scenario
	byID      map[string]int

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithRand replaces the random source used by Random.
func WithRand(r *rand.Rand) Option {
	return func(c *Catalog) {
		c.rng = r
	}
}

// New builds a catalog from scenarios, rejecting invalid or duplicate entries.
func New(scenarios []models.Scenario, opts ...Option) (*Catalog, error) {
	if len(scenarios) == 0 {
		return nil, fmt.Errorf("catalog has no scenarios")
	}
	c := &Catalog{
		scenarios: make([]models.Scenario, 0, len(scenarios)),
		byID:      make(map[string]int, len(scenarios)),
		rng:       rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for i, s := range scenarios {
		if err := validate(s); err != nil {
			return nil, fmt.Errorf("scenario %d: %w", i, err)
		}
		if _, dup := c.byID[s.ID]; dup {
			return nil, fmt.Errorf("scenario %d: duplicate id %q", i, s.ID)
		}
		c.byID[s.ID] = len(c.scenarios)
		c.scenarios = append(c.scenarios, s)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func validate(s models.Scenario) error {
	switch {
	case strings.TrimSpace(s.ID) == "":
		return fmt.Errorf("id is required")
	case strings.TrimSpace(s.Category) == "":
		return fmt.Errorf("category is required for %q", s.ID)
	case strings.TrimSpace(s.FlawedPrompt) == "":
		return fmt.Errorf("bad_prompt is required for %q", s.ID)
	}
	return nil
}

// Random picks a scenario uniformly from those not in excluding. When every
// scenario is excluded it picks from the whole catalog, so it never fails.
func (c *Catalog) Random(excluding map[string]struct{}) models.Scenario {
	candidates := make([]int, 0, len(c.scenarios))
	for i, s := range c.scenarios {
		if _, skip := excluding[s.ID]; !skip {
			candidates = append(candidates, i)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if len(candidates) == 0 {
		if len(excluding) > 0 {
			logger.Warn("no scenarios left after excluding %d, reusing the full catalog", len(excluding))
		}
		return c.scenarios[c.rng.IntN(len(c.scenarios))]
	}
	return c.scenarios[candidates[c.rng.IntN(len(candidates))]]
}

// ByID returns the scenario with the given id.
func (c *Catalog) ByID(id string) (models.Scenario, bool) {
	i, ok := c.byID[id]
	if !ok {
		return models.Scenario{}, false
	}
	return c.scenarios[i], true
}

// ByCategory returns the scenarios in category, compared case-insensitively,
// in catalog order.
func (c *Catalog) ByCategory(category string) []models.Scenario {
	var out []models.Scenario
	for _, s := range c.scenarios {
		if strings.EqualFold(s.Category, category) {
			out = append(out, s)
		}
	}
	return out
}

// Categories returns the distinct categories, sorted.
func (c *Catalog) Categories() []string {
	seen := make(map[string]struct{})
	for _, s := range c.scenarios {
		seen[s.Category] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for cat := range seen {
		out = append(out, cat)
	}
	sort.Strings(out)
	return out
}

// Count returns the number of scenarios.
func (c *Catalog) Count() int {
	return len(c.scenarios)
}

// scenarioFile is the on-disk shape of one catalog entry.
type scenarioFile struct {
	ID                   string   `json:"id" yaml:"id"`
	Category             string   `json:"category" yaml:"category"`
	BadPrompt            string   `json:"bad_prompt" yaml:"bad_prompt"`
	WeakResponse         string   `json:"weak_response" yaml:"weak_response"`
	Context              string   `json:"context" yaml:"context"`
	ExpectedImprovements []string `json:"expected_improvements" yaml:"expected_improvements"`
}

func (f scenarioFile) toModel() models.Scenario {
	return models.Scenario{
		ID:                   f.ID,
		Category:             f.Category,
		FlawedPrompt:         f.BadPrompt,
		FlawedResponse:       f.WeakResponse,
		Context:              f.Context,
		ExpectedImprovements: f.ExpectedImprovements,
	}
}

// Parse decodes a list of scenarios. format is "json" or "yaml".
func Parse(data []byte, format string, opts ...Option) (*Catalog, error) {
	var files []scenarioFile
	switch strings.ToLower(format) {
	case "json":
		if err := json.Unmarshal(data, &files); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	case "yaml", "yml":
		if err := yaml.Unmarshal(data, &files); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported catalog format %q", format)
	}

	scenarios := make([]models.Scenario, 0, len(files))
	for _, f := range files {
		scenarios = append(scenarios, f.toModel())
	}
	return New(scenarios, opts...)
}

// LoadFile reads a catalog from a .json, .yaml or .yml file.
func LoadFile(ctx context.Context, path string, opts ...Option) (*Catalog, error) {
	log := logger.FromContext(ctx).WithPrefix("catalog")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	format := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	c, err := Parse(data, format, opts...)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}

	log.Info("loaded %d scenarios from %s (categories: %s)", c.Count(), path, strings.Join(c.Categories(), ", "))
	return c, nil
}

// Default returns the built-in catalog.
func Default(opts ...Option) *Catalog {
	c, err := Parse(defaultScenarios, "yaml", opts...)
	if err != nil {
		panic(fmt.Sprintf("catalog: built-in scenarios are invalid: %v", err))
	}
	return c
}

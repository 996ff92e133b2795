package catalog_test

import (
	"context"
	"math/rand/v2"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vytor/promptfix/internal/catalog"
	"github.com/vytor/promptfix/internal/models"
)

func fiveScenarios() []models.Scenario {
	return []models.Scenario{
		{ID: "id1", Category: "writing", FlawedPrompt: "p1"},
		{ID: "id2", Category: "writing", FlawedPrompt: "p2"},
		{ID: "id3", Category: "coding", FlawedPrompt: "p3"},
		{ID: "id4", Category: "coding", FlawedPrompt: "p4"},
		{ID: "id5", Category: "Writing", FlawedPrompt: "p5"},
	}
}

func TestRandom_ExcludesUsedIDs(t *testing.T) {
	c, err := catalog.New(fiveScenarios(), catalog.WithRand(rand.New(rand.NewPCG(1, 2))))
	require.NoError(t, err)

	excluding := map[string]struct{}{"id1": {}, "id2": {}, "id3": {}, "id4": {}}
	for i := 0; i < 20; i++ {
		assert.Equal(t, "id5", c.Random(excluding).ID)
	}
}

func TestRandom_FallsBackWhenAllExcluded(t *testing.T) {
	c, err := catalog.New(fiveScenarios())
	require.NoError(t, err)

	all := map[string]struct{}{"id1": {}, "id2": {}, "id3": {}, "id4": {}, "id5": {}}
	for i := 0; i < 20; i++ {
		got := c.Random(all)
		_, ok := c.ByID(got.ID)
		assert.True(t, ok, "fallback should return a catalog scenario")
	}
}

func TestByIDAndCategories(t *testing.T) {
	c, err := catalog.New(fiveScenarios())
	require.NoError(t, err)

	s, ok := c.ByID("id3")
	require.True(t, ok)
	assert.Equal(t, "p3", s.FlawedPrompt)

	_, ok = c.ByID("missing")
	assert.False(t, ok)

	assert.Equal(t, 5, c.Count())
	assert.Equal(t, []string{"Writing", "coding", "writing"}, c.Categories())
	assert.Len(t, c.ByCategory("WRITING"), 3)
}

func TestNew_Validation(t *testing.T) {
	_, err := catalog.New(nil)
	assert.Error(t, err)

	_, err = catalog.New([]models.Scenario{{ID: "a", Category: "x"}})
	assert.Error(t, err, "missing prompt")

	_, err = catalog.New([]models.Scenario{
		{ID: "a", Category: "x", FlawedPrompt: "p"},
		{ID: "a", Category: "y", FlawedPrompt: "q"},
	})
	assert.ErrorContains(t, err, "duplicate id")
}

func TestLoadFile_JSONAndYAML(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "bad_prompts.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[
		{"id":"j1","category":"writing","bad_prompt":"Write.","weak_response":"Ok.","context":"blog","expected_improvements":["audience"]}
	]`), 0o644))

	yamlPath := filepath.Join(dir, "bad_prompts.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
- id: y1
  category: coding
  bad_prompt: Fix it.
  context: python
`), 0o644))

	jc, err := catalog.LoadFile(context.Background(), jsonPath)
	require.NoError(t, err)
	s, ok := jc.ByID("j1")
	require.True(t, ok)
	assert.Equal(t, "Write.", s.FlawedPrompt)
	assert.Equal(t, "Ok.", s.FlawedResponse)
	assert.Equal(t, []string{"audience"}, s.ExpectedImprovements)

	yc, err := catalog.LoadFile(context.Background(), yamlPath)
	require.NoError(t, err)
	assert.Equal(t, []string{"coding"}, yc.Categories())

	_, err = catalog.LoadFile(context.Background(), filepath.Join(dir, "nope.txt"))
	assert.Error(t, err)
}

func TestDefault(t *testing.T) {
	c := catalog.Default()
	assert.GreaterOrEqual(t, c.Count(), 5)
	assert.Contains(t, c.Categories(), "writing")
	assert.Contains(t, c.Categories(), "coding")
}

package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdouB/adaptive/internal/models"
)

func mappingPanel() models.ComponentConfig {
	return models.ComponentConfig{
		ID:       "mapping-panel",
		Category: "ingest",
		SurfaceWhen: []models.Condition{
			{Type: models.ConditionIntent, Operator: models.OpIn, Value: []any{"column mapping", "map columns"}},
		},
	}
}

func TestDetectIntentsRanksDeclaredPhrases(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.RegisterComponent(validationGrid()))
	require.NoError(t, r.RegisterComponent(mappingPanel()))
	register(t, r, "plain-card")

	assert.Empty(t, r.DetectIntents(), "no intent yet")

	r.SetIntent("show me the validation errors")
	matches := r.DetectIntents()
	require.Len(t, matches, 1)
	assert.Equal(t, "validation-grid", matches[0].Key)
	assert.Equal(t, "validation errors", matches[0].Phrase)
	assert.InDelta(t, 1.0, matches[0].Score, 1e-9)
	assert.Equal(t, []int{12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 23, 24, 25, 26, 27, 28}, matches[0].Highlights)

	r.SetIntent("map columns please")
	matches = r.DetectIntents()
	require.Len(t, matches, 1)
	assert.Equal(t, "mapping-panel", matches[0].Key)
	assert.Equal(t, "map columns", matches[0].Phrase, "later phrases of an in list act as synonyms")
	assert.InDelta(t, 0.9, matches[0].Score, 1e-9)

	r.SetIntent("what's the weather")
	assert.Empty(t, r.DetectIntents())
}

func TestDetectIntentsListsEachComponentOnce(t *testing.T) {
	r, _ := newTestRegistry(t)
	cfg := validationGrid()
	cfg.ForceShowWhen = append(cfg.ForceShowWhen, models.Condition{
		Type: models.ConditionIntent, Operator: models.OpMatches, Value: "errors",
	})
	require.NoError(t, r.RegisterComponent(cfg))

	r.SetIntent("validation errors")
	matches := r.DetectIntents()
	require.Len(t, matches, 1)
	assert.Equal(t, "validation errors", matches[0].Phrase)
}

func TestIntentCandidatesSkipOtherConditions(t *testing.T) {
	candidates := intentCandidates(validationGrid())
	require.Len(t, candidates, 1)
	assert.Equal(t, "validation-grid", candidates[0].Key)
	assert.Equal(t, "validation errors", candidates[0].Phrase)

	candidates = intentCandidates(mappingPanel())
	require.Len(t, candidates, 1)
	assert.Equal(t, "column mapping", candidates[0].Phrase)
	assert.Equal(t, []string{"map columns"}, candidates[0].Synonyms)
}

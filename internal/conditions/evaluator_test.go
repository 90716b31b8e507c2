package conditions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdouB/adaptive/internal/models"
)

func newTestEvaluator(t *testing.T) *Evaluator {
	t.Helper()
	e, err := NewEvaluator()
	require.NoError(t, err)
	return e
}

func testSnapshot() Snapshot {
	progress := 40
	ctx := models.DefaultSessionContext()
	ctx.Urgency = models.UrgencyHigh
	ctx.Preferences = map[string]any{"theme": "dark"}
	return Snapshot{
		Context: ctx,
		Status:  models.SystemStatus{Status: models.StatusProcessing, Progress: &progress},
		Data:    map[string]any{"errors": 3, "source": map[string]any{"format": "csv"}, "tags": []any{"pii", "finance"}},
		Intent:  "show me the validation errors",
	}
}

func weight(w float64) *float64 { return &w }

func TestEvaluateFieldConditions(t *testing.T) {
	e := newTestEvaluator(t)
	snap := testSnapshot()

	cases := []struct {
		name string
		cond models.Condition
		want bool
	}{
		{"role equals", models.Condition{Type: models.ConditionContext, Operator: models.OpEquals, Field: "role", Value: "analyst"}, true},
		{"urgency level", models.Condition{Type: models.ConditionContext, Operator: models.OpGreaterThan, Field: "urgency_level", Value: 1}, true},
		{"nested preference", models.Condition{Type: models.ConditionContext, Operator: models.OpEquals, Field: "preferences.theme", Value: "dark"}, true},
		{"missing field not equals", models.Condition{Type: models.ConditionContext, Operator: models.OpNotEquals, Field: "preferences.lang", Value: "en"}, true},
		{"data greater than", models.Condition{Type: models.ConditionData, Operator: models.OpGreaterThan, Field: "errors", Value: 0}, true},
		{"data less than", models.Condition{Type: models.ConditionData, Operator: models.OpLessThan, Field: "errors", Value: 2}, false},
		{"data nested in", models.Condition{Type: models.ConditionData, Operator: models.OpIn, Field: "source.format", Value: []any{"csv", "xlsx"}}, true},
		{"data slice contains", models.Condition{Type: models.ConditionData, Operator: models.OpContains, Field: "tags", Value: "pii"}, true},
		{"data exists", models.Condition{Type: models.ConditionData, Operator: models.OpExists, Field: "mapping"}, false},
		{"data not exists", models.Condition{Type: models.ConditionData, Operator: models.OpExists, Field: "mapping", Value: false}, true},
		{"system status", models.Condition{Type: models.ConditionSystem, Operator: models.OpEquals, Field: "status", Value: "processing"}, true},
		{"system progress", models.Condition{Type: models.ConditionSystem, Operator: models.OpLessThan, Field: "progress", Value: 50}, true},
		{"regexp", models.Condition{Type: models.ConditionContext, Operator: models.OpMatches, Field: "device", Value: "^desk"}, true},
		{"intent fuzzy", models.Condition{Type: models.ConditionIntent, Operator: models.OpMatches, Value: "validation errors"}, true},
		{"intent any of", models.Condition{Type: models.ConditionIntent, Operator: models.OpIn, Value: []any{"column mapping", "validation errors"}}, true},
		{"intent contains", models.Condition{Type: models.ConditionIntent, Operator: models.OpContains, Value: "upload"}, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Evaluate(tc.cond, snap)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateExpression(t *testing.T) {
	e := newTestEvaluator(t)
	snap := testSnapshot()

	ok, err := e.Evaluate(models.Condition{
		Type:  models.ConditionExpression,
		Value: `context.urgency_level >= 2 && data.errors > 0 && intent.contains("errors")`,
	}, snap)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = e.Evaluate(models.Condition{Type: models.ConditionExpression, Value: `context.role +`}, snap)
	assert.Error(t, err)

	_, err = e.Evaluate(models.Condition{Type: models.ConditionExpression, Value: `context.role`}, snap)
	assert.Error(t, err, "non-boolean result must be rejected")
}

func TestEvaluateRejectsUnknownTypesAndOperators(t *testing.T) {
	e := newTestEvaluator(t)

	_, err := e.Evaluate(models.Condition{Type: "weather"}, testSnapshot())
	assert.ErrorIs(t, err, ErrUnknownConditionType)

	_, err = e.Evaluate(models.Condition{Type: models.ConditionContext, Operator: "roughly", Field: "role"}, testSnapshot())
	assert.ErrorIs(t, err, ErrUnknownOperator)
}

func TestScoreComponentWeightsConditions(t *testing.T) {
	e := newTestEvaluator(t)
	cfg := models.ComponentConfig{
		ID: "validation-grid",
		SurfaceWhen: []models.Condition{
			{Type: models.ConditionData, Operator: models.OpGreaterThan, Field: "errors", Value: 0, Weight: weight(3)},
			{Type: models.ConditionContext, Operator: models.OpEquals, Field: "role", Value: "admin"},
		},
		DissolveWhen: []models.Condition{
			{Type: models.ConditionSystem, Operator: models.OpEquals, Field: "status", Value: "idle"},
		},
		ForceShowWhen: []models.Condition{
			{Type: models.ConditionContext, Operator: models.OpEquals, Field: "urgency", Value: "critical"},
			{Type: "bogus"},
		},
	}

	s := e.ScoreComponent(cfg, testSnapshot())
	assert.InDelta(t, 0.75, s.Surface, 1e-9)
	assert.Zero(t, s.Dissolve)
	assert.False(t, s.Forced)
	require.Len(t, s.Errors, 1)
	assert.ErrorIs(t, s.Errors[0], ErrUnknownConditionType)
}

func TestMissingIntentBehavesLikeMissingField(t *testing.T) {
	e := newTestEvaluator(t)
	snap := testSnapshot()
	snap.Intent = ""

	cases := []struct {
		name string
		cond models.Condition
		want bool
	}{
		{"not equals", models.Condition{Type: models.ConditionIntent, Operator: models.OpNotEquals, Value: "upload"}, true},
		{"exists", models.Condition{Type: models.ConditionIntent, Operator: models.OpExists}, false},
		{"exists false", models.Condition{Type: models.ConditionIntent, Operator: models.OpExists, Value: false}, true},
		{"matches", models.Condition{Type: models.ConditionIntent, Operator: models.OpMatches, Value: "validation errors"}, false},
		{"in", models.Condition{Type: models.ConditionIntent, Operator: models.OpIn, Value: []any{"upload file"}}, false},
		{"equals", models.Condition{Type: models.ConditionIntent, Operator: models.OpEquals, Value: ""}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := e.Evaluate(tc.cond, snap)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	_, err := e.Evaluate(models.Condition{Type: models.ConditionIntent, Operator: "sounds_like"}, snap)
	assert.ErrorIs(t, err, ErrUnknownOperator)
}

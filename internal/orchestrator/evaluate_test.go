package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AbdouB/adaptive/internal/models"
)

func validationGrid() models.ComponentConfig {
	return models.ComponentConfig{
		ID:          "validation-grid",
		DisplayName: "Validation Grid",
		Category:    "data",
		Priority:    10,
		SurfaceWhen: []models.Condition{
			{Type: models.ConditionData, Operator: models.OpGreaterThan, Field: "errors", Value: 0},
			{Type: models.ConditionIntent, Operator: models.OpMatches, Value: "validation errors"},
		},
		DissolveWhen: []models.Condition{
			{Type: models.ConditionData, Operator: models.OpEquals, Field: "errors", Value: 0},
		},
		ForceShowWhen: []models.Condition{
			{Type: models.ConditionContext, Operator: models.OpEquals, Field: "urgency", Value: "critical"},
		},
	}
}

func findEvaluation(t *testing.T, results []Evaluation, id string) Evaluation {
	t.Helper()
	for _, ev := range results {
		if ev.ComponentID == id {
			return ev
		}
	}
	t.Fatalf("no evaluation for %s", id)
	return Evaluation{}
}

func TestEvaluateAllSurfacesOnScore(t *testing.T) {
	r, sched := newTestRegistry(t)
	require.NoError(t, r.RegisterComponent(validationGrid()))
	register(t, r, "plain-card")

	r.SetData("errors", 4)
	results := r.EvaluateAll()
	require.Len(t, results, 1, "components without conditions are skipped")

	ev := results[0]
	assert.Equal(t, ActionSurface, ev.Action)
	assert.InDelta(t, 0.5, ev.SurfaceScore, 1e-9)
	assert.Equal(t, models.PhaseWarming, mustGet(t, r, "validation-grid").Phase)

	sched.Advance(150 * time.Millisecond)
	results = r.EvaluateAll()
	assert.Equal(t, ActionNone, results[0].Action, "already visible components are not re-surfaced")

	events := r.Events()
	last := events[len(events)-1]
	assert.Equal(t, "evaluate_all", last.Details["action"])
}

func TestEvaluateAllDissolvesWhenRulesSayHide(t *testing.T) {
	r, sched := newTestRegistry(t)
	require.NoError(t, r.RegisterComponent(validationGrid()))
	r.Surface("validation-grid", "")
	sched.Advance(150 * time.Millisecond)

	r.SetData("errors", 0)
	ev := findEvaluation(t, r.EvaluateAll(), "validation-grid")
	assert.Equal(t, ActionDissolve, ev.Action)
	assert.Equal(t, models.PhaseDissolving, mustGet(t, r, "validation-grid").Phase)
}

func TestForceShowWinsOverDissolve(t *testing.T) {
	r, _ := newTestRegistry(t)
	require.NoError(t, r.RegisterComponent(validationGrid()))
	r.Dissolve("validation-grid")

	r.SetData("errors", 0)
	r.SetContext(models.ContextUpdate{Urgency: models.UrgencyPtr(models.UrgencyCritical)})

	ev := findEvaluation(t, r.EvaluateAll(), "validation-grid")
	assert.True(t, ev.Forced)
	assert.Equal(t, ActionSurface, ev.Action)
	assert.Equal(t, models.PhaseWarming, mustGet(t, r, "validation-grid").Phase)

	events := r.Events()
	var reasons []any
	for _, e := range events {
		if e.EventType == models.EventPhaseTransition {
			reasons = append(reasons, e.Details["reason"])
		}
	}
	assert.Contains(t, reasons, "evaluate: force show")
}

func TestEvaluateAllOrdersByPriorityAndReportsErrors(t *testing.T) {
	r, _ := newTestRegistry(t)
	broken := models.ComponentConfig{
		ID:          "broken",
		Priority:    1,
		SurfaceWhen: []models.Condition{{Type: models.ConditionExpression, Value: "data.errors >"}},
	}
	require.NoError(t, r.RegisterComponent(broken))
	require.NoError(t, r.RegisterComponent(validationGrid()))

	results := r.EvaluateAll()
	require.Len(t, results, 2)
	assert.Equal(t, "validation-grid", results[0].ComponentID)
	assert.Equal(t, "broken", results[1].ComponentID)
	assert.NotEmpty(t, results[1].Errors)
	assert.Equal(t, ActionNone, results[1].Action)
}

func TestEvaluateAllReactsToIntent(t *testing.T) {
	r, _ := newTestRegistry(t, WithConfig(Config{SurfaceThreshold: 0.4}))
	require.NoError(t, r.RegisterComponent(validationGrid()))

	r.SetIntent("can you show me the validation errors?")
	ev := findEvaluation(t, r.EvaluateAll(), "validation-grid")
	assert.InDelta(t, 0.5, ev.SurfaceScore, 1e-9)
	assert.Equal(t, ActionSurface, ev.Action)
}

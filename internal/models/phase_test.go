package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDerivedValuesArePureFunctionsOfPhase(t *testing.T) {
	cases := []struct {
		phase       Phase
		opacity     float64
		relevance   float64
		visible     bool
		interactive bool
		focused     bool
	}{
		{PhaseDormant, 0, 0, false, false, false},
		{PhaseWarming, 0.3, 0, true, false, false},
		{PhaseSurfaced, 1, 0.8, true, true, false},
		{PhaseFocused, 1, 1, true, true, true},
		{PhaseDissolving, 0.5, 0, true, true, false},
	}

	for _, tc := range cases {
		t.Run(string(tc.phase), func(t *testing.T) {
			for i := 0; i < 3; i++ {
				assert.Equal(t, tc.opacity, Opacity(tc.phase))
				assert.Equal(t, tc.relevance, RelevanceScore(tc.phase))
				assert.Equal(t, tc.visible, IsVisible(tc.phase))
				assert.Equal(t, tc.interactive, IsInteractive(tc.phase))
				assert.Equal(t, tc.focused, IsFocused(tc.phase))
			}
			state := NewComponentPhaseState("c", tc.phase, TransitionNone, false, time.Time{})
			assert.Equal(t, tc.opacity, state.Opacity)
			assert.Equal(t, tc.visible, state.IsVisible())
		})
	}
}

func TestAnimationDurationBudgets(t *testing.T) {
	assert.Equal(t, 150*time.Millisecond, DurationFast.Duration())
	assert.Equal(t, 300*time.Millisecond, DurationNormal.Duration())
	assert.Equal(t, 500*time.Millisecond, DurationSlow.Duration())
	assert.Equal(t, 800*time.Millisecond, DurationVerySlow.Duration())
	assert.Equal(t, 150*time.Millisecond, DurationNormal.Half())
	assert.Equal(t, 300*time.Millisecond, AnimationDuration("bogus").Duration())
}

func TestPhaseValid(t *testing.T) {
	for _, p := range AllPhases {
		assert.True(t, p.Valid())
	}
	assert.False(t, Phase("hovering").Valid())
}

func TestSessionContextMergeIsShallowAndCopyOnWrite(t *testing.T) {
	base := SessionContext{Role: "analyst", Urgency: UrgencyNormal, Preferences: map[string]any{"theme": "dark"}}

	merged := base.Merge(ContextUpdate{Urgency: UrgencyPtr(UrgencyCritical)})
	assert.Equal(t, "analyst", merged.Role)
	assert.Equal(t, UrgencyCritical, merged.Urgency)
	assert.Equal(t, UrgencyNormal, base.Urgency)

	merged.Preferences["theme"] = "light"
	assert.Equal(t, "dark", base.Preferences["theme"])

	replaced := base.Merge(ContextUpdate{Preferences: map[string]any{"density": "compact"}})
	assert.Equal(t, map[string]any{"density": "compact"}, replaced.Preferences)
}

func TestContextUpdateFields(t *testing.T) {
	u := ContextUpdate{Urgency: UrgencyPtr(UrgencyCritical)}
	assert.Equal(t, map[string]any{"urgency": "critical"}, u.Fields())
	assert.False(t, u.Empty())
	assert.True(t, ContextUpdate{}.Empty())
}

func TestAppendHistoryIsBounded(t *testing.T) {
	ctx := DefaultSessionContext()
	for i := 0; i < 5; i++ {
		ctx = ctx.AppendHistory(NewInteractionEvent("click", "card", ""), 3)
	}
	assert.Len(t, ctx.History, 3)
}

func TestForensicEventHashChain(t *testing.T) {
	first := NewForensicEvent("s1", EventSystem, "", map[string]any{"action": "start"})
	sealed, err := first.Sealed("")
	require.NoError(t, err)
	require.NotEmpty(t, sealed.AuditHash)

	again, err := sealed.ComputeHash("")
	require.NoError(t, err)
	assert.Equal(t, sealed.AuditHash, again, "hash must ignore the stored hash field")

	other, err := first.ComputeHash("different-prev")
	require.NoError(t, err)
	assert.NotEqual(t, sealed.AuditHash, other)
}

func TestSystemStatusValidate(t *testing.T) {
	progress := 120
	assert.NoError(t, SystemStatus{Status: StatusThinking}.Validate())
	assert.Error(t, SystemStatus{Status: "sleeping"}.Validate())
	assert.Error(t, SystemStatus{Status: StatusProcessing, Progress: &progress}.Validate())
}

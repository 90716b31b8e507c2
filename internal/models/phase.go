package models

import "time"

// Phase is a lifecycle stage of a visual element
type Phase string

const (
	PhaseDormant    Phase = "dormant"    // Hidden, initial and at-rest state
	PhaseWarming    Phase = "warming"    // Fading in on the way to surfaced
	PhaseSurfaced   Phase = "surfaced"   // Fully visible
	PhaseFocused    Phase = "focused"    // Visible and holding user attention
	PhaseDissolving Phase = "dissolving" // Fading out, still interactive
)

// AllPhases lists the phases in nominal forward order
var AllPhases = []Phase{PhaseDormant, PhaseWarming, PhaseSurfaced, PhaseFocused, PhaseDissolving}

// Valid reports whether p is one of the five known phases
func (p Phase) Valid() bool {
	switch p {
	case PhaseDormant, PhaseWarming, PhaseSurfaced, PhaseFocused, PhaseDissolving:
		return true
	}
	return false
}

// Transition is a named edge between phases.
// TransitionNone marks a direct assignment with no animation choreography.
type Transition string

const (
	TransitionNone      Transition = ""
	TransitionSurface   Transition = "surface"
	TransitionFocus     Transition = "focus"
	TransitionBlur      Transition = "blur"
	TransitionDissolve  Transition = "dissolve"
	TransitionHibernate Transition = "hibernate"
)

// AnimationDuration selects one of the fixed animation budgets
type AnimationDuration string

const (
	DurationFast     AnimationDuration = "fast"
	DurationNormal   AnimationDuration = "normal"
	DurationSlow     AnimationDuration = "slow"
	DurationVerySlow AnimationDuration = "very-slow"
)

// Milliseconds returns the budget in milliseconds. Unknown values fall back to normal.
func (d AnimationDuration) Milliseconds() int {
	switch d {
	case DurationFast:
		return 150
	case DurationSlow:
		return 500
	case DurationVerySlow:
		return 800
	default:
		return 300
	}
}

// Duration returns the full animation budget
func (d AnimationDuration) Duration() time.Duration {
	return time.Duration(d.Milliseconds()) * time.Millisecond
}

// Half returns the warming hop delay
func (d AnimationDuration) Half() time.Duration {
	return d.Duration() / 2
}

// Opacity derives the rendered opacity of a phase
func Opacity(p Phase) float64 {
	switch p {
	case PhaseWarming:
		return 0.3
	case PhaseSurfaced, PhaseFocused:
		return 1
	case PhaseDissolving:
		return 0.5
	default:
		return 0
	}
}

// RelevanceScore derives the priority of a phase (focused=1, surfaced=0.8)
func RelevanceScore(p Phase) float64 {
	switch p {
	case PhaseFocused:
		return 1
	case PhaseSurfaced:
		return 0.8
	default:
		return 0
	}
}

// IsVisible is true for every phase except dormant
func IsVisible(p Phase) bool {
	return p != PhaseDormant
}

// IsInteractive is true while surfaced, focused or dissolving
func IsInteractive(p Phase) bool {
	return p == PhaseSurfaced || p == PhaseFocused || p == PhaseDissolving
}

// IsFocused is true only in the focused phase
func IsFocused(p Phase) bool {
	return p == PhaseFocused
}

package models

import "time"

// ComponentConfig is the registration contract of an adaptive component
type ComponentConfig struct {
	ID                string      `json:"id" yaml:"id"`
	DisplayName       string      `json:"display_name" yaml:"display_name"`
	Category          string      `json:"category" yaml:"category"`
	Description       string      `json:"description,omitempty" yaml:"description,omitempty"`
	SurfaceWhen       []Condition `json:"surface_when,omitempty" yaml:"surface_when,omitempty"`
	DissolveWhen      []Condition `json:"dissolve_when,omitempty" yaml:"dissolve_when,omitempty"`
	ForceShowWhen     []Condition `json:"force_show_when,omitempty" yaml:"force_show_when,omitempty"`
	Priority          int         `json:"priority,omitempty" yaml:"priority,omitempty"`
	DataSubscriptions []string    `json:"data_subscriptions,omitempty" yaml:"data_subscriptions,omitempty"`

	// Animation and auto-surface are per-component machine settings
	Duration         AnimationDuration `json:"duration,omitempty" yaml:"duration,omitempty"`
	AutoSurface      bool              `json:"auto_surface,omitempty" yaml:"auto_surface,omitempty"`
	AutoSurfaceDelay time.Duration     `json:"auto_surface_delay,omitempty" yaml:"auto_surface_delay,omitempty"`
}

// HasConditions reports whether the component declares any rule for EvaluateAll
func (c *ComponentConfig) HasConditions() bool {
	return len(c.SurfaceWhen) > 0 || len(c.DissolveWhen) > 0 || len(c.ForceShowWhen) > 0
}

// ComponentPhaseState is a read-only snapshot of one component's lifecycle.
// Opacity and RelevanceScore are always computed from Phase when the snapshot is taken.
type ComponentPhaseState struct {
	ID                  string     `json:"id"`
	Phase               Phase      `json:"phase"`
	Opacity             float64    `json:"opacity"`
	RelevanceScore      float64    `json:"relevance_score"`
	LastTransition      Transition `json:"last_transition,omitempty"`
	HasTransitioned     bool       `json:"-"`
	TransitionTimestamp time.Time  `json:"transition_timestamp"`
}

// NewComponentPhaseState builds a snapshot for the given phase
func NewComponentPhaseState(id string, phase Phase, last Transition, transitioned bool, at time.Time) ComponentPhaseState {
	return ComponentPhaseState{
		ID:                  id,
		Phase:               phase,
		Opacity:             Opacity(phase),
		RelevanceScore:      RelevanceScore(phase),
		LastTransition:      last,
		HasTransitioned:     transitioned,
		TransitionTimestamp: at,
	}
}

// IsVisible reports whether the snapshot phase is visible
func (s ComponentPhaseState) IsVisible() bool { return IsVisible(s.Phase) }

// IsInteractive reports whether the snapshot phase accepts input
func (s ComponentPhaseState) IsInteractive() bool { return IsInteractive(s.Phase) }

// IsFocused reports whether the snapshot phase is focused
func (s ComponentPhaseState) IsFocused() bool { return IsFocused(s.Phase) }

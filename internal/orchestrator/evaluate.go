package orchestrator

import (
	"sort"

	"github.com/AbdouB/adaptive/internal/conditions"
	"github.com/AbdouB/adaptive/internal/models"
)

// Action is the decision EvaluateAll took for one component
type Action string

const (
	ActionNone     Action = "none"
	ActionSurface  Action = "surface"
	ActionDissolve Action = "dissolve"
)

// Evaluation is the outcome for one component with declared conditions
type Evaluation struct {
	ComponentID   string       `json:"component_id"`
	Priority      int          `json:"priority"`
	PhaseBefore   models.Phase `json:"phase_before"`
	SurfaceScore  float64      `json:"surface_score"`
	DissolveScore float64      `json:"dissolve_score"`
	Forced        bool         `json:"forced"`
	Action        Action       `json:"action"`
	Errors        []string     `json:"errors,omitempty"`
}

// EvaluateAll re-scores every component that declares conditions against the
// current snapshot and surfaces or dissolves it when a threshold is crossed.
// Components are visited by priority (highest first), then id. A satisfied
// forceShowWhen always wins over a computed dissolve.
func (r *Registry) EvaluateAll() []Evaluation {
	r.lockOpen()
	snap := conditions.Snapshot{
		Context: r.context.Clone(),
		Status:  r.status,
		Data:    r.data,
		Intent:  r.intent,
	}
	type target struct {
		config models.ComponentConfig
		phase  func() models.Phase
	}
	var targets []target
	for _, c := range r.components {
		if c.config.HasConditions() {
			targets = append(targets, target{config: c.config, phase: c.machine.Phase})
		}
	}
	surfaceThreshold, dissolveThreshold := r.cfg.SurfaceThreshold, r.cfg.DissolveThreshold
	r.mu.Unlock()

	sort.Slice(targets, func(i, j int) bool {
		if targets[i].config.Priority != targets[j].config.Priority {
			return targets[i].config.Priority > targets[j].config.Priority
		}
		return targets[i].config.ID < targets[j].config.ID
	})

	results := make([]Evaluation, 0, len(targets))
	var surfaced, dissolved []string

	for _, t := range targets {
		score := r.evaluator.ScoreComponent(t.config, snap)
		current := t.phase()
		ev := Evaluation{
			ComponentID:   t.config.ID,
			Priority:      t.config.Priority,
			PhaseBefore:   current,
			SurfaceScore:  score.Surface,
			DissolveScore: score.Dissolve,
			Forced:        score.Forced,
			Action:        decide(t.config, score, current, surfaceThreshold, dissolveThreshold),
		}
		for _, err := range score.Errors {
			ev.Errors = append(ev.Errors, err.Error())
			r.metrics.EvalErrors.Inc()
			r.logger.Warnf("Condition error: %v", err)
		}

		switch ev.Action {
		case ActionSurface:
			reason := "evaluate: surface score"
			if score.Forced {
				reason = "evaluate: force show"
			}
			if r.Surface(t.config.ID, reason) {
				surfaced = append(surfaced, t.config.ID)
			}
		case ActionDissolve:
			if r.Dissolve(t.config.ID) {
				dissolved = append(dissolved, t.config.ID)
			}
		}
		results = append(results, ev)
	}

	r.metrics.Evaluations.Inc()
	r.lockOpen()
	r.appendLocked(models.EventSystem, "", map[string]any{
		"action":    "evaluate_all",
		"evaluated": len(results),
		"surfaced":  surfaced,
		"dissolved": dissolved,
	})
	r.mu.Unlock()
	r.flush()

	return results
}

// decide promotes hidden or fading components and demotes visible ones.
// A warming component is already on its way up and is left alone.
func decide(cfg models.ComponentConfig, s conditions.Score, current models.Phase, surfaceThreshold, dissolveThreshold float64) Action {
	hidden := current == models.PhaseDormant || current == models.PhaseDissolving
	shown := current == models.PhaseSurfaced || current == models.PhaseFocused

	if s.Forced {
		if hidden {
			return ActionSurface
		}
		return ActionNone
	}
	if len(cfg.SurfaceWhen) > 0 && s.Surface >= surfaceThreshold {
		if hidden {
			return ActionSurface
		}
		return ActionNone
	}
	if len(cfg.DissolveWhen) > 0 && s.Dissolve >= dissolveThreshold && shown {
		return ActionDissolve
	}
	return ActionNone
}

package conditions

import (
	"fmt"

	"github.com/AbdouB/adaptive/internal/models"
)

// Score is the weighted outcome of one component's rules
type Score struct {
	Surface  float64 // Weighted share of satisfied surfaceWhen conditions, 0..1
	Dissolve float64 // Weighted share of satisfied dissolveWhen conditions, 0..1
	Forced   bool    // Any forceShowWhen condition holds
	Errors   []error // Conditions that could not be evaluated count as not satisfied
}

// ScoreComponent evaluates every declared condition of cfg
func (e *Evaluator) ScoreComponent(cfg models.ComponentConfig, snap Snapshot) Score {
	var s Score
	s.Surface = e.weighted(cfg.ID, "surface_when", cfg.SurfaceWhen, snap, &s.Errors)
	s.Dissolve = e.weighted(cfg.ID, "dissolve_when", cfg.DissolveWhen, snap, &s.Errors)
	for i, c := range cfg.ForceShowWhen {
		ok, err := e.Evaluate(c, snap)
		if err != nil {
			s.Errors = append(s.Errors, fmt.Errorf("%s force_show_when[%d]: %w", cfg.ID, i, err))
			continue
		}
		if ok {
			s.Forced = true
		}
	}
	return s
}

func (e *Evaluator) weighted(id, group string, conds []models.Condition, snap Snapshot, errs *[]error) float64 {
	var total, satisfied float64
	for i, c := range conds {
		w := c.EffectiveWeight()
		if w <= 0 {
			continue
		}
		total += w
		ok, err := e.Evaluate(c, snap)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("%s %s[%d]: %w", id, group, i, err))
			continue
		}
		if ok {
			satisfied += w
		}
	}
	if total == 0 {
		return 0
	}
	return satisfied / total
}

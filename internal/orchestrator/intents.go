package orchestrator

import (
	"fmt"
	"sort"

	"github.com/AbdouB/adaptive/internal/intent"
	"github.com/AbdouB/adaptive/internal/models"
)

// DetectIntents ranks the intent phrases declared by registered components against
// the current intent text. Each component appears at most once, under its best
// phrase. Matches below the evaluator's intent threshold are left out.
func (r *Registry) DetectIntents() []intent.Match {
	r.lockOpen()
	text := r.intent
	configs := make([]models.ComponentConfig, 0, len(r.components))
	for _, c := range r.components {
		configs = append(configs, c.config)
	}
	threshold := r.evaluator.IntentThreshold
	r.mu.Unlock()

	if text == "" {
		return nil
	}
	sort.Slice(configs, func(i, j int) bool { return configs[i].ID < configs[j].ID })

	var candidates []intent.Candidate
	for _, cfg := range configs {
		candidates = append(candidates, intentCandidates(cfg)...)
	}

	seen := make(map[string]bool)
	var out []intent.Match
	for _, m := range intent.Rank(text, candidates, threshold) {
		if seen[m.Key] {
			continue
		}
		seen[m.Key] = true
		out = append(out, m)
	}
	return out
}

// intentCandidates turns a component's intent conditions into rankable phrases.
// "matches" contributes its value; "in" contributes its first phrase with the
// rest as synonyms.
func intentCandidates(cfg models.ComponentConfig) []intent.Candidate {
	var out []intent.Candidate
	conds := append(append([]models.Condition{}, cfg.SurfaceWhen...), cfg.ForceShowWhen...)
	for _, c := range conds {
		if c.Type != models.ConditionIntent {
			continue
		}
		switch c.Operator {
		case models.OpMatches:
			if c.Value == nil {
				continue
			}
			out = append(out, intent.Candidate{Key: cfg.ID, Phrase: fmt.Sprint(c.Value)})
		case models.OpIn:
			phrases := phraseList(c.Value)
			if len(phrases) == 0 {
				continue
			}
			out = append(out, intent.Candidate{Key: cfg.ID, Phrase: phrases[0], Synonyms: phrases[1:]})
		}
	}
	return out
}

func phraseList(v any) []string {
	switch vs := v.(type) {
	case []string:
		return vs
	case []any:
		out := make([]string, 0, len(vs))
		for _, p := range vs {
			out = append(out, fmt.Sprint(p))
		}
		return out
	case nil:
		return nil
	default:
		return []string{fmt.Sprint(vs)}
	}
}

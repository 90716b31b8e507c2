package conditions

import (
	"strings"

	"github.com/AbdouB/adaptive/internal/models"
)

// Snapshot is the read-only state conditions are evaluated against
type Snapshot struct {
	Context models.SessionContext
	Status  models.SystemStatus
	Data    map[string]any
	Intent  string
}

// UrgencyLevel ranks urgency so it can be compared numerically
func UrgencyLevel(u models.Urgency) int {
	switch u {
	case models.UrgencyLow:
		return 0
	case models.UrgencyHigh:
		return 2
	case models.UrgencyCritical:
		return 3
	default:
		return 1
	}
}

func (s Snapshot) contextMap() map[string]any {
	prefs := map[string]any{}
	for k, v := range s.Context.Preferences {
		prefs[k] = v
	}
	return map[string]any{
		"role":           s.Context.Role,
		"urgency":        string(s.Context.Urgency),
		"urgency_level":  UrgencyLevel(s.Context.Urgency),
		"device":         string(s.Context.Device),
		"forensic_mode":  s.Context.ForensicMode,
		"preferences":    prefs,
		"history_length": len(s.Context.History),
	}
}

func (s Snapshot) statusMap() map[string]any {
	out := map[string]any{
		"status":  string(s.Status.Status),
		"message": s.Status.Message,
	}
	if s.Status.Progress != nil {
		out["progress"] = *s.Status.Progress
	}
	if s.Status.Step != nil {
		out["step"] = *s.Status.Step
	}
	if s.Status.TotalSteps != nil {
		out["total_steps"] = *s.Status.TotalSteps
	}
	return out
}

func (s Snapshot) dataMap() map[string]any {
	if s.Data == nil {
		return map[string]any{}
	}
	return s.Data
}

// lookup resolves a dotted path ("preferences.theme") inside nested maps
func lookup(root map[string]any, path string) (any, bool) {
	var current any = root
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

package models

// ConditionType selects which part of the evaluation snapshot a condition reads
type ConditionType string

const (
	ConditionContext    ConditionType = "context"    // Session context fields (role, urgency, preferences.*)
	ConditionData       ConditionType = "data"       // Data state published via SetData
	ConditionIntent     ConditionType = "intent"     // Free-text intent detected from chat input
	ConditionSystem     ConditionType = "system"     // System status (status, progress, step)
	ConditionExpression ConditionType = "expression" // CEL expression over the whole snapshot
)

// Operator compares a field against a condition value
type Operator string

const (
	OpEquals      Operator = "equals"
	OpNotEquals   Operator = "not_equals"
	OpGreaterThan Operator = "greater_than"
	OpLessThan    Operator = "less_than"
	OpContains    Operator = "contains"
	OpIn          Operator = "in"
	OpExists      Operator = "exists"
	OpMatches     Operator = "matches"
	OpCEL         Operator = "cel"
)

// Condition is a declarative rule deciding when a component surfaces or dissolves
type Condition struct {
	Type     ConditionType `json:"type" yaml:"type"`
	Operator Operator      `json:"operator" yaml:"operator"`
	Field    string        `json:"field,omitempty" yaml:"field,omitempty"`
	Value    any           `json:"value,omitempty" yaml:"value,omitempty"`
	Weight   *float64      `json:"weight,omitempty" yaml:"weight,omitempty"`
}

// EffectiveWeight returns the declared weight or 1 when unset
func (c Condition) EffectiveWeight() float64 {
	if c.Weight == nil {
		return 1
	}
	return *c.Weight
}

// Package conditions evaluates declarative surface/dissolve rules against session state
package conditions

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/AbdouB/adaptive/internal/intent"
	"github.com/AbdouB/adaptive/internal/models"
)

var (
	// ErrUnknownConditionType is returned for a condition type the evaluator cannot read
	ErrUnknownConditionType = errors.New("unknown condition type")
	// ErrUnknownOperator is returned for an operator the evaluator cannot apply
	ErrUnknownOperator = errors.New("unknown operator")
)

// Evaluator interprets Conditions. It caches compiled CEL programs and is safe for concurrent use.
type Evaluator struct {
	// IntentThreshold is the fuzzy score an intent "matches" condition needs
	IntentThreshold float64

	env      *cel.Env
	mu       sync.RWMutex
	prgCache map[string]cel.Program
}

// NewEvaluator creates an evaluator with the CEL environment for expression conditions
func NewEvaluator() (*Evaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("context", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("status", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("intent", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL environment: %w", err)
	}
	return &Evaluator{
		IntentThreshold: intent.DefaultThreshold,
		env:             env,
		prgCache:        make(map[string]cel.Program),
	}, nil
}

// Evaluate reports whether the condition holds for the snapshot
func (e *Evaluator) Evaluate(c models.Condition, snap Snapshot) (bool, error) {
	switch c.Type {
	case models.ConditionContext:
		actual, found := lookup(snap.contextMap(), c.Field)
		return compare(c.Operator, actual, found, c.Value)
	case models.ConditionData:
		actual, found := lookup(snap.dataMap(), c.Field)
		return compare(c.Operator, actual, found, c.Value)
	case models.ConditionSystem:
		actual, found := lookup(snap.statusMap(), c.Field)
		return compare(c.Operator, actual, found, c.Value)
	case models.ConditionIntent:
		return e.evaluateIntent(c, snap.Intent)
	case models.ConditionExpression:
		if c.Operator != "" && c.Operator != models.OpCEL {
			return false, fmt.Errorf("%w %q for expression condition", ErrUnknownOperator, c.Operator)
		}
		expr, ok := c.Value.(string)
		if !ok {
			return false, fmt.Errorf("expression condition needs a string value, got %T", c.Value)
		}
		return e.evaluateExpr(expr, snap)
	default:
		return false, fmt.Errorf("%w %q", ErrUnknownConditionType, c.Type)
	}
}

func (e *Evaluator) evaluateIntent(c models.Condition, text string) (bool, error) {
	if text == "" {
		// No intent yet behaves like a missing field
		return compare(c.Operator, "", false, c.Value)
	}
	switch c.Operator {
	case models.OpMatches:
		return intent.Score(text, fmt.Sprint(c.Value)) >= e.IntentThreshold, nil
	case models.OpIn:
		for _, phrase := range toSlice(c.Value) {
			if intent.Score(text, fmt.Sprint(phrase)) >= e.IntentThreshold {
				return true, nil
			}
		}
		return false, nil
	default:
		return compare(c.Operator, text, true, c.Value)
	}
}

func (e *Evaluator) evaluateExpr(expr string, snap Snapshot) (bool, error) {
	prg, err := e.program(expr)
	if err != nil {
		return false, err
	}
	out, _, err := prg.Eval(map[string]any{
		"context": snap.contextMap(),
		"data":    snap.dataMap(),
		"status":  snap.statusMap(),
		"intent":  snap.Intent,
	})
	if err != nil {
		return false, fmt.Errorf("failed to evaluate %q: %w", expr, err)
	}
	result, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression %q returned %T, want bool", expr, out.Value())
	}
	return result, nil
}

func (e *Evaluator) program(expr string) (cel.Program, error) {
	e.mu.RLock()
	prg, hit := e.prgCache[expr]
	e.mu.RUnlock()
	if hit {
		return prg, nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if prg, hit = e.prgCache[expr]; hit {
		return prg, nil
	}
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile %q: %w", expr, issues.Err())
	}
	prg, err := e.env.Program(ast,
		cel.InterruptCheckFrequency(100),
		cel.CostLimit(10000),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build program for %q: %w", expr, err)
	}
	e.prgCache[expr] = prg
	return prg, nil
}

// compare applies a field operator. A missing field only satisfies not_equals and exists:false.
func compare(op models.Operator, actual any, found bool, expected any) (bool, error) {
	switch op {
	case models.OpExists:
		want := true
		if b, ok := expected.(bool); ok {
			want = b
		}
		return found == want, nil
	case models.OpEquals:
		return found && looseEqual(actual, expected), nil
	case models.OpNotEquals:
		return !found || !looseEqual(actual, expected), nil
	case models.OpGreaterThan, models.OpLessThan:
		if !found {
			return false, nil
		}
		a, okA := toFloat(actual)
		b, okB := toFloat(expected)
		if !okA || !okB {
			return false, fmt.Errorf("%s needs numeric operands, got %T and %T", op, actual, expected)
		}
		if op == models.OpGreaterThan {
			return a > b, nil
		}
		return a < b, nil
	case models.OpContains:
		if !found {
			return false, nil
		}
		if s, ok := actual.(string); ok {
			return strings.Contains(strings.ToLower(s), strings.ToLower(fmt.Sprint(expected))), nil
		}
		for _, item := range toSlice(actual) {
			if looseEqual(item, expected) {
				return true, nil
			}
		}
		return false, nil
	case models.OpIn:
		if !found {
			return false, nil
		}
		for _, item := range toSlice(expected) {
			if looseEqual(actual, item) {
				return true, nil
			}
		}
		return false, nil
	case models.OpMatches:
		if !found {
			return false, nil
		}
		re, err := regexp.Compile(fmt.Sprint(expected))
		if err != nil {
			return false, fmt.Errorf("invalid pattern: %w", err)
		}
		return re.MatchString(fmt.Sprint(actual)), nil
	default:
		return false, fmt.Errorf("%w %q", ErrUnknownOperator, op)
	}
}

func looseEqual(a, b any) bool {
	fa, okA := toFloat(a)
	fb, okB := toFloat(b)
	if okA && okB {
		return fa == fb
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func toSlice(v any) []any {
	if v == nil {
		return nil
	}
	if s, ok := v.([]any); ok {
		return s
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return []any{v}
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out
}

// Package condition evaluates the predicates used by step conditions,
// branch rules and workflow audiences.
//
// A Condition reads one field, either from the subject's current record or
// from the run's variables, and applies an operator to it. The expr operator
// instead evaluates an expr-lang expression against both maps.
package condition

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Source selects the map a condition reads from.
type Source string

const (
	SourceSubject  Source = "subject"
	SourceVariable Source = "variable"
)

// Operator is a comparison.
type Operator string

const (
	OpEquals    Operator = "equals"
	OpNotEquals Operator = "not_equals"
	OpGreater   Operator = "gt"
	OpLess      Operator = "lt"
	OpContains  Operator = "contains"
	OpExists    Operator = "exists"

	// OpExpr evaluates Expression with expr-lang. The environment exposes
	// `subject` and `vars`.
	OpExpr Operator = "expr"
)

// Condition is one predicate.
type Condition struct {
	// Field is a dotted path into the selected source.
	Field string `json:"field,omitempty"`

	// Source defaults to SourceSubject.
	Source Source `json:"source,omitempty"`

	Operator   Operator `json:"operator"`
	Value      any      `json:"value,omitempty"`
	Expression string   `json:"expression,omitempty"`
}

func (c Condition) String() string {
	if c.Operator == OpExpr {
		return "expr(" + c.Expression + ")"
	}
	src := c.Source
	if src == "" {
		src = SourceSubject
	}
	return fmt.Sprintf("%s.%s %s %v", src, c.Field, c.Operator, c.Value)
}

// Env is the data a condition is evaluated against.
type Env struct {
	Subject   map[string]any
	Variables map[string]any
}

func (e Env) source(s Source) map[string]any {
	if s == SourceVariable {
		return e.Variables
	}
	return e.Subject
}

// Lookup resolves a dotted path ("customer.tier") in a decoded JSON object.
func Lookup(data map[string]any, path string) (any, bool) {
	if data == nil || path == "" {
		return nil, false
	}
	var cur any = data
	for _, part := range strings.Split(path, ".") {
		switch m := cur.(type) {
		case map[string]any:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		case map[string]string:
			v, ok := m[part]
			if !ok {
				return nil, false
			}
			cur = v
		default:
			return nil, false
		}
	}
	return cur, true
}

// Equal compares two decoded values. Numbers compare numerically whatever
// their Go type; everything else, strings included, compares by JSON
// encoding.
func Equal(a, b any) bool {
	_, aStr := a.(string)
	_, bStr := b.(string)
	if !aStr && !bStr {
		if fa, ok := toFloat(a); ok {
			if fb, ok := toFloat(b); ok {
				return fa == fb
			}
		}
	}
	ab, err := json.Marshal(a)
	if err != nil {
		return false
	}
	bb, err := json.Marshal(b)
	if err != nil {
		return false
	}
	return string(ab) == string(bb)
}

func compare(a, b any) (int, bool) {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			switch {
			case fa < fb:
				return -1, true
			case fa > fb:
				return 1, true
			default:
				return 0, true
			}
		}
	}
	if ta, ok := toTime(a); ok {
		if tb, ok := toTime(b); ok {
			return ta.Compare(tb), true
		}
	}
	return 0, false
}

func contains(haystack, needle any) bool {
	switch h := haystack.(type) {
	case string:
		n, ok := needle.(string)
		return ok && strings.Contains(h, n)
	case []any:
		for _, v := range h {
			if Equal(v, needle) {
				return true
			}
		}
	case []string:
		n, ok := needle.(string)
		if !ok {
			return false
		}
		for _, v := range h {
			if v == n {
				return true
			}
		}
	case map[string]any:
		n, ok := needle.(string)
		if !ok {
			return false
		}
		_, found := h[n]
		return found
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
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
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := time.Parse(time.RFC3339, t)
		return parsed, err == nil
	default:
		return time.Time{}, false
	}
}

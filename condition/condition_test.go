package condition

import (
	"testing"
)

func env() Env {
	return Env{
		Subject: map[string]any{
			"email":    "ada@example.com",
			"score":    float64(60),
			"tags":     []any{"vip", "newsletter"},
			"segments": []string{"trial"},
			"plan":     map[string]any{"tier": "gold", "seats": 5},
			"zip":      "02134",
			"deleted":  nil,
			"signup":   "2026-01-02T15:04:05Z",
		},
		Variables: map[string]any{
			"branch": "vip",
			"count":  3,
		},
	}
}

func TestEvaluate(t *testing.T) {
	ev := NewEvaluator()

	tests := []struct {
		name string
		cond Condition
		want bool
	}{
		{"equals string", Condition{Field: "email", Operator: OpEquals, Value: "ada@example.com"}, true},
		{"equals mismatch", Condition{Field: "email", Operator: OpEquals, Value: "bob@example.com"}, false},
		{"equals int vs float", Condition{Field: "score", Operator: OpEquals, Value: 60}, true},
		{"equals numeric string stays string", Condition{Field: "zip", Operator: OpEquals, Value: "2134"}, false},
		{"equals nested", Condition{Field: "plan.tier", Operator: OpEquals, Value: "gold"}, true},
		{"equals missing", Condition{Field: "nope", Operator: OpEquals, Value: "x"}, false},
		{"not equals", Condition{Field: "plan.tier", Operator: OpNotEquals, Value: "silver"}, true},
		{"not equals missing", Condition{Field: "nope", Operator: OpNotEquals, Value: "x"}, true},
		{"gt true", Condition{Field: "score", Operator: OpGreater, Value: 50}, true},
		{"gt equal is false", Condition{Field: "score", Operator: OpGreater, Value: 60}, false},
		{"gt string number", Condition{Field: "score", Operator: OpGreater, Value: "59.5"}, true},
		{"gt incomparable", Condition{Field: "email", Operator: OpGreater, Value: 1}, false},
		{"lt true", Condition{Field: "plan.seats", Operator: OpLess, Value: 10}, true},
		{"lt time", Condition{Field: "signup", Operator: OpLess, Value: "2026-06-01T00:00:00Z"}, true},
		{"contains substring", Condition{Field: "email", Operator: OpContains, Value: "@example"}, true},
		{"contains slice", Condition{Field: "tags", Operator: OpContains, Value: "vip"}, true},
		{"contains slice miss", Condition{Field: "tags", Operator: OpContains, Value: "churned"}, false},
		{"contains string slice", Condition{Field: "segments", Operator: OpContains, Value: "trial"}, true},
		{"contains map key", Condition{Field: "plan", Operator: OpContains, Value: "tier"}, true},
		{"exists", Condition{Field: "email", Operator: OpExists}, true},
		{"exists nil", Condition{Field: "deleted", Operator: OpExists}, false},
		{"exists missing", Condition{Field: "nope", Operator: OpExists}, false},
		{"variable source", Condition{Source: SourceVariable, Field: "branch", Operator: OpEquals, Value: "vip"}, true},
		{"variable gt", Condition{Source: SourceVariable, Field: "count", Operator: OpGreater, Value: 2}, true},
		{"expr", Condition{Operator: OpExpr, Expression: `subject.score > 50 && vars.branch == "vip"`}, true},
		{"expr false", Condition{Operator: OpExpr, Expression: `subject.score < 10`}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ev.Evaluate(tt.cond, env())
			if err != nil {
				t.Fatalf("Evaluate(%s): %v", tt.cond, err)
			}
			if got != tt.want {
				t.Errorf("Evaluate(%s) = %v, want %v", tt.cond, got, tt.want)
			}
		})
	}
}

func TestEvaluate_UnknownOperator(t *testing.T) {
	ev := NewEvaluator()
	if _, err := ev.Evaluate(Condition{Field: "x", Operator: "between"}, env()); err == nil {
		t.Fatal("expected error for unknown operator")
	}
}

func TestEvaluate_ExprCompileError(t *testing.T) {
	ev := NewEvaluator()
	if _, err := ev.Evaluate(Condition{Operator: OpExpr, Expression: `1 + `}, env()); err == nil {
		t.Fatal("expected compile error")
	}
}

func TestAll(t *testing.T) {
	ev := NewEvaluator()

	ok, err := ev.All(nil, env())
	if err != nil || !ok {
		t.Fatalf("empty list should hold, got %v %v", ok, err)
	}

	ok, _ = ev.All([]Condition{
		{Field: "score", Operator: OpGreater, Value: 50},
		{Field: "tags", Operator: OpContains, Value: "vip"},
	}, env())
	if !ok {
		t.Fatal("both conditions hold")
	}

	ok, _ = ev.All([]Condition{
		{Field: "score", Operator: OpGreater, Value: 50},
		{Field: "tags", Operator: OpContains, Value: "churned"},
	}, env())
	if ok {
		t.Fatal("second condition fails")
	}
}

func TestValidate(t *testing.T) {
	ev := NewEvaluator()

	valid := []Condition{
		{Field: "score", Operator: OpGreater, Value: 1},
		{Field: "email", Operator: OpExists},
		{Source: SourceVariable, Field: "x", Operator: OpEquals, Value: "y"},
		{Operator: OpExpr, Expression: `subject.score > 1`},
	}
	for _, c := range valid {
		if err := ev.Validate(c); err != nil {
			t.Errorf("Validate(%s): %v", c, err)
		}
	}

	invalid := []Condition{
		{Field: "score", Operator: "like", Value: 1},
		{Operator: OpEquals, Value: 1},
		{Field: "score", Operator: OpEquals},
		{Field: "score", Source: "account", Operator: OpEquals, Value: 1},
		{Operator: OpExpr},
		{Operator: OpExpr, Expression: `subject.score >`},
	}
	for _, c := range invalid {
		if err := ev.Validate(c); err == nil {
			t.Errorf("Validate(%s) should fail", c)
		}
	}
}

func TestLookup(t *testing.T) {
	data := map[string]any{"a": map[string]any{"b": map[string]any{"c": 1}}}
	if v, ok := Lookup(data, "a.b.c"); !ok || v != 1 {
		t.Fatalf("Lookup = %v, %v", v, ok)
	}
	if _, ok := Lookup(data, "a.x"); ok {
		t.Fatal("missing path should not resolve")
	}
	if _, ok := Lookup(data, "a.b.c.d"); ok {
		t.Fatal("path through a scalar should not resolve")
	}
}

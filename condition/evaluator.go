package condition

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Evaluator evaluates conditions. Compiled expressions are cached by their
// source text; an Evaluator is safe for concurrent use.
type Evaluator struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewEvaluator creates an Evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{cache: make(map[string]*vm.Program)}
}

// Evaluate reports whether c holds in env. A missing field never matches
// (except that it is what OpExists tests for); an error means the condition
// itself is malformed.
func (e *Evaluator) Evaluate(c Condition, env Env) (bool, error) {
	if c.Operator == OpExpr {
		return e.evalExpr(c.Expression, env)
	}

	got, found := Lookup(env.source(c.Source), c.Field)

	switch c.Operator {
	case OpExists:
		return found && got != nil, nil
	case OpEquals:
		return found && Equal(got, c.Value), nil
	case OpNotEquals:
		return !found || !Equal(got, c.Value), nil
	case OpGreater:
		cmp, ok := compare(got, c.Value)
		return found && ok && cmp > 0, nil
	case OpLess:
		cmp, ok := compare(got, c.Value)
		return found && ok && cmp < 0, nil
	case OpContains:
		return found && contains(got, c.Value), nil
	default:
		return false, fmt.Errorf("condition: unknown operator %q", c.Operator)
	}
}

// All reports whether every condition holds. An empty list holds.
func (e *Evaluator) All(conds []Condition, env Env) (bool, error) {
	for _, c := range conds {
		ok, err := e.Evaluate(c, env)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// Validate checks that c is well formed, compiling its expression if any.
func (e *Evaluator) Validate(c Condition) error {
	switch c.Operator {
	case OpExpr:
		if c.Expression == "" {
			return fmt.Errorf("condition: expr operator requires an expression")
		}
		_, err := e.program(c.Expression)
		return err
	case OpEquals, OpNotEquals, OpGreater, OpLess, OpContains, OpExists:
	default:
		return fmt.Errorf("condition: unknown operator %q", c.Operator)
	}
	if c.Field == "" {
		return fmt.Errorf("condition: %s requires a field", c.Operator)
	}
	switch c.Source {
	case "", SourceSubject, SourceVariable:
	default:
		return fmt.Errorf("condition: unknown source %q", c.Source)
	}
	if c.Operator != OpExists && c.Value == nil {
		return fmt.Errorf("condition: %s requires a value", c.Operator)
	}
	return nil
}

func (e *Evaluator) evalExpr(expression string, env Env) (bool, error) {
	prog, err := e.program(expression)
	if err != nil {
		return false, err
	}

	subject := env.Subject
	if subject == nil {
		subject = map[string]any{}
	}
	vars := env.Variables
	if vars == nil {
		vars = map[string]any{}
	}

	result, err := expr.Run(prog, map[string]any{"subject": subject, "vars": vars})
	if err != nil {
		return false, fmt.Errorf("condition: evaluate %q: %w", expression, err)
	}
	b, ok := result.(bool)
	if !ok {
		return false, fmt.Errorf("condition: %q did not return bool", expression)
	}
	return b, nil
}

func (e *Evaluator) program(expression string) (*vm.Program, error) {
	e.mu.RLock()
	prog, ok := e.cache[expression]
	e.mu.RUnlock()
	if ok {
		return prog, nil
	}

	prog, err := expr.Compile(expression, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("condition: compile %q: %w", expression, err)
	}

	e.mu.Lock()
	e.cache[expression] = prog
	e.mu.Unlock()
	return prog, nil
}

package gmap

import (
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"
)

// CELEvaluator compiles and caches CEL programs for rules' optional
// narrowing predicates. It evaluates against a fixed (tenant, team, path)
// variable set; a predicate that errors or does not return bool is treated
// as non-matching rather than failing the whole resolution.
type CELEvaluator struct {
	env   *cel.Env
	mu    sync.Mutex
	cache map[string]cel.Program
}

// NewCELEvaluator builds an evaluator exposing tenant, team, and path as
// string variables to rule predicates.
func NewCELEvaluator() (*CELEvaluator, error) {
	env, err := cel.NewEnv(
		cel.Variable("tenant", cel.StringType),
		cel.Variable("team", cel.StringType),
		cel.Variable("path", cel.StringType),
	)
	if err != nil {
		return nil, fmt.Errorf("gmap: build cel environment: %w", err)
	}
	return &CELEvaluator{env: env, cache: make(map[string]cel.Program)}, nil
}

// Matches reports whether expr evaluates to true for the given scope. A
// compile or evaluation error, or a non-bool result, returns false: an
// advanced rule that cannot be evaluated never grants access.
func (e *CELEvaluator) Matches(expr, tenant, team, path string) bool {
	prg, err := e.program(expr)
	if err != nil {
		return false
	}
	out, _, err := prg.Eval(map[string]interface{}{
		"tenant": tenant,
		"team":   team,
		"path":   path,
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

func (e *CELEvaluator) program(expr string) (cel.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prg, ok := e.cache[expr]; ok {
		return prg, nil
	}

	ast, iss := e.env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, iss.Err()
	}
	prg, err := e.env.Program(ast)
	if err != nil {
		return nil, err
	}
	e.cache[expr] = prg
	return prg, nil
}

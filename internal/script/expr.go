package script

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// ExprEvaluator implements Evaluator on expr-lang/expr. Compiled programs
// are cached by source; graphs re-run the same handful of snippets on every
// transition, so compilation happens once per snippet per process.
//
// Undefined variables are allowed at compile time: a guard referencing a
// context key that does not exist yet must fail (or compare false) at
// evaluation, not reject the graph.
type ExprEvaluator struct {
	mu    sync.Mutex
	cache map[string]*vm.Program
}

// NewExprEvaluator returns an evaluator with an empty program cache.
func NewExprEvaluator() *ExprEvaluator {
	return &ExprEvaluator{cache: make(map[string]*vm.Program)}
}

// Exec runs each statement of src in order, rebuilding the context view
// between statements. The first failing statement aborts the rest.
func (e *ExprEvaluator) Exec(src string, env Env) error {
	for i, stmt := range splitStatements(src) {
		if _, err := e.run(stmt, env); err != nil {
			return fmt.Errorf("statement %d (%q): %w", i+1, stmt, err)
		}
	}
	return nil
}

// EvalBool evaluates a guard expression and requires a boolean result.
func (e *ExprEvaluator) EvalBool(src string, env Env) (bool, error) {
	stmts := splitStatements(src)
	if len(stmts) != 1 {
		return false, fmt.Errorf("guard must be a single expression, got %d statements", len(stmts))
	}

	out, err := e.run(stmts[0], env)
	if err != nil {
		return false, err
	}
	b, ok := out.(bool)
	if !ok {
		return false, fmt.Errorf("guard evaluated to %T (%v), want bool", out, out)
	}
	return b, nil
}

// run executes one statement. Panics from reflective calls into bindings are
// recovered and surfaced as errors so a broken script can never take the
// engine loop down.
func (e *ExprEvaluator) run(stmt string, env Env) (out any, err error) {
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("evaluation panic: %v", r)
		}
	}()

	prog, err := e.compile(stmt)
	if err != nil {
		return nil, err
	}
	return expr.Run(prog, e.bindings(env))
}

func (e *ExprEvaluator) compile(stmt string) (*vm.Program, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if prog, ok := e.cache[stmt]; ok {
		return prog, nil
	}
	prog, err := expr.Compile(stmt,
		expr.Env(map[string]any{}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	e.cache[stmt] = prog
	return prog, nil
}

// bindings materializes the sandbox surface for one statement. ctx is a
// fresh snapshot each time; everything else is the stable binding set.
func (e *ExprEvaluator) bindings(env Env) map[string]any {
	m := map[string]any{
		"HAL":      env.HAL,
		"dispatch": env.Dispatch,
		"get":      env.Get,
		"set":      env.Set,
		"del":      env.Del,
	}
	if env.Snapshot != nil {
		m["ctx"] = env.Snapshot()
	} else {
		m["ctx"] = map[string]any{}
	}
	return m
}

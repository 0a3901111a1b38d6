package script

import "fmt"

// Check compiles every statement of src without executing anything. Graph
// validation uses it to surface script syntax errors at authoring time
// instead of mid-run.
func Check(src string) error {
	ev := NewExprEvaluator()
	for i, stmt := range splitStatements(src) {
		if _, err := ev.compile(stmt); err != nil {
			return fmt.Errorf("statement %d (%q): %w", i+1, stmt, err)
		}
	}
	return nil
}

// CheckGuard compiles a guard expression and enforces the single-statement
// rule. Whether it produces a bool is only knowable at evaluation time.
func CheckGuard(src string) error {
	stmts := splitStatements(src)
	if len(stmts) != 1 {
		return fmt.Errorf("guard must be a single expression, got %d statements", len(stmts))
	}
	_, err := NewExprEvaluator().compile(stmts[0])
	return err
}

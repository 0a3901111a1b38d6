// Package script evaluates the snippets authored on FSM states and
// transitions: entry/exit scripts (statement lists) and guard expressions.
//
// Evaluation is sandboxed: authored code sees exactly three surfaces — the
// run context (read snapshot plus get/set/del accessors), the HAL facade,
// and dispatch. No ambient I/O, no imports, no loops. The Evaluator
// interface keeps the grammar pluggable; the shipped implementation runs on
// expr-lang/expr, a side-effect-free expression VM, so a hostile or broken
// script can fail its own evaluation but cannot reach past the bindings.
package script

// Env is the binding set one evaluation sees. The engine rebuilds the
// context view per statement (via Snapshot), so a set in one statement is
// visible to the next.
type Env struct {
	// Snapshot returns the current context key-value view exposed as "ctx".
	Snapshot func() map[string]any

	// Get, Set, Del are the context write surface ("get"/"set"/"del").
	// Set returns the stored value so it composes inside expressions.
	Get func(key string) any
	Set func(key string, value any) any
	Del func(key string) bool

	// HAL maps script-facing peripheral names (readPin, writePin, getADC,
	// setPWM, uartTransmit, uartReceive, mockInject, reset) to bound
	// functions.
	HAL map[string]any

	// Dispatch schedules a named event; delayMS 0 means immediate,
	// same-turn. Returns true so it can stand alone as a statement (the
	// expression VM calls bindings reflectively and needs a result value).
	Dispatch func(event string, delayMS int) bool
}

// Evaluator runs authored snippets. Implementations must be safe for reuse
// across runs; the engine calls them from its loop goroutine only.
type Evaluator interface {
	// Exec runs a statement script: one expression per line or
	// semicolon-separated. Execution stops at the first failing statement.
	Exec(src string, env Env) error

	// EvalBool evaluates a guard expression. Any evaluation failure or
	// non-boolean result is an error; the engine treats both as guard=false.
	EvalBool(src string, env Env) (bool, error)
}

package script

import (
	"fmt"
	"maps"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testEnv is a self-contained sandbox: a map-backed context, a pin map
// behind fake HAL functions, and a dispatch recorder.
type testEnv struct {
	env        Env
	store      map[string]any
	pins       map[int]bool
	dispatched []string
}

func newTestEnv() *testEnv {
	te := &testEnv{
		store: map[string]any{},
		pins:  map[int]bool{},
	}
	te.env = Env{
		Snapshot: func() map[string]any { return maps.Clone(te.store) },
		Get:      func(k string) any { return te.store[k] },
		Set: func(k string, v any) any {
			te.store[k] = v
			return v
		},
		Del: func(k string) bool {
			_, ok := te.store[k]
			delete(te.store, k)
			return ok
		},
		HAL: map[string]any{
			"readPin":  func(pin int) bool { return te.pins[pin] },
			"writePin": func(pin int, v bool) bool { te.pins[pin] = v; return v },
			"getADC":   func(ch int) int { return 2048 },
			"boom":     func() bool { panic("peripheral fault") },
		},
		Dispatch: func(event string, delayMS int) bool {
			te.dispatched = append(te.dispatched, fmt.Sprintf("%s@%d", event, delayMS))
			return true
		},
	}
	return te
}

func TestExprEvaluator_Exec_SetVisibleToNextStatement(t *testing.T) {
	te := newTestEnv()
	ev := NewExprEvaluator()

	err := ev.Exec("set(\"a\", 1)\nset(\"b\", ctx.a + 1)", te.env)
	require.NoError(t, err)

	assert.Equal(t, 1, te.store["a"])
	assert.Equal(t, 2, te.store["b"])
}

func TestExprEvaluator_Exec_PinToggle(t *testing.T) {
	te := newTestEnv()
	ev := NewExprEvaluator()

	err := ev.Exec(`HAL.writePin(1, !HAL.readPin(1))`, te.env)
	require.NoError(t, err)
	assert.True(t, te.pins[1])

	err = ev.Exec(`HAL.writePin(1, !HAL.readPin(1))`, te.env)
	require.NoError(t, err)
	assert.False(t, te.pins[1])
}

func TestExprEvaluator_Exec_Dispatch(t *testing.T) {
	te := newTestEnv()
	ev := NewExprEvaluator()

	err := ev.Exec(`dispatch("GO", 0); dispatch("LATER", 250)`, te.env)
	require.NoError(t, err)
	assert.Equal(t, []string{"GO@0", "LATER@250"}, te.dispatched)
}

func TestExprEvaluator_Exec_StopsAtFirstFailure(t *testing.T) {
	te := newTestEnv()
	ev := NewExprEvaluator()

	err := ev.Exec("set(\"a\", 1)\nctx.missing + 1\nset(\"b\", 2)", te.env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statement 2")

	assert.Equal(t, 1, te.store["a"], "statements before the failure ran")
	assert.NotContains(t, te.store, "b", "statements after the failure did not")
}

func TestExprEvaluator_Exec_EmptyScript(t *testing.T) {
	te := newTestEnv()
	assert.NoError(t, NewExprEvaluator().Exec("", te.env))
	assert.NoError(t, NewExprEvaluator().Exec("  \n // only a comment\n", te.env))
}

func TestExprEvaluator_Exec_RecoversBindingPanic(t *testing.T) {
	te := newTestEnv()
	ev := NewExprEvaluator()

	err := ev.Exec(`HAL.boom()`, te.env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "peripheral fault")
}

func TestExprEvaluator_EvalBool(t *testing.T) {
	te := newTestEnv()
	te.store["count"] = 5
	ev := NewExprEvaluator()

	got, err := ev.EvalBool("ctx.count > 3", te.env)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = ev.EvalBool("ctx.count > 10", te.env)
	require.NoError(t, err)
	assert.False(t, got)

	got, err = ev.EvalBool("HAL.getADC(0) == 2048", te.env)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestExprEvaluator_EvalBool_NonBoolResult(t *testing.T) {
	te := newTestEnv()
	ev := NewExprEvaluator()

	_, err := ev.EvalBool(`"not a bool"`, te.env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "want bool")
}

func TestExprEvaluator_EvalBool_ThrowingGuard(t *testing.T) {
	te := newTestEnv()
	ev := NewExprEvaluator()

	// Arithmetic on a missing context key fails at evaluation time; the
	// engine turns this into guard=false plus a warning.
	got, err := ev.EvalBool("ctx.missing + 1 > 0", te.env)
	require.Error(t, err)
	assert.False(t, got)
}

func TestExprEvaluator_EvalBool_RejectsStatementLists(t *testing.T) {
	te := newTestEnv()
	ev := NewExprEvaluator()

	_, err := ev.EvalBool(`set("a", 1); true`, te.env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "single expression")
}

func TestExprEvaluator_CompileErrorSurfaces(t *testing.T) {
	te := newTestEnv()
	ev := NewExprEvaluator()

	err := ev.Exec(`set("a",`, te.env)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "compile")
}

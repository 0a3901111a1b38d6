package harness

import (
	"math"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/require"

	"github.com/protoboard/protoboard/internal/model"
)

// MarshalTrace projects a run onto canonical JSON for golden comparison: the
// journaled steps and errors plus the final position. Timestamps are left
// out; the projection asserts order and effect, not timing.
func MarshalTrace(scenarioName string, res *Result) ([]byte, error) {
	steps := make([]any, len(res.Steps))
	for i, st := range res.Steps {
		m := map[string]any{
			"seq":  st.Seq,
			"kind": st.Kind,
			"from": st.From,
			"to":   st.To,
		}
		if st.Event != "" {
			m["event"] = st.Event
		}
		steps[i] = m
	}

	snapshot := map[string]any{
		"scenario":  scenarioName,
		"run_token": res.RunToken,
		"steps":     steps,
		"final": map[string]any{
			"state":   res.State,
			"history": toAnySlice(res.History),
			"context": contextForCanonical(res.Context),
		},
	}

	if len(res.Errors) > 0 {
		errs := make([]any, len(res.Errors))
		for i, er := range res.Errors {
			m := map[string]any{
				"seq":     er.Seq,
				"code":    er.Code,
				"message": er.Message,
			}
			if er.StateID != "" {
				m["state"] = er.StateID
			}
			if er.Event != "" {
				m["event"] = er.Event
			}
			errs[i] = m
		}
		snapshot["errors"] = errs
	}

	return model.MarshalCanonical(snapshot)
}

// AssertGolden compares the run's trace projection against
// testdata/golden/<name>.golden. Regenerate with go test -update after an
// intentional behavior change.
func AssertGolden(t *testing.T, name string, res *Result) {
	t.Helper()

	data, err := MarshalTrace(name, res)
	require.NoError(t, err, "trace projection must marshal")

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}

func toAnySlice(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

// contextForCanonical normalizes context values for canonical JSON, which
// forbids floats. Whole floats become integers; a fractional value fails the
// marshal, and a scenario producing one should assert via expect.context
// instead of a golden trace.
func contextForCanonical(ctx map[string]any) map[string]any {
	out := make(map[string]any, len(ctx))
	for k, v := range ctx {
		out[k] = canonicalValue(v)
	}
	return out
}

func canonicalValue(v any) any {
	switch n := v.(type) {
	case float64:
		if n == math.Trunc(n) && !math.IsInf(n, 0) {
			return int64(n)
		}
	case []any:
		out := make([]any, len(n))
		for i, e := range n {
			out[i] = canonicalValue(e)
		}
		return out
	case map[string]any:
		return contextForCanonical(n)
	}
	return v
}

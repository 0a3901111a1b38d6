package harness

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/protoboard/protoboard/internal/trace"
)

// TestGoldenTraces replays every golden scenario and compares the canonical
// trace projection byte for byte. Run with -update after an intentional
// behavior change.
func TestGoldenTraces(t *testing.T) {
	names := []string{
		"lamp-toggle",
		"boot-cascade",
		"dropped-event",
		"shadow-sync",
		"uart-echo",
	}
	for _, name := range names {
		t.Run(name, func(t *testing.T) {
			s, err := LoadScenario(filepath.Join("testdata", "scenarios", name+".yaml"))
			require.NoError(t, err)

			res, err := Run(s, Options{})
			require.NoError(t, err)
			require.True(t, res.Pass, "failures: %s", strings.Join(res.Failures, "; "))

			AssertGolden(t, name, res)
		})
	}
}

func TestMarshalTraceShape(t *testing.T) {
	res := &Result{
		State:    "s-b",
		History:  []string{"s-a", "s-b"},
		Context:  map[string]any{"ratio": 2.0, "label": "ok"},
		RunToken: "run-x",
		Steps: []trace.Step{
			{Seq: 1, Kind: "sync", From: "s-a", To: "s-b"},
		},
		Errors: []trace.ErrorRecord{
			{Seq: 2, Code: "GUARD_FAILED", Message: "m", StateID: "s-b", Event: "GO"},
		},
	}

	data, err := MarshalTrace("shape", res)
	require.NoError(t, err)

	// Sync steps carry no event key; whole floats land as integers.
	assert.Equal(t,
		`{"errors":[{"code":"GUARD_FAILED","event":"GO","message":"m","seq":2,"state":"s-b"}],"final":{"context":{"label":"ok","ratio":2},"history":["s-a","s-b"],"state":"s-b"},"run_token":"run-x","scenario":"shape","steps":[{"from":"s-a","kind":"sync","seq":1,"to":"s-b"}]}`,
		string(data))
}

func TestMarshalTraceRejectsFractionalFloats(t *testing.T) {
	res := &Result{
		State:   "s-a",
		History: []string{"s-a"},
		Context: map[string]any{"temp": 21.5},
	}
	_, err := MarshalTrace("fraction", res)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "float")
}

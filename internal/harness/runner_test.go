package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runScenarioFile(t *testing.T, name string) *Result {
	t.Helper()
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)
	res, err := Run(s, Options{})
	require.NoError(t, err)
	return res
}

func TestRunLampToggle(t *testing.T) {
	res := runScenarioFile(t, "lamp-toggle.yaml")
	require.True(t, res.Pass, "failures: %v", res.Failures)

	assert.Equal(t, "s-idle", res.State)
	assert.Equal(t, []string{"s-idle", "s-on", "s-idle"}, res.History)
	assert.Equal(t, 1, res.Context["count"])
	assert.Equal(t, "run-test-0001", res.RunToken)

	require.Len(t, res.Steps, 2)
	assert.Equal(t, int64(1), res.Steps[0].Seq)
	assert.Equal(t, "transition", res.Steps[0].Kind)
	assert.Equal(t, "TOGGLE", res.Steps[0].Event)
	assert.Empty(t, res.Errors)
}

func TestRunBootCascade(t *testing.T) {
	res := runScenarioFile(t, "boot-cascade.yaml")
	require.True(t, res.Pass, "failures: %v", res.Failures)

	// The READY transition came from the entry script's same-turn dispatch.
	require.Len(t, res.Steps, 2)
	assert.Equal(t, "READY", res.Steps[0].Event)
	assert.Equal(t, 50, res.Board.PWM[5])
}

func TestRunDroppedEvent(t *testing.T) {
	res := runScenarioFile(t, "dropped-event.yaml")
	require.True(t, res.Pass, "failures: %v", res.Failures)

	require.Len(t, res.Errors, 1)
	assert.Equal(t, "EVENT_DROPPED", res.Errors[0].Code)
	assert.Equal(t, int64(1), res.Errors[0].Seq)
	// The drop consumed seq 1, so the committed transition holds seq 2.
	require.Len(t, res.Steps, 1)
	assert.Equal(t, int64(2), res.Steps[0].Seq)
}

func TestRunShadowSync(t *testing.T) {
	res := runScenarioFile(t, "shadow-sync.yaml")
	require.True(t, res.Pass, "failures: %v", res.Failures)

	assert.Equal(t, "run-shadow-0001", res.RunToken)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, "sync", res.Steps[0].Kind)
	assert.Equal(t, "sync", res.Steps[1].Kind)
	// Shadow mode skips scripts, so the context never gained a key.
	assert.Empty(t, res.Context)
}

func TestRunUARTEcho(t *testing.T) {
	res := runScenarioFile(t, "uart-echo.yaml")
	require.True(t, res.Pass, "failures: %v", res.Failures)

	assert.Equal(t, []string{"ack:ping"}, res.Board.UARTTx)
	assert.Empty(t, res.Board.UARTRx)
}

func TestRunReportsExpectationMisses(t *testing.T) {
	s := &Scenario{
		Name:  "misses",
		Graph: filepath.Join("testdata", "graphs", "lamp.cue"),
		Steps: []Step{{Trigger: "TOGGLE"}},
		Expect: Expect{
			State:   "s-idle",
			Context: map[string]any{"count": 2},
			Pins:    map[int]bool{13: false},
		},
	}

	res, err := Run(s, Options{})
	require.NoError(t, err)

	assert.False(t, res.Pass)
	require.Len(t, res.Failures, 3)
	assert.Contains(t, res.Failures[0], "state:")
	assert.Contains(t, res.Failures[1], "context[count]")
	assert.Contains(t, res.Failures[2], "pin 13")
}

func TestRunMissingGraphFile(t *testing.T) {
	s := &Scenario{Name: "lost", Graph: filepath.Join("testdata", "graphs", "no-such.cue")}
	_, err := Run(s, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read graph")
}

func TestRunRejectsInvalidGraph(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noentry.cue")
	src := "graph: {\n\tname: \"noentry\"\n\tstates: [{id: \"s-a\"}]\n}\n"
	require.NoError(t, os.WriteFile(path, []byte(src), 0o644))

	s := &Scenario{Name: "invalid", Graph: path}
	_, err := Run(s, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "E102")
}

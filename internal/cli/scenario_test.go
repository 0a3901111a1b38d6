package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScenarioFiles lays out a graph and a scenario referencing it in one
// temp directory, returning the scenario path.
func writeScenarioFiles(t *testing.T, scenarioYAML string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "graph.cue"), []byte(blinkGraphCUE), 0o644))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(scenarioYAML), 0o644))
	return path
}

const passingScenarioYAML = `name: blink-once
graph: graph.cue
steps:
  - trigger: TICK
expect:
  state: s-on
  history: [s-off, s-on]
  pins:
    13: true
`

const failingScenarioYAML = `name: blink-wrong
graph: graph.cue
steps:
  - trigger: TICK
expect:
  state: s-off
`

func TestScenarioPass(t *testing.T) {
	path := writeScenarioFiles(t, passingScenarioYAML)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"scenario", path})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "blink-once")
	assert.Contains(t, buf.String(), "final state s-on")
}

func TestScenarioFailureExitsNonZero(t *testing.T) {
	path := writeScenarioFiles(t, failingScenarioYAML)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"scenario", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "expectation(s) failed")
	assert.Contains(t, buf.String(), "state")
}

func TestScenarioJSON(t *testing.T) {
	path := writeScenarioFiles(t, passingScenarioYAML)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "json", "scenario", path})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	var result ScenarioResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.True(t, result.Pass)
	assert.Equal(t, "s-on", result.State)
	assert.Equal(t, []string{"s-off", "s-on"}, result.History)
}

func TestScenarioTraceOutput(t *testing.T) {
	path := writeScenarioFiles(t, passingScenarioYAML)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"scenario", path, "--trace"})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), `"scenario":"blink-once"`)
	assert.Contains(t, buf.String(), `"run_token":"run-test-0001"`)
}

func TestScenarioMissingFile(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"scenario", filepath.Join(t.TempDir(), "nope.yaml")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestScenarioBadYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: x\nunknown_field: true\n"), 0o644))

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"scenario", path})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

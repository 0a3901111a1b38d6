package cli

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateValidGraph(t *testing.T) {
	graph := writeGraphFile(t, blinkGraphCUE)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", graph})

	require.NoError(t, cmd.Execute())
	assert.Contains(t, buf.String(), "valid")
	assert.Contains(t, buf.String(), `"blink"`)
}

func TestValidateValidGraphJSON(t *testing.T) {
	graph := writeGraphFile(t, blinkGraphCUE)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "json", "validate", graph})

	require.NoError(t, cmd.Execute())

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	var result ValidationResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.True(t, result.Valid)
	assert.Equal(t, "blink", result.Graph)
}

func TestValidateReportsAllFindings(t *testing.T) {
	// Two independent problems: no entry role and a guard that does not
	// compile. Both must be reported.
	graph := writeGraphFile(t, `graph: {
	name: "broken"
	states: [
		{id: "s-a", label: "A"},
	]
	transitions: [
		{id: "t-x", from: "s-a", to: "s-a", event: "X", guard: "((("},
	]
}
`)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", graph})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	output := buf.String()
	assert.Contains(t, output, "invalid")
	assert.Contains(t, output, "E102")
	assert.Contains(t, output, "E111")
}

func TestValidateBadScriptSyntax(t *testing.T) {
	graph := writeGraphFile(t, `graph: {
	name: "bad-script"
	states: [
		{id: "s-a", label: "A", role: "entry", entry: "set(\"x\", ((("},
	]
	transitions: []
}
`)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", graph})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, buf.String(), "E110")
}

func TestValidateInvalidJSONPayload(t *testing.T) {
	graph := writeGraphFile(t, `graph: {
	name: "broken"
	states: [{id: "s-a", label: "A"}]
	transitions: []
}
`)

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"--format", "json", "validate", graph})

	err := cmd.Execute()
	require.Error(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))

	var result ValidationResult
	require.NoError(t, json.Unmarshal(resp.Data, &result))
	assert.False(t, result.Valid)
	require.NotEmpty(t, result.Errors)
	assert.Equal(t, "E102", result.Errors[0].Code)
}

func TestValidateMissingFile(t *testing.T) {
	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", filepath.Join(t.TempDir(), "nope.cue")})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestValidateMalformedCUE(t *testing.T) {
	graph := writeGraphFile(t, "graph: { this is not cue }}}")

	buf := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(buf)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"validate", graph})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
}

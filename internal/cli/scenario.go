package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/protoboard/protoboard/internal/harness"
)

// ScenarioResult is the JSON payload for a scenario run.
type ScenarioResult struct {
	Name     string   `json:"name"`
	Pass     bool     `json:"pass"`
	Failures []string `json:"failures,omitempty"`
	State    string   `json:"state"`
	History  []string `json:"history"`
	RunToken string   `json:"run_token"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	var showTrace bool

	cmd := &cobra.Command{
		Use:   "scenario <scenario.yaml>",
		Short: "Run a scripted scenario and check its expectations",
		Long: `Run a YAML scenario: compile its graph, start a fresh engine, board, and
in-memory trace journal, apply the stimulus steps, and evaluate the
expectations against the settled state, board, context, and journal.

Exit code 1 when any expectation fails; the run itself executing is not
success.

Example:
  protoboard scenario testdata/scenarios/lamp-toggle.yaml
  protoboard scenario blink.yaml --trace --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(rootOpts, args[0], showTrace, cmd)
		},
	}

	cmd.Flags().BoolVar(&showTrace, "trace", false, "print the canonical run trace")

	return cmd
}

func runScenario(opts *RootOptions, path string, showTrace bool, cmd *cobra.Command) error {
	log := newLogger(opts, cmd.ErrOrStderr())

	s, err := harness.LoadScenario(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scenario", err)
	}

	res, err := harness.Run(s, harness.Options{Log: log})
	if err != nil {
		return WrapExitError(ExitFailure, fmt.Sprintf("scenario %q failed to run", s.Name), err)
	}

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	if showTrace {
		traceBytes, err := harness.MarshalTrace(s.Name, res)
		if err != nil {
			return WrapExitError(ExitFailure, "failed to marshal trace", err)
		}
		// The trace is already canonical JSON; print it raw in both formats.
		fmt.Fprintln(formatter.Writer, string(traceBytes))
	}

	if opts.Format == "json" {
		if err := formatter.Success(ScenarioResult{
			Name:     s.Name,
			Pass:     res.Pass,
			Failures: res.Failures,
			State:    res.State,
			History:  res.History,
			RunToken: res.RunToken,
		}); err != nil {
			return err
		}
	} else if res.Pass {
		fmt.Fprintf(formatter.Writer, "✓ %s (%d step(s), final state %s)\n",
			s.Name, len(s.Steps), res.State)
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %s: %d expectation(s) failed\n", s.Name, len(res.Failures))
		for _, f := range res.Failures {
			fmt.Fprintf(formatter.Writer, "  - %s\n", f)
		}
	}

	if !res.Pass {
		return NewExitError(ExitFailure, fmt.Sprintf("scenario %q failed", s.Name))
	}
	return nil
}

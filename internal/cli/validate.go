package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/protoboard/protoboard/internal/compiler"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool                       `json:"valid"`
	Graph  string                     `json:"graph,omitempty"`
	Errors []compiler.ValidationError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <graph.cue>",
		Short: "Validate a graph without running it",
		Long: `Validate a CUE graph file against the full authoring rule set.

Checks structure (exactly one entry-role state, no dangling transitions, no
duplicate ids) and compiles every entry/exit script and guard expression.
All findings are reported, not just the first.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, graphPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	graph, err := LoadGraph(graphPath)
	if err != nil {
		// Path problems keep their command-error exit code; compile
		// problems are validation findings (exit 1).
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			_ = formatter.Error(ErrCodeNotFound, exitErr.Error(), nil)
			return exitErr
		}
		var compileErr *compiler.CompileError
		if errors.As(err, &compileErr) {
			return outputValidationErrors(formatter, graphPath, []compiler.ValidationError{{
				Field:   compileErr.Field,
				Message: compileErr.Error(),
				Code:    ErrCodeCompileFailed,
			}})
		}
		_ = formatter.Error(ErrCodeCompileFailed, err.Error(), nil)
		return WrapExitError(ExitFailure, "graph does not compile", err)
	}

	formatter.VerboseLog("Compiled graph %q: %d state(s), %d transition(s)",
		graph.Name, len(graph.States), len(graph.Transitions))

	if errs := compiler.Validate(graph); len(errs) > 0 {
		return outputValidationErrors(formatter, graphPath, errs)
	}

	if opts.Format == "json" {
		if err := formatter.Success(ValidationResult{Valid: true, Graph: graph.Name}); err != nil {
			return err
		}
		return nil
	}
	fmt.Fprintf(formatter.Writer, "✓ %s valid (graph %q)\n", graphPath, graph.Name)
	return nil
}

// outputValidationErrors renders every finding, then fails with exit 1.
func outputValidationErrors(formatter *OutputFormatter, graphPath string, errs []compiler.ValidationError) error {
	if formatter.Format == "json" {
		if err := formatter.Success(ValidationResult{Valid: false, Errors: errs}); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(formatter.Writer, "✗ %s invalid: %d error(s)\n", graphPath, len(errs))
		for _, e := range errs {
			fmt.Fprintf(formatter.Writer, "  [%s] %s: %s\n", e.Code, e.Field, e.Message)
		}
	}
	return NewExitError(ExitFailure, fmt.Sprintf("%d validation error(s)", len(errs)))
}

package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/protoboard/protoboard/internal/trace"
)

// TraceOptions holds flags shared by the trace subcommands.
type TraceOptions struct {
	*RootOptions
	Database string
}

// TraceDetail holds one run's full journal contents for `trace show`.
type TraceDetail struct {
	Run    trace.Run           `json:"run"`
	Steps  []trace.Step        `json:"steps"`
	Errors []trace.ErrorRecord `json:"errors"`
}

// NewTraceCommand creates the trace command group.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Inspect recorded simulation traces",
		Long: `Inspect the trace journal written by runs started with --db.

Examples:
  protoboard trace list --db ./traces.db
  protoboard trace show 0192f3a1-... --db ./traces.db --format json`,
	}

	cmd.PersistentFlags().StringVar(&opts.Database, "db", "", "path to SQLite trace journal (required)")
	_ = cmd.MarkPersistentFlagRequired("db")

	cmd.AddCommand(newTraceListCommand(opts))
	cmd.AddCommand(newTraceShowCommand(opts))

	return cmd
}

func newTraceListCommand(opts *TraceOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List recorded runs, most recent first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceList(opts, cmd)
		},
	}
}

func newTraceShowCommand(opts *TraceOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <run-token>",
		Short:         "Show one run's steps and errors",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTraceShow(opts, args[0], cmd)
		},
	}
}

func runTraceList(opts *TraceOptions, cmd *cobra.Command) error {
	journal, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer journal.Close()

	runs, err := journal.ListRuns(context.Background())
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list runs", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Success(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(formatter.Writer, "No runs recorded.")
		return nil
	}
	for _, r := range runs {
		status := "running"
		if r.StoppedAt != nil {
			status = "stopped"
		}
		shadow := ""
		if r.Shadow {
			shadow = " [shadow]"
		}
		fmt.Fprintf(formatter.Writer, "%s  %s  graph=%q%s  started=%s\n",
			r.Token, status, r.GraphName, shadow, r.StartedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runTraceShow(opts *TraceOptions, token string, cmd *cobra.Command) error {
	journal, err := openJournal(opts.Database)
	if err != nil {
		return err
	}
	defer journal.Close()

	ctx := context.Background()
	run, err := journal.GetRun(ctx, token)
	if err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("run %s not found", token), err)
	}
	steps, err := journal.ListSteps(ctx, token)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list steps", err)
	}
	simErrors, err := journal.ListErrors(ctx, token)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list errors", err)
	}

	formatter := &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout(), Verbose: opts.Verbose}
	if opts.Format == "json" {
		return formatter.Success(TraceDetail{Run: run, Steps: steps, Errors: simErrors})
	}

	fmt.Fprintf(formatter.Writer, "Run %s\n", run.Token)
	fmt.Fprintf(formatter.Writer, "  graph:   %q (%s)\n", run.GraphName, run.GraphHash[:min(12, len(run.GraphHash))])
	fmt.Fprintf(formatter.Writer, "  engine:  %s\n", run.EngineVersion)
	fmt.Fprintf(formatter.Writer, "  started: %s\n", run.StartedAt.Format("2006-01-02 15:04:05.000"))
	if run.StoppedAt != nil {
		fmt.Fprintf(formatter.Writer, "  stopped: %s\n", run.StoppedAt.Format("2006-01-02 15:04:05.000"))
	}
	fmt.Fprintf(formatter.Writer, "Steps (%d):\n", len(steps))
	for _, s := range steps {
		if s.Event != "" {
			fmt.Fprintf(formatter.Writer, "  %4d  %s --%s--> %s\n", s.Seq, s.From, s.Event, s.To)
		} else {
			fmt.Fprintf(formatter.Writer, "  %4d  %s => %s (%s)\n", s.Seq, s.From, s.To, s.Kind)
		}
	}
	if len(simErrors) > 0 {
		fmt.Fprintf(formatter.Writer, "Errors (%d):\n", len(simErrors))
		for _, e := range simErrors {
			fmt.Fprintf(formatter.Writer, "  %4d  [%s] %s\n", e.Seq, e.Code, e.Message)
		}
	}
	return nil
}

// openJournal opens an existing trace database. Unlike the recorder path it
// refuses to create one: inspecting a typo'd path should fail, not produce
// an empty journal.
func openJournal(path string) (*trace.Journal, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("%s: trace journal not found", path))
	}
	journal, err := trace.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open trace journal", err)
	}
	return journal, nil
}

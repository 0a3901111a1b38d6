package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/protoboard/protoboard/internal/engine"
	"github.com/protoboard/protoboard/internal/hal"
	"github.com/protoboard/protoboard/internal/trace"
)

// defaultSpeedMS is the CLI transit delay. The library defaults to 0 so
// tests run instantly; an interactive run wants visible pacing.
const defaultSpeedMS = 250

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Database string
	SpeedMS  int
	Shadow   bool
	For      time.Duration
	Triggers []string
}

// timedTrigger is one parsed --trigger EVENT@MS flag.
type timedTrigger struct {
	event string
	after time.Duration
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <graph.cue>",
		Short: "Run a firmware FSM simulation",
		Long: `Run a firmware FSM graph as a live simulation.

The graph is compiled and validated, a fresh virtual board is created, and
the engine streams its narrative (transitions, script errors, dropped
events) as structured logs until the --for duration elapses or a signal
arrives. Scheduled --trigger flags raise events against the running model.

Example:
  protoboard run blinky.cue --trigger BUTTON@1000 --for 5s
  protoboard run blinky.cue --db ./traces.db --speed 100 --verbose`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulation(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite trace journal (optional)")
	cmd.Flags().IntVar(&opts.SpeedMS, "speed", defaultSpeedMS, "transit delay in milliseconds per step")
	cmd.Flags().BoolVar(&opts.Shadow, "shadow", false, "shadow mode: transitions driven by external sync only")
	cmd.Flags().DurationVar(&opts.For, "for", 0, "run duration (0 = until signal)")
	cmd.Flags().StringArrayVar(&opts.Triggers, "trigger", nil, "scheduled event EVENT@MS (repeatable)")

	return cmd
}

func runSimulation(opts *RunOptions, graphPath string, cmd *cobra.Command) error {
	log := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	triggers, err := parseTriggers(opts.Triggers)
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid --trigger", err)
	}

	graph, err := LoadValidGraph(graphPath)
	if err != nil {
		return err
	}
	log.Info("graph compiled", "graph", graph.Name,
		"states", len(graph.States), "transitions", len(graph.Transitions))

	engineOpts := []engine.Option{
		engine.WithLogger(log),
		engine.WithSpeed(opts.SpeedMS),
		engine.WithShadowMode(opts.Shadow),
		engine.WithHooks(engine.Hooks{
			Telemetry: func(t engine.Telemetry) {
				log.Debug("telemetry",
					"uptime_ms", t.UptimeMS, "load_pct", t.LoadPercent,
					"memory_kb", t.MemoryKB, "power_mw", t.PowerMW,
					"transitions", t.Transitions)
			},
		}),
	}

	if opts.Database != "" {
		journal, err := trace.Open(opts.Database)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open trace journal", err)
		}
		defer func() {
			if closeErr := journal.Close(); closeErr != nil {
				log.Error("error closing trace journal", "error", closeErr)
			}
		}()
		engineOpts = append(engineOpts, engine.WithRecorder(trace.NewRecorder(journal, log)))
		log.Info("trace journal ready", "path", opts.Database)
	}

	board := hal.New()
	eng := engine.New(graph, board, engineOpts...)

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			log.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := eng.Start(); err != nil {
		return WrapExitError(ExitFailure, "simulation failed to start", err)
	}

	var timers []*time.Timer
	for _, tr := range triggers {
		tr := tr
		timers = append(timers, time.AfterFunc(tr.after, func() {
			eng.TriggerEvent(tr.event)
		}))
	}
	defer func() {
		for _, t := range timers {
			t.Stop()
		}
	}()

	fmt.Fprintf(cmd.OutOrStdout(), "Simulation running (graph %q). Press Ctrl-C to stop.\n", graph.Name)

	if opts.For > 0 {
		select {
		case <-ctx.Done():
		case <-time.After(opts.For):
			log.Info("run duration elapsed", "for", opts.For)
		}
	} else {
		<-ctx.Done()
	}

	state := eng.CurrentState()
	history := eng.History()
	eng.Stop()

	fmt.Fprintf(cmd.OutOrStdout(), "Simulation stopped. Final state: %s (%d states visited)\n",
		state, len(history))
	return nil
}

// parseTriggers parses repeated --trigger EVENT@MS flags. A bare EVENT fires
// immediately.
func parseTriggers(specs []string) ([]timedTrigger, error) {
	var out []timedTrigger
	for _, spec := range specs {
		event, msText, found := strings.Cut(spec, "@")
		if event == "" {
			return nil, fmt.Errorf("%q: empty event name", spec)
		}
		var after time.Duration
		if found {
			ms, err := strconv.Atoi(msText)
			if err != nil || ms < 0 {
				return nil, fmt.Errorf("%q: delay must be a non-negative integer (milliseconds)", spec)
			}
			after = time.Duration(ms) * time.Millisecond
		}
		out = append(out, timedTrigger{event: event, after: after})
	}
	return out, nil
}

package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/protoboard/protoboard/internal/compiler"
	"github.com/protoboard/protoboard/internal/engine"
	"github.com/protoboard/protoboard/internal/hal"
	"github.com/protoboard/protoboard/internal/model"
	"github.com/protoboard/protoboard/internal/testutil"
	"github.com/protoboard/protoboard/internal/trace"
)

// settleTimeout bounds each drain of the engine's command queue. A healthy
// engine settles in microseconds; hitting this means the loop is wedged.
const settleTimeout = 5 * time.Second

// clockEpoch is the instant every scenario clock starts at.
var clockEpoch = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

// Options tunes a run without touching the scenario file.
type Options struct {
	// Log receives engine output. Defaults to a discard logger so test
	// output stays readable; the Result carries the hook messages anyway.
	Log *slog.Logger
}

// Result is everything one scenario run observed, plus the verdict.
type Result struct {
	Pass     bool
	Failures []string

	// Observed before Stop, which resets the board and drops the context.
	State   string
	History []string
	Context map[string]any
	Board   hal.Snapshot

	// Read back from the journal after Stop.
	Steps  []trace.Step
	Errors []trace.ErrorRecord

	Logs     []string
	RunToken string
}

// Run executes the scenario against a fresh engine, board, and in-memory
// journal, then evaluates the expectations. Infrastructure problems (a graph
// that will not compile, a journal that will not open) return an error;
// expectation misses land in Result.Failures.
func Run(s *Scenario, opts Options) (*Result, error) {
	graph, err := loadGraph(s.GraphPath())
	if err != nil {
		return nil, err
	}

	log := opts.Log
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	journal, err := trace.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("open trace journal: %w", err)
	}
	defer journal.Close()

	clock := testutil.NewClock(clockEpoch)
	board := hal.New(hal.WithClock(clock))

	var mu sync.Mutex
	var logs []string

	e := engine.New(graph, board,
		engine.WithLogger(log),
		engine.WithClock(clock),
		engine.WithTokenGenerator(testutil.FixedToken(s.Token())),
		engine.WithRecorder(trace.NewRecorder(journal, log)),
		engine.WithSpeed(s.SpeedMS),
		engine.WithShadowMode(s.Shadow),
		engine.WithHooks(engine.Hooks{
			Log: func(msg string, _ engine.Severity) {
				mu.Lock()
				logs = append(logs, msg)
				mu.Unlock()
			},
		}),
	)

	if err := e.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	defer e.Stop()

	for i, step := range s.Steps {
		if err := applyStep(e, board, clock, step); err != nil {
			return nil, fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	if err := settle(e); err != nil {
		return nil, fmt.Errorf("settle: %w", err)
	}

	res := &Result{
		State:    e.CurrentState(),
		History:  e.History(),
		Context:  e.ContextSnapshot(),
		Board:    board.Snapshot(),
		RunToken: e.RunToken(),
	}

	// Stop before reading the journal so the stopped_at stamp and every
	// pending write are flushed.
	e.Stop()

	ctx := context.Background()
	if res.Steps, err = journal.ListSteps(ctx, res.RunToken); err != nil {
		return nil, fmt.Errorf("list steps: %w", err)
	}
	if res.Errors, err = journal.ListErrors(ctx, res.RunToken); err != nil {
		return nil, fmt.Errorf("list errors: %w", err)
	}

	mu.Lock()
	res.Logs = append([]string(nil), logs...)
	mu.Unlock()

	res.Failures = evaluate(s.Expect, res)
	res.Pass = len(res.Failures) == 0
	return res, nil
}

// loadGraph compiles and validates a CUE graph file.
func loadGraph(path string) (*model.Graph, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph: %w", err)
	}
	graph, err := compiler.CompileGraphSource(string(src))
	if err != nil {
		return nil, fmt.Errorf("compile graph %s: %w", path, err)
	}
	if errs := compiler.Validate(graph); len(errs) > 0 {
		return nil, fmt.Errorf("graph %s: %s", path, errs[0])
	}
	return graph, nil
}

// applyStep performs one stimulus. Steps that feed the engine are settled
// before the next one so stimuli cannot overtake each other; board-only
// steps take effect synchronously on their own.
func applyStep(e *engine.Engine, board *hal.Board, clock *testutil.Clock, step Step) error {
	switch {
	case step.Trigger != "":
		e.TriggerEvent(step.Trigger)
		return settle(e)
	case step.Sync != "":
		e.SyncState(step.Sync)
		return settle(e)
	case step.WaitMS > 0:
		// Scheduled dispatches run on real time, the journal on the
		// pinned clock; a wait moves both.
		d := time.Duration(step.WaitMS) * time.Millisecond
		clock.Advance(d)
		time.Sleep(d)
		return settle(e)
	case step.InjectUART != "":
		board.MockInject(step.InjectUART)
		return nil
	case step.SetPin != nil:
		board.WritePin(step.SetPin.Pin, step.SetPin.Value)
		return nil
	default:
		return fmt.Errorf("empty step")
	}
}

func settle(e *engine.Engine) error {
	ctx, cancel := context.WithTimeout(context.Background(), settleTimeout)
	defer cancel()
	return e.Settle(ctx)
}

package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/protoboard/protoboard/internal/hal"
	"github.com/protoboard/protoboard/internal/model"
	"github.com/protoboard/protoboard/internal/script"
)

// ExecStatus is the transient execution status of a state, reported to the
// UI while the engine runs its scripts.
type ExecStatus string

const (
	StatusIdle         ExecStatus = "idle"
	StatusRunningEntry ExecStatus = "running-entry"
	StatusRunningExit  ExecStatus = "running-exit"
)

// Engine drives one FSM simulation: it owns the current position, runs
// entry/exit scripts through the sandbox, evaluates guards, advances on
// events, and synthesizes telemetry.
//
// All run-state mutation happens on one loop goroutine. Public operations
// either enqueue commands (TriggerEvent, SyncState), round-trip a reply
// through the queue (UpdateGraph, Settle), or flip atomics (SetSpeed,
// SetShadowMode). Overlapping calls therefore serialize instead of
// interleaving their side effects.
//
// Thread-safety model:
//   - every exported method: safe from any goroutine
//   - Hooks: invoked on the loop goroutine
//   - loop-owned fields (timers, cascade, env): loop goroutine only
type Engine struct {
	board          *hal.Board
	eval           script.Evaluator
	hooks          Hooks
	log            *slog.Logger
	clock          hal.Clock
	tokens         TokenGenerator
	recorder       Recorder
	telemetryEvery time.Duration
	quota          int

	speedMS atomic.Int64
	shadow  atomic.Bool

	mu          sync.Mutex
	running     bool
	graph       *model.Graph
	current     string
	history     []string
	transitions int64
	statuses    map[string]ExecStatus
	ctx         *Context
	runToken    string
	started     time.Time
	queue       *commandQueue
	stopCh      chan struct{}
	loopDone    chan struct{}
	seq         *Clock

	// Loop-owned: the scheduler heap for timed dispatches, the same-turn
	// cascade list, and the sandbox bindings for the active run.
	timers  *dispatchHeap
	cascade []string
	env     script.Env
}

// Option configures an Engine at construction.
type Option func(*Engine)

// WithLogger sets the structured logger. Defaults to slog.Default().
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// WithHooks installs the UI callback set.
func WithHooks(h Hooks) Option {
	return func(e *Engine) { e.hooks = h }
}

// WithEvaluator swaps the script sandbox implementation.
func WithEvaluator(ev script.Evaluator) Option {
	return func(e *Engine) { e.eval = ev }
}

// WithSpeed sets the initial transit delay in milliseconds per step.
func WithSpeed(ms int) Option {
	return func(e *Engine) { e.SetSpeed(ms) }
}

// WithShadowMode sets the initial shadow-mode flag.
func WithShadowMode(on bool) Option {
	return func(e *Engine) { e.SetShadowMode(on) }
}

// WithTelemetryPeriod overrides the heartbeat interval.
func WithTelemetryPeriod(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.telemetryEvery = d
		}
	}
}

// WithClock injects the wall-time source for telemetry and journal
// timestamps. Share it with the board so one pinned test clock drives both.
func WithClock(c hal.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithTokenGenerator overrides run token minting.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(e *Engine) { e.tokens = g }
}

// WithRecorder attaches a trace journal.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithDispatchQuota overrides the same-turn cascade limit.
func WithDispatchQuota(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.quota = n
		}
	}
}

// New creates an idle engine for the given graph and board. A nil board
// gets a fresh one; a nil graph is treated as empty (Start then fails with
// NO_ENTRY_POINT).
func New(graph *model.Graph, board *hal.Board, opts ...Option) *Engine {
	if graph == nil {
		graph = model.MustGraph("", nil, nil)
	}
	if board == nil {
		board = hal.New()
	}
	e := &Engine{
		board:          board,
		eval:           script.NewExprEvaluator(),
		log:            slog.Default(),
		clock:          hal.SystemClock(),
		tokens:         UUIDv7Generator{},
		telemetryEvery: DefaultTelemetryPeriod,
		quota:          DefaultDispatchQuota,
		graph:          graph,
		seq:            NewClock(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start begins a run. It locates the entry-role state (first match in array
// order), resets the board, clears history, creates a fresh context, and
// launches the loop with a bootstrap command that runs the entry state's
// entry script (skipped in shadow mode). Fails with a fatal NO_ENTRY_POINT
// error if the graph has no entry-role state; already running is a no-op.
func (e *Engine) Start() error {
	e.mu.Lock()
	if e.running {
		e.mu.Unlock()
		return nil
	}

	entry, ok := e.graph.EntryState()
	if !ok {
		name := e.graph.Name
		e.mu.Unlock()
		err := newNoEntryPointError(name)
		e.emitLog(SeverityError, err.Message, "code", string(err.Code))
		return err
	}

	hash, hashErr := model.GraphHash(e.graph)

	e.ctx = NewContext()
	e.seq = NewClock()
	e.runToken = e.tokens.Generate()
	e.current = entry.ID
	e.history = []string{entry.ID}
	e.transitions = 0
	e.statuses = make(map[string]ExecStatus)
	e.started = e.clock.Now()
	e.queue = newCommandQueue()
	e.stopCh = make(chan struct{})
	e.loopDone = make(chan struct{})
	e.timers = newDispatchHeap()
	e.cascade = nil
	e.env = e.buildScriptEnv(e.ctx)
	e.running = true

	graphName := e.graph.Name
	shadow := e.shadow.Load()
	token := e.runToken
	started := e.started
	q, stopCh, done := e.queue, e.stopCh, e.loopDone
	e.mu.Unlock()

	e.board.Reset()

	if hashErr != nil {
		e.log.Warn("graph hash failed", "err", hashErr)
	}
	if e.recorder != nil {
		e.recorder.RunStarted(RunInfo{
			Token:         token,
			GraphName:     graphName,
			GraphHash:     hash,
			EngineVersion: model.EngineVersion,
			Shadow:        shadow,
			StartedAt:     started,
		})
	}

	e.emitLog(SeveritySuccess, fmt.Sprintf("simulation started at %s", entry.DisplayLabel()),
		"run", token, "graph", graphName)

	q.Enqueue(command{kind: cmdBootstrap})
	go e.loop(q, stopCh, done)
	return nil
}

// Stop ends the run: the loop exits, every queued command and scheduled
// dispatch is dropped, the board resets, and the context is discarded.
// Idempotent; a no-op while idle.
func (e *Engine) Stop() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	e.running = false
	token := e.runToken
	q, stopCh, done := e.queue, e.stopCh, e.loopDone
	e.mu.Unlock()

	close(stopCh)
	<-done
	q.Close()
	for {
		cmd, ok := q.TryDequeue()
		if !ok {
			break
		}
		if cmd.reply != nil {
			cmd.reply <- ErrStopped
		}
	}

	e.mu.Lock()
	e.ctx = nil
	e.statuses = nil
	e.mu.Unlock()

	e.board.Reset()

	if e.recorder != nil {
		e.recorder.RunStopped(token, e.clock.Now())
	}
	e.emitLog(SeverityInfo, "simulation stopped", "run", token)
}

// TriggerEvent raises a named event against the current state. Silently a
// no-op while idle or in shadow mode — external state sync owns transitions
// there, and internal triggers are ignored, not queued.
func (e *Engine) TriggerEvent(name string) {
	e.mu.Lock()
	running, q := e.running, e.queue
	e.mu.Unlock()

	if !running || q == nil || e.shadow.Load() {
		return
	}
	q.Enqueue(command{kind: cmdTrigger, event: name})
}

// SyncState forces the current state to the one labeled label
// (case-insensitive), bypassing guards and entry/exit scripts. Used when an
// external source of truth drives the simulation. No-op while idle; an
// unknown label is reported as a recoverable warning.
func (e *Engine) SyncState(label string) {
	e.mu.Lock()
	running, q := e.running, e.queue
	e.mu.Unlock()

	if !running || q == nil {
		return
	}
	q.Enqueue(command{kind: cmdSync, label: label})
}

// UpdateGraph hot-swaps the active graph. While idle it just replaces it.
// While running: if the current state survives, only the graph changes; if
// it was removed, the engine relocates to the entry-role state with a
// warning; if the new graph has no entry-role state either, the engine
// stops and a fatal NO_ENTRY_POINT error is returned. The context is
// preserved in all non-fatal cases.
func (e *Engine) UpdateGraph(g *model.Graph) error {
	if g == nil {
		return fmt.Errorf("update graph: nil graph")
	}

	e.mu.Lock()
	if !e.running {
		e.graph = g
		e.mu.Unlock()
		e.log.Debug("graph replaced while idle", "graph", g.Name)
		return nil
	}
	q := e.queue
	e.mu.Unlock()

	reply := make(chan error, 1)
	if !q.Enqueue(command{kind: cmdReload, graph: g, reply: reply}) {
		// Stopped in between; fall back to the idle swap.
		e.mu.Lock()
		e.graph = g
		e.mu.Unlock()
		return nil
	}

	err := <-reply
	if errors.Is(err, ErrStopped) {
		e.mu.Lock()
		e.graph = g
		e.mu.Unlock()
		return nil
	}
	return err
}

// SetSpeed sets the transit delay in milliseconds per step. Zero (the
// library default) removes the pacing pause entirely.
func (e *Engine) SetSpeed(ms int) {
	if ms < 0 {
		ms = 0
	}
	e.speedMS.Store(int64(ms))
}

// SetShadowMode toggles shadow mode: while on, TriggerEvent is ignored and
// SyncState is expected to drive the run.
func (e *Engine) SetShadowMode(on bool) {
	e.shadow.Store(on)
}

// ShadowMode reports whether shadow mode is active.
func (e *Engine) ShadowMode() bool {
	return e.shadow.Load()
}

// Settle blocks until every command enqueued before it, including the
// same-turn cascades those commands raise, has been processed. Scheduled
// dispatches that are already due are processed too; future ones are not
// waited for. Returns immediately when idle.
func (e *Engine) Settle(ctx context.Context) error {
	e.mu.Lock()
	running, q := e.running, e.queue
	e.mu.Unlock()

	if !running || q == nil {
		return nil
	}

	reply := make(chan error, 1)
	if !q.Enqueue(command{kind: cmdSettle, reply: reply}) {
		return nil
	}
	select {
	case err := <-reply:
		if errors.Is(err, ErrStopped) {
			return nil
		}
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Running reports whether a run is active.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// CurrentState returns the current state ID, or "" while never started.
func (e *Engine) CurrentState() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// History returns a copy of the visited-state history of the latest run.
func (e *Engine) History() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	h := make([]string, len(e.history))
	copy(h, e.history)
	return h
}

// RunToken returns the token of the latest run.
func (e *Engine) RunToken() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.runToken
}

// StateStatus returns the transient execution status of a state.
func (e *Engine) StateStatus(id string) ExecStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	if st, ok := e.statuses[id]; ok {
		return st
	}
	return StatusIdle
}

// ContextSnapshot returns a copy of the run context, or an empty map while
// idle.
func (e *Engine) ContextSnapshot() map[string]any {
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()
	if ctx == nil {
		return map[string]any{}
	}
	return ctx.Snapshot()
}

// buildScriptEnv binds the sandbox surfaces to this run: the context
// accessors, the HAL facade, and dispatch.
func (e *Engine) buildScriptEnv(ctx *Context) script.Env {
	return script.Env{
		Snapshot: ctx.Snapshot,
		Get:      ctx.Get,
		Set: func(key string, value any) any {
			ctx.Set(key, value)
			return value
		},
		Del:      ctx.Delete,
		HAL:      halBindings(e.board),
		Dispatch: e.scriptDispatch,
	}
}

// halBindings exposes the board operations under their script-facing names.
// Every binding returns a value: the expression VM calls reflectively and
// statements need results.
func halBindings(b *hal.Board) map[string]any {
	return map[string]any{
		"readPin": b.ReadPin,
		"writePin": func(pin int, value bool) bool {
			b.WritePin(pin, value)
			return value
		},
		"getADC": b.ReadADC,
		"setPWM": func(channel, duty int) int {
			b.SetPWM(channel, duty)
			return b.PWM(channel)
		},
		"uartTransmit": func(data string) string {
			b.UARTTransmit(data)
			return data
		},
		"uartReceive": func() string {
			data, _ := b.UARTReceive()
			return data
		},
		"mockInject": func(data string) string {
			b.MockInject(data)
			return data
		},
		"reset": func() bool {
			b.Reset()
			return true
		},
	}
}

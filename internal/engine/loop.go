package engine

import (
	"fmt"
	"time"

	"github.com/protoboard/protoboard/internal/model"
)

// loop is the single writer for all run state. It drains queued commands
// first, then due timed dispatches, then parks on the queue signal, the
// next timer deadline, and the telemetry heartbeat. Each processed unit is
// followed by its same-turn cascade before the next unit is looked at.
func (e *Engine) loop(q *commandQueue, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	heartbeat := time.NewTicker(e.telemetryEvery)
	defer heartbeat.Stop()

	for {
		if cmd, ok := q.TryDequeue(); ok {
			e.process(cmd, stopCh)
			e.drainCascade(stopCh)
			continue
		}

		var timer *time.Timer
		var timerC <-chan time.Time
		if td, ok := e.timers.peek(); ok {
			wait := time.Until(td.due)
			if wait <= 0 {
				e.timers.pop()
				e.handleTrigger(td.event, stopCh)
				e.drainCascade(stopCh)
				continue
			}
			timer = time.NewTimer(wait)
			timerC = timer.C
		}

		select {
		case <-stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		case <-q.Wait():
		case <-timerC:
		case <-heartbeat.C:
			e.handleHeartbeat()
		}
		if timer != nil {
			timer.Stop()
		}
	}
}

func (e *Engine) process(cmd command, stopCh <-chan struct{}) {
	switch cmd.kind {
	case cmdBootstrap:
		e.handleBootstrap()
	case cmdTrigger:
		e.handleTrigger(cmd.event, stopCh)
	case cmdSync:
		e.handleSync(cmd.label)
	case cmdReload:
		e.handleReload(cmd.graph, cmd.reply)
	case cmdSettle:
		e.drainDueTimers(stopCh)
		if cmd.reply != nil {
			cmd.reply <- nil
		}
	}
}

// drainDueTimers processes every scheduled dispatch whose deadline has
// already passed. Settle runs this before replying so a caller that slept
// through a dispatch delay observes its effects.
func (e *Engine) drainDueTimers(stopCh <-chan struct{}) {
	for {
		td, ok := e.timers.peek()
		if !ok || time.Until(td.due) > 0 {
			return
		}
		e.timers.pop()
		e.handleTrigger(td.event, stopCh)
		e.drainCascade(stopCh)
	}
}

// handleBootstrap settles the engine into the entry state: it announces the
// initial position and runs the entry script unless shadow mode is on.
func (e *Engine) handleBootstrap() {
	e.mu.Lock()
	graph, current := e.graph, e.current
	e.mu.Unlock()

	state, ok := graph.StateByID(current)
	if !ok {
		return
	}

	e.stateChanged()
	e.emitVisual(VisualStateEntered, current, preview(state.Entry))
	if state.Entry != "" && !e.shadow.Load() {
		e.setStatus(current, StatusRunningEntry)
		e.runScript(state, state.Entry)
	}
	e.setStatus(current, StatusIdle)
	e.emitVisual(VisualStateSettled, current, "")
}

// handleTrigger resolves one event against the current state: candidates in
// array order, guardless wins immediately, otherwise the first guard that
// evaluates true. A throwing guard is reported and treated as false. No
// winner means the event is dropped with a warning.
func (e *Engine) handleTrigger(event string, stopCh <-chan struct{}) {
	if e.shadow.Load() {
		return
	}

	e.mu.Lock()
	graph, current, token := e.graph, e.current, e.runToken
	e.mu.Unlock()

	var chosen *model.Transition
	for _, t := range graph.TransitionsFrom(current, event) {
		if t.Guard == "" {
			chosen = t
			break
		}
		e.emitVisual(VisualGuardChecking, t.ID, preview(t.Guard))
		pass, err := e.eval.EvalBool(t.Guard, e.env)
		if err != nil {
			e.reportError(&SimError{
				Code:     ErrCodeGuardFailed,
				Message:  fmt.Sprintf("guard on %s treated as false: %v", t.ID, err),
				RunToken: token,
				StateID:  current,
				Event:    event,
			})
			pass = false
		}
		e.emitGuardResult(t.ID, pass)
		if pass {
			chosen = t
			break
		}
	}

	if chosen == nil {
		e.reportError(&SimError{
			Code:     ErrCodeEventDropped,
			Message:  fmt.Sprintf("event %q dropped: no transition matched from %s", event, current),
			RunToken: token,
			StateID:  current,
			Event:    event,
		})
		return
	}

	e.commitTransition(chosen, stopCh)
}

// commitTransition walks one edge: exit script, transit pause, then the
// atomic advance, then the entry script. The pause is interruptible; when
// the run stops mid-transit the advance never happens, matching a firmware
// halt between states.
func (e *Engine) commitTransition(t *model.Transition, stopCh <-chan struct{}) {
	e.mu.Lock()
	graph, fromID := e.graph, e.current
	e.mu.Unlock()

	from, _ := graph.StateByID(fromID)
	to, ok := graph.StateByID(t.To)
	if !ok {
		return
	}

	var exitScript string
	if from != nil {
		exitScript = from.Exit
	}
	e.emitVisual(VisualStateExited, fromID, preview(exitScript))
	if exitScript != "" {
		e.setStatus(fromID, StatusRunningExit)
		e.runScript(from, exitScript)
	}

	e.emitVisual(VisualEdgeTraversing, t.ID, t.Event)
	if !e.pace(stopCh) {
		e.setStatus(fromID, StatusIdle)
		return
	}

	e.mu.Lock()
	e.current = t.To
	e.history = append(e.history, t.To)
	e.transitions++
	delete(e.statuses, fromID)
	seq := e.seq.Next()
	token := e.runToken
	e.mu.Unlock()

	e.stateChanged()
	if e.recorder != nil {
		e.recorder.Step(StepInfo{
			RunToken: token,
			Seq:      seq,
			At:       e.clock.Now(),
			Kind:     StepTransition,
			Event:    t.Event,
			From:     fromID,
			To:       t.To,
		})
	}
	e.emitLog(SeverityInfo, fmt.Sprintf("%s --%s--> %s", fromID, t.Event, t.To), "run", token)

	e.emitVisual(VisualStateEntered, t.To, preview(to.Entry))
	if to.Entry != "" {
		e.setStatus(t.To, StatusRunningEntry)
		e.runScript(to, to.Entry)
	}
	e.setStatus(t.To, StatusIdle)
	e.emitVisual(VisualStateSettled, t.To, "")
}

// runScript executes one entry/exit script. Failures are recoverable: the
// error is reported and the run continues from wherever the script gave up.
// Context listeners are refreshed afterwards either way, since completed
// statements may have written keys.
func (e *Engine) runScript(state *model.State, src string) {
	err := e.eval.Exec(src, e.env)
	if err != nil {
		e.mu.Lock()
		token := e.runToken
		e.mu.Unlock()
		e.reportError(&SimError{
			Code:     ErrCodeScriptFailed,
			Message:  fmt.Sprintf("script on %s failed: %v", state.DisplayLabel(), err),
			RunToken: token,
			StateID:  state.ID,
		})
	}
	e.emitContextChange()
}

// handleSync forces the current state to the one carrying the given label,
// bypassing guards and scripts. Position is recorded but transit side
// effects never happen; an external device already performed them.
func (e *Engine) handleSync(label string) {
	e.mu.Lock()
	graph, current, token := e.graph, e.current, e.runToken
	e.mu.Unlock()

	target, ok := graph.StateByLabel(label)
	if !ok {
		e.reportError(&SimError{
			Code:     ErrCodeUnknownStateLabel,
			Message:  fmt.Sprintf("state sync: no state labeled %q", label),
			RunToken: token,
			StateID:  current,
		})
		return
	}
	if target.ID == current {
		return
	}

	e.mu.Lock()
	fromID := e.current
	e.current = target.ID
	e.history = append(e.history, target.ID)
	e.transitions++
	seq := e.seq.Next()
	e.mu.Unlock()

	e.stateChanged()
	if e.recorder != nil {
		e.recorder.Step(StepInfo{
			RunToken: token,
			Seq:      seq,
			At:       e.clock.Now(),
			Kind:     StepSync,
			From:     fromID,
			To:       target.ID,
		})
	}
	e.emitLog(SeverityInfo, fmt.Sprintf("state synced to %s", target.DisplayLabel()), "run", token)
}

// handleReload swaps the active graph mid-run. The current state survives
// when the new graph still has it; otherwise the engine relocates to the
// new entry state, and failing that the run is fatal. Context, scheduled
// dispatches, and history all carry over on the non-fatal paths.
func (e *Engine) handleReload(g *model.Graph, reply chan error) {
	e.mu.Lock()
	current, token := e.current, e.runToken
	e.mu.Unlock()

	if _, ok := g.StateByID(current); ok {
		e.mu.Lock()
		e.graph = g
		e.statuses = make(map[string]ExecStatus)
		e.mu.Unlock()
		e.emitLog(SeverityInfo, fmt.Sprintf("graph updated to %q", g.Name), "run", token)
		if reply != nil {
			reply <- nil
		}
		return
	}

	entry, ok := g.EntryState()
	if !ok {
		err := newNoEntryPointError(g.Name)
		err.RunToken = token
		e.emitLog(SeverityError,
			fmt.Sprintf("hot reload removed state %s and graph %q has no entry state; stopping", current, g.Name),
			"run", token, "code", string(err.Code))
		if reply != nil {
			reply <- err
		}
		// Stop joins the loop goroutine, so it cannot run inline here.
		go e.Stop()
		return
	}

	e.mu.Lock()
	fromID := e.current
	e.graph = g
	e.statuses = make(map[string]ExecStatus)
	e.current = entry.ID
	e.history = append(e.history, entry.ID)
	seq := e.seq.Next()
	e.mu.Unlock()

	e.stateChanged()
	if e.recorder != nil {
		e.recorder.Step(StepInfo{
			RunToken: token,
			Seq:      seq,
			At:       e.clock.Now(),
			Kind:     StepReload,
			From:     fromID,
			To:       entry.ID,
		})
	}
	e.emitLog(SeverityWarning,
		fmt.Sprintf("hot reload removed state %s; relocated to entry state %s", fromID, entry.DisplayLabel()),
		"run", token)
	if reply != nil {
		reply <- nil
	}
}

// drainCascade processes the same-turn dispatches raised by scripts. Each
// executed item consumes quota; a breach drops the rest of the cascade. A
// (state, event) pair repeating within one cascade is a cycle and only that
// item is skipped. Both are recoverable.
func (e *Engine) drainCascade(stopCh <-chan struct{}) {
	if len(e.cascade) == 0 {
		return
	}

	quota := newDispatchQuota(e.quota)
	cycles := newCascadeCycleDetector()
	for len(e.cascade) > 0 {
		event := e.cascade[0]
		e.cascade = e.cascade[1:]

		e.mu.Lock()
		current, token := e.current, e.runToken
		e.mu.Unlock()

		if !quota.allow() {
			dropped := len(e.cascade) + 1
			e.cascade = nil
			e.reportError(&SimError{
				Code:     ErrCodeDispatchQuotaExceeded,
				Message:  fmt.Sprintf("dispatch cascade hit quota %d; dropping %d pending", quota.limit, dropped),
				RunToken: token,
				StateID:  current,
				Event:    event,
			})
			return
		}
		if cycles.wouldCycle(current, event) {
			e.reportError(&SimError{
				Code:     ErrCodeDispatchCycle,
				Message:  fmt.Sprintf("dispatch cycle: %q already raised from %s this turn", event, current),
				RunToken: token,
				StateID:  current,
				Event:    event,
			})
			continue
		}
		cycles.record(current, event)

		e.handleTrigger(event, stopCh)

		select {
		case <-stopCh:
			e.cascade = nil
			return
		default:
		}
	}
}

// scriptDispatch is the dispatch binding handed to scripts. Zero delay
// appends to the current turn's cascade; a positive delay schedules a timed
// dispatch on the loop's heap. Loop goroutine only.
func (e *Engine) scriptDispatch(event string, delayMS int) bool {
	if delayMS <= 0 {
		e.cascade = append(e.cascade, event)
		return true
	}
	e.timers.push(time.Now().Add(time.Duration(delayMS)*time.Millisecond), event)
	return true
}

// pace sleeps the configured transit delay. Returns false when the run is
// stopped mid-pause.
func (e *Engine) pace(stopCh <-chan struct{}) bool {
	ms := e.speedMS.Load()
	if ms <= 0 {
		return true
	}
	t := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer t.Stop()
	select {
	case <-stopCh:
		return false
	case <-t.C:
		return true
	}
}

func (e *Engine) setStatus(stateID string, st ExecStatus) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.statuses == nil {
		return
	}
	if st == StatusIdle {
		delete(e.statuses, stateID)
		return
	}
	e.statuses[stateID] = st
}

package engine

import "log/slog"

// Severity grades log callback messages.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
	SeveritySuccess Severity = "success"
)

// VisualKind names the animation events the UI consumes.
type VisualKind string

const (
	VisualStateEntered   VisualKind = "state-entered"
	VisualStateExited    VisualKind = "state-exited"
	VisualStateSettled   VisualKind = "state-settled"
	VisualEdgeTraversing VisualKind = "edge-traversing"
	VisualGuardChecking  VisualKind = "guard-checking"
	VisualGuardResult    VisualKind = "guard-result"
)

// VisualEvent is a purely presentational notification: which node or edge to
// animate, a short preview of the code involved, and for guard-result the
// boolean outcome.
type VisualEvent struct {
	Kind     VisualKind `json:"kind"`
	TargetID string     `json:"target_id"`
	Preview  string     `json:"preview,omitempty"`
	Outcome  *bool      `json:"outcome,omitempty"`
}

// Hooks are the callback contracts exposed to the embedding UI. Every field
// is optional. Callbacks are invoked synchronously on the loop goroutine:
// they must not block and must not call back into blocking engine
// operations (accessors are fine).
type Hooks struct {
	// Log receives the run's narrative: transitions, drops, script errors.
	Log func(message string, severity Severity)

	// StateChange fires on every committed state change, including the
	// initial entry, with the full visited history.
	StateChange func(currentStateID string, history []string)

	// ContextChange fires after every script execution with a context
	// snapshot.
	ContextChange func(snapshot map[string]any)

	// Telemetry fires on each heartbeat tick.
	Telemetry func(Telemetry)

	// Visual fires for animation-relevant moments.
	Visual func(VisualEvent)
}

// previewLimit caps the script excerpt carried on visual events.
const previewLimit = 48

func preview(src string) string {
	if len(src) <= previewLimit {
		return src
	}
	return src[:previewLimit] + "..."
}

// emitLog mirrors every narrated message to the Log hook and slog, mapping
// severities onto levels (success logs as info with a marker attribute).
func (e *Engine) emitLog(sev Severity, msg string, attrs ...any) {
	if e.hooks.Log != nil {
		e.hooks.Log(msg, sev)
	}
	switch sev {
	case SeverityWarning:
		e.log.Warn(msg, attrs...)
	case SeverityError:
		e.log.Error(msg, attrs...)
	case SeveritySuccess:
		e.log.Info(msg, append(attrs, "severity", "success")...)
	default:
		e.log.Info(msg, attrs...)
	}
}

func (e *Engine) emitVisual(kind VisualKind, targetID, previewText string) {
	if e.hooks.Visual == nil {
		return
	}
	e.hooks.Visual(VisualEvent{Kind: kind, TargetID: targetID, Preview: previewText})
}

func (e *Engine) emitGuardResult(edgeID string, outcome bool) {
	if e.hooks.Visual == nil {
		return
	}
	e.hooks.Visual(VisualEvent{Kind: VisualGuardResult, TargetID: edgeID, Outcome: &outcome})
}

func (e *Engine) stateChanged() {
	if e.hooks.StateChange == nil {
		return
	}
	e.mu.Lock()
	current := e.current
	// Copy: hook consumers keep the slice, the engine keeps appending.
	h := make([]string, len(e.history))
	copy(h, e.history)
	e.mu.Unlock()
	e.hooks.StateChange(current, h)
}

func (e *Engine) emitContextChange() {
	if e.hooks.ContextChange == nil {
		return
	}
	e.mu.Lock()
	ctx := e.ctx
	e.mu.Unlock()
	if ctx == nil {
		return
	}
	e.hooks.ContextChange(ctx.Snapshot())
}

// reportError narrates and journals a recoverable SimError. Script failures
// log as errors, everything else as warnings.
func (e *Engine) reportError(se *SimError) {
	sev := SeverityWarning
	if se.Code == ErrCodeScriptFailed {
		sev = SeverityError
	}
	e.emitLog(sev, se.Message,
		slog.String("code", string(se.Code)),
		slog.String("state", se.StateID),
		slog.String("event", se.Event),
		slog.String("run", se.RunToken),
	)
	if e.recorder != nil {
		e.mu.Lock()
		seq := e.seq
		e.mu.Unlock()
		e.recorder.RunError(ErrorInfo{
			RunToken: se.RunToken,
			Seq:      seq.Next(),
			At:       e.clock.Now(),
			Code:     se.Code,
			Message:  se.Message,
			StateID:  se.StateID,
			Event:    se.Event,
		})
	}
}

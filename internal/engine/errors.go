package engine

import (
	"errors"
	"fmt"
)

// SimError is an error detected during simulation.
//
// The taxonomy has two tiers:
//   - Fatal: the run cannot proceed. Returned from Start/UpdateGraph;
//     the engine stops (or never starts). Only NO_ENTRY_POINT is fatal.
//   - Recoverable: logged through the hooks and the journal, then the
//     simulation continues. Script and guard failures, dropped events,
//     unknown sync labels, and cascade protection all land here.
//
// Structured fields carry enough context to locate the failure in a trace.
type SimError struct {
	// Code identifies the error category.
	Code SimErrorCode

	// Message is a human-readable description.
	Message string

	// RunToken identifies the affected run, when one is active.
	RunToken string

	// StateID identifies the state involved, when known.
	StateID string

	// Event names the event being processed, when one was.
	Event string

	// Details carries additional context.
	Details map[string]string
}

// SimErrorCode categorizes simulation errors.
type SimErrorCode string

const (
	// ErrCodeNoEntryPoint indicates the graph has no entry-role state. The
	// only fatal code: raised by Start and by hot-reload recovery.
	ErrCodeNoEntryPoint SimErrorCode = "NO_ENTRY_POINT"

	// ErrCodeScriptFailed indicates an entry or exit script failed. The
	// transition it belongs to still commits.
	ErrCodeScriptFailed SimErrorCode = "SCRIPT_FAILED"

	// ErrCodeGuardFailed indicates a guard expression failed to evaluate;
	// the guard is treated as false.
	ErrCodeGuardFailed SimErrorCode = "GUARD_FAILED"

	// ErrCodeEventDropped indicates an event matched no passing transition.
	ErrCodeEventDropped SimErrorCode = "EVENT_DROPPED"

	// ErrCodeUnknownStateLabel indicates a state sync named a label no
	// state carries.
	ErrCodeUnknownStateLabel SimErrorCode = "UNKNOWN_STATE_LABEL"

	// ErrCodeDispatchQuotaExceeded indicates a same-turn dispatch cascade
	// ran past the quota (linear explosion).
	ErrCodeDispatchQuotaExceeded SimErrorCode = "DISPATCH_QUOTA_EXCEEDED"

	// ErrCodeDispatchCycle indicates a same-turn cascade re-raised an event
	// already raised from the same state (recursive pattern).
	ErrCodeDispatchCycle SimErrorCode = "DISPATCH_CYCLE"
)

// Error implements the error interface.
func (e *SimError) Error() string {
	switch {
	case e.StateID != "" && e.Event != "":
		return fmt.Sprintf("%s: %s (state=%s, event=%s)", e.Code, e.Message, e.StateID, e.Event)
	case e.StateID != "":
		return fmt.Sprintf("%s: %s (state=%s)", e.Code, e.Message, e.StateID)
	case e.Event != "":
		return fmt.Sprintf("%s: %s (event=%s)", e.Code, e.Message, e.Event)
	default:
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
}

// AsSimError unwraps err to a SimError, if there is one.
func AsSimError(err error) (*SimError, bool) {
	var se *SimError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}

// IsFatal reports whether err is a fatal simulation error.
func IsFatal(err error) bool {
	se, ok := AsSimError(err)
	return ok && se.Code == ErrCodeNoEntryPoint
}

// ErrStopped is replied to queued operations whose run stopped before the
// loop reached them.
var ErrStopped = errors.New("engine stopped")

// newNoEntryPointError builds the fatal error for a graph without an
// entry-role state.
func newNoEntryPointError(graphName string) *SimError {
	msg := "graph has no entry-role state"
	if graphName != "" {
		msg = fmt.Sprintf("graph %q has no entry-role state", graphName)
	}
	return &SimError{Code: ErrCodeNoEntryPoint, Message: msg}
}

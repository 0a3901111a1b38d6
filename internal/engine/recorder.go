package engine

import "time"

// StepKind labels how a recorded state change was produced.
type StepKind string

const (
	// StepTransition is a normal event-driven transition.
	StepTransition StepKind = "transition"
	// StepSync is a forced change from SyncState.
	StepSync StepKind = "sync"
	// StepReload is an entry-state relocation after a hot reload removed
	// the current state.
	StepReload StepKind = "reload"
)

// RunInfo opens a run in the journal.
type RunInfo struct {
	Token         string
	GraphName     string
	GraphHash     string
	EngineVersion string
	Shadow        bool
	StartedAt     time.Time
}

// StepInfo records one committed state change.
type StepInfo struct {
	RunToken string
	Seq      int64
	At       time.Time
	Kind     StepKind
	Event    string
	From     string
	To       string
}

// ErrorInfo records one recoverable simulation error.
type ErrorInfo struct {
	RunToken string
	Seq      int64
	At       time.Time
	Code     SimErrorCode
	Message  string
	StateID  string
	Event    string
}

// Recorder receives the run's durable trace. The trace journal implements
// it; a nil recorder disables journaling. All calls happen on the loop
// goroutine (RunStarted and RunStopped on the caller's goroutine, strictly
// before the loop starts and after it exits), so implementations need no
// locking of their own.
type Recorder interface {
	RunStarted(run RunInfo)
	Step(step StepInfo)
	RunError(simErr ErrorInfo)
	RunStopped(token string, at time.Time)
}

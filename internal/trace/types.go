package trace

import "time"

// Run is one simulation run's journal header.
type Run struct {
	Token         string     `json:"token"`
	GraphName     string     `json:"graph_name"`
	GraphHash     string     `json:"graph_hash"`
	EngineVersion string     `json:"engine_version"`
	Shadow        bool       `json:"shadow"`
	StartedAt     time.Time  `json:"started_at"`
	StoppedAt     *time.Time `json:"stopped_at,omitempty"`
}

// Step is one committed state change. Seq comes from the run's logical
// clock and orders steps and errors together.
type Step struct {
	RunToken string    `json:"run_token"`
	Seq      int64     `json:"seq"`
	At       time.Time `json:"at"`
	Kind     string    `json:"kind"`
	Event    string    `json:"event,omitempty"`
	From     string    `json:"from"`
	To       string    `json:"to"`
}

// ErrorRecord is one recoverable simulation error.
type ErrorRecord struct {
	RunToken string    `json:"run_token"`
	Seq      int64     `json:"seq"`
	At       time.Time `json:"at"`
	Code     string    `json:"code"`
	Message  string    `json:"message"`
	StateID  string    `json:"state_id,omitempty"`
	Event    string    `json:"event,omitempty"`
}

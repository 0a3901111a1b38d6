package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// defaultRunToken keeps traces stable when a scenario does not pick its own.
const defaultRunToken = "run-test-0001"

// Scenario is one scripted simulation: a graph, a stimulus sequence, and the
// expectations to check once the engine settles.
type Scenario struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`

	// Graph is the CUE graph file, resolved relative to the scenario file.
	Graph string `yaml:"graph"`

	Shadow   bool   `yaml:"shadow"`
	SpeedMS  int    `yaml:"speed_ms"`
	RunToken string `yaml:"run_token"`

	Steps  []Step `yaml:"steps"`
	Expect Expect `yaml:"expect"`

	// dir is where the scenario file lives; graph paths resolve against it.
	dir string
}

// Step is one stimulus. Exactly one field may be set.
type Step struct {
	// Trigger raises an event against the current state.
	Trigger string `yaml:"trigger,omitempty"`

	// Sync forces the current state by display label, as an external
	// source of truth would.
	Sync string `yaml:"sync,omitempty"`

	// WaitMS advances both real and simulated time, letting scheduled
	// dispatches fire. Must be positive.
	WaitMS int `yaml:"wait_ms,omitempty"`

	// InjectUART appends data to the board's receive FIFO.
	InjectUART string `yaml:"inject_uart,omitempty"`

	// SetPin drives a digital input pin from outside the firmware.
	SetPin *PinStep `yaml:"set_pin,omitempty"`
}

// PinStep names a digital pin write.
type PinStep struct {
	Pin   int  `yaml:"pin"`
	Value bool `yaml:"value"`
}

// Expect declares the post-run checks. Every field is optional; empty fields
// are not checked. History, uart_tx, and errors must match exactly and in
// order; context and pins/pwm are subset matches against the final snapshot.
type Expect struct {
	State       string         `yaml:"state,omitempty"`
	History     []string       `yaml:"history,omitempty"`
	Context     map[string]any `yaml:"context,omitempty"`
	Pins        map[int]bool   `yaml:"pins,omitempty"`
	PWM         map[int]int    `yaml:"pwm,omitempty"`
	UARTTx      []string       `yaml:"uart_tx,omitempty"`
	Errors      []string       `yaml:"errors,omitempty"`
	LogContains []string       `yaml:"log_contains,omitempty"`
}

// LoadScenario reads and validates a scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read scenario: %w", err)
	}
	s, err := ParseScenario(data)
	if err != nil {
		return nil, fmt.Errorf("scenario %s: %w", path, err)
	}
	s.dir = filepath.Dir(path)
	return s, nil
}

// ParseScenario decodes scenario YAML. Unknown fields are rejected so typos
// in expectation names fail loudly instead of silently passing.
func ParseScenario(data []byte) (*Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var s Scenario
	if err := dec.Decode(&s); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	if err := s.validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// GraphPath resolves the graph file against the scenario's directory.
func (s *Scenario) GraphPath() string {
	if s.dir == "" || filepath.IsAbs(s.Graph) {
		return s.Graph
	}
	return filepath.Join(s.dir, s.Graph)
}

// Token returns the run token the scenario pins, or the harness default.
func (s *Scenario) Token() string {
	if s.RunToken == "" {
		return defaultRunToken
	}
	return s.RunToken
}

func (s *Scenario) validate() error {
	if s.Name == "" {
		return fmt.Errorf("missing name")
	}
	if s.Graph == "" {
		return fmt.Errorf("missing graph")
	}
	if s.SpeedMS < 0 {
		return fmt.Errorf("speed_ms must not be negative")
	}
	for i, step := range s.Steps {
		if err := step.validate(); err != nil {
			return fmt.Errorf("step %d: %w", i+1, err)
		}
	}
	return nil
}

func (st Step) validate() error {
	if st.WaitMS < 0 {
		return fmt.Errorf("wait_ms must be positive")
	}
	n := 0
	if st.Trigger != "" {
		n++
	}
	if st.Sync != "" {
		n++
	}
	if st.WaitMS > 0 {
		n++
	}
	if st.InjectUART != "" {
		n++
	}
	if st.SetPin != nil {
		n++
	}
	switch n {
	case 0:
		return fmt.Errorf("no action set")
	case 1:
		return nil
	default:
		return fmt.Errorf("%d actions set, want exactly one", n)
	}
}

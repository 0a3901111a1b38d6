package model

import (
	"fmt"
	"strings"
)

// RoleEntry marks the state a simulation run begins in. A well-formed graph
// carries exactly one entry-role state; the compiler rejects duplicates, and
// the engine resolves graphs built in code by first match in array order.
const RoleEntry = "entry"

// State is a node in the FSM graph. Entry and Exit hold sandbox script
// source run when the state becomes or stops being current; both may be
// empty. Breakpoint is carried for the editor and ignored by the engine.
type State struct {
	ID         string `json:"id"`
	Label      string `json:"label,omitempty"`
	Role       string `json:"role,omitempty"`
	Entry      string `json:"entry,omitempty"`
	Exit       string `json:"exit,omitempty"`
	Breakpoint bool   `json:"breakpoint,omitempty"`
}

// DisplayLabel returns the label shown to users and matched by state sync;
// it falls back to the ID when no label was authored.
func (s *State) DisplayLabel() string {
	if s.Label == "" {
		return s.ID
	}
	return s.Label
}

// IsEntry reports whether the state carries the entry role.
func (s *State) IsEntry() bool {
	return s.Role == RoleEntry
}

// Transition is a guarded edge. Event matching is case-sensitive and exact.
// Guard holds a sandbox boolean expression; empty means unconditional.
// Multiple transitions may share (From, Event); array order decides.
type Transition struct {
	ID    string `json:"id"`
	From  string `json:"from"`
	To    string `json:"to"`
	Event string `json:"event"`
	Guard string `json:"guard,omitempty"`
}

// Graph is an immutable FSM: states, transitions, and lookup indexes.
// Construct with NewGraph so the structural invariants hold.
type Graph struct {
	Name        string       `json:"name"`
	States      []State      `json:"states"`
	Transitions []Transition `json:"transitions"`

	stateIdx map[string]int
}

// NewGraph validates structure and builds lookup indexes. It rejects
// duplicate state or transition IDs, transitions referencing unknown states,
// and empty event names. It does NOT require an entry-role state: graphs
// without one are constructible and fail later at Start with NoEntryPoint,
// and duplicate entry roles resolve by first match (the compiler is stricter
// at the authoring boundary).
func NewGraph(name string, states []State, transitions []Transition) (*Graph, error) {
	g := &Graph{
		Name:        name,
		States:      states,
		Transitions: transitions,
		stateIdx:    make(map[string]int, len(states)),
	}

	for i, s := range states {
		if s.ID == "" {
			return nil, fmt.Errorf("state[%d]: empty id", i)
		}
		if _, dup := g.stateIdx[s.ID]; dup {
			return nil, fmt.Errorf("state[%d]: duplicate id %q", i, s.ID)
		}
		g.stateIdx[s.ID] = i
	}

	seenEdges := make(map[string]bool, len(transitions))
	for i, t := range transitions {
		if t.ID == "" {
			return nil, fmt.Errorf("transition[%d]: empty id", i)
		}
		if seenEdges[t.ID] {
			return nil, fmt.Errorf("transition[%d]: duplicate id %q", i, t.ID)
		}
		seenEdges[t.ID] = true
		if t.Event == "" {
			return nil, fmt.Errorf("transition %q: empty event name", t.ID)
		}
		if _, ok := g.stateIdx[t.From]; !ok {
			return nil, fmt.Errorf("transition %q: unknown source state %q", t.ID, t.From)
		}
		if _, ok := g.stateIdx[t.To]; !ok {
			return nil, fmt.Errorf("transition %q: unknown target state %q", t.ID, t.To)
		}
	}

	return g, nil
}

// MustGraph is NewGraph that panics on error. Test fixtures only.
func MustGraph(name string, states []State, transitions []Transition) *Graph {
	g, err := NewGraph(name, states, transitions)
	if err != nil {
		panic(err)
	}
	return g
}

// StateByID returns the state with the given ID.
func (g *Graph) StateByID(id string) (*State, bool) {
	i, ok := g.stateIdx[id]
	if !ok {
		return nil, false
	}
	return &g.States[i], true
}

// StateByLabel matches case-insensitively against each state's display
// label, in array order. State sync uses this lookup.
func (g *Graph) StateByLabel(label string) (*State, bool) {
	for i := range g.States {
		if strings.EqualFold(g.States[i].DisplayLabel(), label) {
			return &g.States[i], true
		}
	}
	return nil, false
}

// EntryState returns the first entry-role state in array order.
func (g *Graph) EntryState() (*State, bool) {
	for i := range g.States {
		if g.States[i].IsEntry() {
			return &g.States[i], true
		}
	}
	return nil, false
}

// TransitionsFrom returns the candidate transitions for an event raised in
// the given state, preserving array order. The caller evaluates guards and
// stops at the first match.
func (g *Graph) TransitionsFrom(stateID, event string) []*Transition {
	var out []*Transition
	for i := range g.Transitions {
		t := &g.Transitions[i]
		if t.From == stateID && t.Event == event {
			out = append(out, t)
		}
	}
	return out
}

// Package compiler turns authored CUE graph definitions into validated
// model.Graph values. Compilation is fail-fast on malformed CUE; Validate
// runs the full rule set and reports every finding.
package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/protoboard/protoboard/internal/model"
)

// CompileGraph parses a CUE value into a Graph.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the graph struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`graph: { name: "blinky", states: [...] }`)
//	g, err := CompileGraph(v.LookupPath(cue.ParsePath("graph")))
//
// List order is meaningful and preserved: the engine resolves entry roles
// and competing transitions by first match in authored order.
func CompileGraph(v cue.Value) (*model.Graph, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	name, err := optionalString(v, "name")
	if err != nil {
		return nil, err
	}
	if name == "" {
		// Fall back to the struct label, e.g. graphs.blinky.
		labels := v.Path().Selectors()
		if len(labels) > 0 {
			name = labels[len(labels)-1].String()
		}
	}

	states, err := parseStates(v)
	if err != nil {
		return nil, err
	}
	if len(states) == 0 {
		return nil, &CompileError{
			Field:   "states",
			Message: "at least one state is required",
			Pos:     v.Pos(),
		}
	}

	transitions, err := parseTransitions(v)
	if err != nil {
		return nil, err
	}

	g, err := model.NewGraph(name, states, transitions)
	if err != nil {
		return nil, &CompileError{
			Field:   "graph",
			Message: err.Error(),
			Pos:     v.Pos(),
		}
	}
	return g, nil
}

// CompileGraphSource compiles CUE source text and extracts the graph under
// the top-level "graph" field.
func CompileGraphSource(src string) (*model.Graph, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(src)
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	gv := v.LookupPath(cue.ParsePath("graph"))
	if !gv.Exists() {
		return nil, &CompileError{
			Field:   "graph",
			Message: "no top-level graph field",
			Pos:     v.Pos(),
		}
	}
	return CompileGraph(gv)
}

// parseStates extracts the ordered state list.
func parseStates(v cue.Value) ([]model.State, error) {
	statesVal := v.LookupPath(cue.ParsePath("states"))
	if !statesVal.Exists() {
		return nil, &CompileError{
			Field:   "states",
			Message: "states list is required",
			Pos:     v.Pos(),
		}
	}

	iter, err := statesVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var states []model.State
	for iter.Next() {
		sv := iter.Value()
		idx := len(states)

		s := model.State{}
		s.ID, err = requiredString(sv, "id", fmt.Sprintf("states[%d].id", idx))
		if err != nil {
			return nil, err
		}
		if s.Label, err = optionalString(sv, "label"); err != nil {
			return nil, err
		}
		if s.Role, err = optionalString(sv, "role"); err != nil {
			return nil, err
		}
		if s.Entry, err = optionalString(sv, "entry"); err != nil {
			return nil, err
		}
		if s.Exit, err = optionalString(sv, "exit"); err != nil {
			return nil, err
		}
		if s.Breakpoint, err = optionalBool(sv, "breakpoint"); err != nil {
			return nil, err
		}

		states = append(states, s)
	}
	return states, nil
}

// parseTransitions extracts the ordered transition list.
func parseTransitions(v cue.Value) ([]model.Transition, error) {
	transVal := v.LookupPath(cue.ParsePath("transitions"))
	if !transVal.Exists() {
		return nil, nil // a graph may have no edges
	}

	iter, err := transVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var transitions []model.Transition
	for iter.Next() {
		tv := iter.Value()
		idx := len(transitions)

		t := model.Transition{}
		t.ID, err = requiredString(tv, "id", fmt.Sprintf("transitions[%d].id", idx))
		if err != nil {
			return nil, err
		}
		t.From, err = requiredString(tv, "from", fmt.Sprintf("transitions[%d].from", idx))
		if err != nil {
			return nil, err
		}
		t.To, err = requiredString(tv, "to", fmt.Sprintf("transitions[%d].to", idx))
		if err != nil {
			return nil, err
		}
		t.Event, err = requiredString(tv, "event", fmt.Sprintf("transitions[%d].event", idx))
		if err != nil {
			return nil, err
		}
		if t.Guard, err = optionalString(tv, "guard"); err != nil {
			return nil, err
		}

		transitions = append(transitions, t)
	}
	return transitions, nil
}

func requiredString(v cue.Value, path, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", &CompileError{
			Field:   field,
			Message: path + " is required",
			Pos:     v.Pos(),
		}
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalString(v cue.Value, path string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return "", nil
	}
	s, err := fv.String()
	if err != nil {
		return "", formatCUEError(err)
	}
	return s, nil
}

func optionalBool(v cue.Value, path string) (bool, error) {
	fv := v.LookupPath(cue.ParsePath(path))
	if !fv.Exists() {
		return false, nil
	}
	b, err := fv.Bool()
	if err != nil {
		return false, formatCUEError(err)
	}
	return b, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

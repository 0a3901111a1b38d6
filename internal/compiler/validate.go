package compiler

import (
	"fmt"
	"strings"

	"github.com/protoboard/protoboard/internal/model"
	"github.com/protoboard/protoboard/internal/script"
)

// Validation error codes (E100-E199)
const (
	// Graph structure errors (E101-E109)
	ErrGraphNoStates       = "E101" // at least one state required
	ErrGraphNoEntryState   = "E102" // no entry-role state
	ErrGraphDuplicateEntry = "E103" // more than one entry-role state
	ErrGraphUnknownRole    = "E104" // role outside the known set
	ErrGraphDuplicateID    = "E105" // duplicate state/transition id
	ErrGraphDanglingEdge   = "E106" // transition endpoint unknown
	ErrGraphEmptyEvent     = "E107" // transition without an event name
	ErrGraphEmptyID        = "E108" // state/transition without an id

	// Script errors (E110-E119)
	ErrScriptSyntax = "E110" // entry/exit script does not compile
	ErrGuardSyntax  = "E111" // guard does not compile or is not one expression
)

// ValidationError represents a graph validation finding.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a graph against the full authoring rule set.
// Returns all errors found (does not fail-fast).
//
// Stricter than the engine: the engine tolerates duplicate entry roles by
// taking the first, but authored graphs must carry exactly one so intent
// stays unambiguous across edits.
func Validate(g *model.Graph) []ValidationError {
	var errs []ValidationError

	if len(g.States) == 0 {
		errs = append(errs, ValidationError{
			Field:   "states",
			Message: "at least one state is required",
			Code:    ErrGraphNoStates,
		})
	}

	stateIDs := make(map[string]bool, len(g.States))
	var entryIDs []string
	for i, s := range g.States {
		field := fmt.Sprintf("states[%d]", i)

		if strings.TrimSpace(s.ID) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: "state id is required",
				Code:    ErrGraphEmptyID,
			})
		} else {
			if stateIDs[s.ID] {
				errs = append(errs, ValidationError{
					Field:   field + ".id",
					Message: fmt.Sprintf("duplicate state id %q", s.ID),
					Code:    ErrGraphDuplicateID,
				})
			}
			stateIDs[s.ID] = true
		}

		switch s.Role {
		case "":
		case model.RoleEntry:
			entryIDs = append(entryIDs, s.ID)
		default:
			errs = append(errs, ValidationError{
				Field:   field + ".role",
				Message: fmt.Sprintf("unknown role %q, only %q is defined", s.Role, model.RoleEntry),
				Code:    ErrGraphUnknownRole,
			})
		}

		if s.Entry != "" {
			if err := script.Check(s.Entry); err != nil {
				errs = append(errs, ValidationError{
					Field:   field + ".entry",
					Message: err.Error(),
					Code:    ErrScriptSyntax,
				})
			}
		}
		if s.Exit != "" {
			if err := script.Check(s.Exit); err != nil {
				errs = append(errs, ValidationError{
					Field:   field + ".exit",
					Message: err.Error(),
					Code:    ErrScriptSyntax,
				})
			}
		}
	}

	switch {
	case len(entryIDs) == 0 && len(g.States) > 0:
		errs = append(errs, ValidationError{
			Field:   "states",
			Message: "exactly one state must carry the entry role, found none",
			Code:    ErrGraphNoEntryState,
		})
	case len(entryIDs) > 1:
		errs = append(errs, ValidationError{
			Field: "states",
			Message: fmt.Sprintf("exactly one state may carry the entry role, found %d: %s",
				len(entryIDs), strings.Join(entryIDs, ", ")),
			Code: ErrGraphDuplicateEntry,
		})
	}

	transIDs := make(map[string]bool, len(g.Transitions))
	for i, t := range g.Transitions {
		field := fmt.Sprintf("transitions[%d]", i)

		if strings.TrimSpace(t.ID) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".id",
				Message: "transition id is required",
				Code:    ErrGraphEmptyID,
			})
		} else {
			if transIDs[t.ID] {
				errs = append(errs, ValidationError{
					Field:   field + ".id",
					Message: fmt.Sprintf("duplicate transition id %q", t.ID),
					Code:    ErrGraphDuplicateID,
				})
			}
			transIDs[t.ID] = true
		}

		if !stateIDs[t.From] {
			errs = append(errs, ValidationError{
				Field:   field + ".from",
				Message: fmt.Sprintf("unknown source state %q", t.From),
				Code:    ErrGraphDanglingEdge,
			})
		}
		if !stateIDs[t.To] {
			errs = append(errs, ValidationError{
				Field:   field + ".to",
				Message: fmt.Sprintf("unknown target state %q", t.To),
				Code:    ErrGraphDanglingEdge,
			})
		}

		if strings.TrimSpace(t.Event) == "" {
			errs = append(errs, ValidationError{
				Field:   field + ".event",
				Message: "event name is required",
				Code:    ErrGraphEmptyEvent,
			})
		}

		if t.Guard != "" {
			if err := script.CheckGuard(t.Guard); err != nil {
				errs = append(errs, ValidationError{
					Field:   field + ".guard",
					Message: err.Error(),
					Code:    ErrGuardSyntax,
				})
			}
		}
	}

	return errs
}

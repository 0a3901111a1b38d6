package engine

// cascadeCycleDetector tracks which (state, event) pairs a single same-turn
// cascade has already raised.
//
// A cycle here is a script that immediately re-dispatches an event its own
// state (or a state revisited this turn) already raised:
//
//	Loop.entry: dispatch("TICK", 0)  +  self-edge Loop --TICK--> Loop
//
// fires (Loop, TICK), transitions, runs the entry script again, raises
// (Loop, TICK) again — without detection the turn never ends. The offending
// dispatch is skipped with a DISPATCH_CYCLE error; the rest of the cascade
// continues. Timed dispatches are unaffected: a delay yields the turn, which
// is the legitimate way to build periodic behavior.
//
// One instance lives per cascade drain. Loop-goroutine only; no locking.
type cascadeCycleDetector struct {
	seen map[string]bool
}

func newCascadeCycleDetector() *cascadeCycleDetector {
	return &cascadeCycleDetector{seen: make(map[string]bool)}
}

// wouldCycle reports whether this (state, event) pair already fired in the
// current cascade.
func (d *cascadeCycleDetector) wouldCycle(stateID, event string) bool {
	return d.seen[stateID+":"+event]
}

// record marks the pair as fired. Call after wouldCycle returns false,
// before running the dispatch.
func (d *cascadeCycleDetector) record(stateID, event string) {
	d.seen[stateID+":"+event] = true
}

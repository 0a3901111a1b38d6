package engine

// DefaultDispatchQuota bounds how many immediate dispatches one turn may
// cascade through. Generous for real graphs (a boot sequence chains a
// handful), small enough to cut a runaway off fast.
const DefaultDispatchQuota = 128

// dispatchQuota counts same-turn cascade steps against a limit.
//
// One instance lives per cascade drain, so a fresh turn always starts with a
// full budget. Two protections guard cascades and they catch different
// shapes:
//   - dispatchQuota: linear explosions — long acyclic chains of immediate
//     dispatches (A → B → C → ... past the limit).
//   - cascadeCycleDetector: recursive patterns — the same (state, event)
//     pair raised twice in one turn.
//
// Loop-goroutine only; no locking.
type dispatchQuota struct {
	limit int
	used  int
}

func newDispatchQuota(limit int) *dispatchQuota {
	if limit <= 0 {
		limit = DefaultDispatchQuota
	}
	return &dispatchQuota{limit: limit}
}

// allow consumes one step and reports whether the cascade may continue.
// Quota breach terminates the whole cascade (unlike a cycle hit, which
// skips only the offending dispatch).
func (q *dispatchQuota) allow() bool {
	q.used++
	return q.used <= q.limit
}

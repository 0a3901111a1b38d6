package engine

import (
	"container/heap"
	"time"
)

// timedDispatch is a dispatch(event, delay>0) waiting to fire. order breaks
// due-time ties so two dispatches scheduled in one statement fire in
// statement order.
type timedDispatch struct {
	due   time.Time
	order int64
	event string
}

// dispatchHeap is the loop-owned min-heap of pending timed dispatches — the
// explicit scheduler that replaces nested timer callbacks. Only the loop
// goroutine touches it; Stop drops it whole, which is what cancels
// scheduled dispatches when a run ends.
type dispatchHeap struct {
	items     timedHeapItems
	nextOrder int64
}

func newDispatchHeap() *dispatchHeap {
	return &dispatchHeap{}
}

// push schedules an event at the given instant.
func (h *dispatchHeap) push(due time.Time, event string) {
	h.nextOrder++
	heap.Push(&h.items, timedDispatch{due: due, order: h.nextOrder, event: event})
}

// peek returns the earliest pending dispatch without removing it.
func (h *dispatchHeap) peek() (timedDispatch, bool) {
	if len(h.items) == 0 {
		return timedDispatch{}, false
	}
	return h.items[0], true
}

// pop removes and returns the earliest pending dispatch.
func (h *dispatchHeap) pop() (timedDispatch, bool) {
	if len(h.items) == 0 {
		return timedDispatch{}, false
	}
	return heap.Pop(&h.items).(timedDispatch), true
}

func (h *dispatchHeap) len() int {
	return len(h.items)
}

// timedHeapItems implements heap.Interface ordered by (due, order).
type timedHeapItems []timedDispatch

func (s timedHeapItems) Len() int { return len(s) }

func (s timedHeapItems) Less(i, j int) bool {
	if s[i].due.Equal(s[j].due) {
		return s[i].order < s[j].order
	}
	return s[i].due.Before(s[j].due)
}

func (s timedHeapItems) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s *timedHeapItems) Push(x any) {
	*s = append(*s, x.(timedDispatch))
}

func (s *timedHeapItems) Pop() any {
	old := *s
	n := len(old)
	item := old[n-1]
	old[n-1] = timedDispatch{}
	*s = old[:n-1]
	return item
}

package engine

import (
	"sync"

	"github.com/protoboard/protoboard/internal/model"
)

// commandKind distinguishes the operations the loop processes.
type commandKind int

const (
	// cmdBootstrap enters the initial state right after Start.
	cmdBootstrap commandKind = iota + 1
	// cmdTrigger raises a named event against the current state.
	cmdTrigger
	// cmdSync forces the current state from an external label.
	cmdSync
	// cmdReload hot-swaps the graph; replies with the recovery outcome.
	cmdReload
	// cmdSettle replies once every earlier command and its same-turn
	// cascade has finished. Tests and the harness use it to quiesce.
	cmdSettle
)

// command is one unit of loop work. reply, when non-nil, is buffered so the
// loop never blocks on a caller that gave up.
type command struct {
	kind  commandKind
	event string
	label string
	graph *model.Graph
	reply chan error
}

// commandQueue is the thread-safe FIFO feeding the loop goroutine.
//
// Unbounded: a script may dispatch arbitrarily many events without blocking
// its own evaluation. External operations (TriggerEvent, SyncState,
// UpdateGraph) enqueue from any goroutine while the loop dequeues; the
// buffered signal channel coalesces wakeups so enqueue never blocks either.
type commandQueue struct {
	mu       sync.Mutex
	commands []command
	closed   bool
	signal   chan struct{}
}

func newCommandQueue() *commandQueue {
	return &commandQueue{
		commands: make([]command, 0, 16),
		signal:   make(chan struct{}, 1),
	}
}

// Enqueue appends a command. Returns false once the queue is closed, which
// is how operations racing a Stop degrade to the documented no-op.
func (q *commandQueue) Enqueue(cmd command) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.commands = append(q.commands, cmd)

	select {
	case q.signal <- struct{}{}:
	default:
	}
	return true
}

// TryDequeue pops the front command without blocking.
func (q *commandQueue) TryDequeue() (command, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.commands) == 0 {
		return command{}, false
	}

	cmd := q.commands[0]
	// Zero the slot so the backing array does not pin graph pointers.
	q.commands[0] = command{}
	if len(q.commands) == 1 {
		q.commands = q.commands[:0]
	} else {
		q.commands = q.commands[1:]
	}
	return cmd, true
}

// Wait returns the availability signal for use in the loop's select.
func (q *commandQueue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of queued commands.
func (q *commandQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.commands)
}

// Close rejects further enqueues. Safe to call more than once.
func (q *commandQueue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
}

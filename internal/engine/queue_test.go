package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandQueueFIFO(t *testing.T) {
	q := newCommandQueue()

	require.True(t, q.Enqueue(command{kind: cmdTrigger, event: "FIRST"}))
	require.True(t, q.Enqueue(command{kind: cmdTrigger, event: "SECOND"}))
	require.True(t, q.Enqueue(command{kind: cmdSync, label: "Idle"}))
	assert.Equal(t, 3, q.Len())

	cmd, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "FIRST", cmd.event)

	cmd, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "SECOND", cmd.event)

	cmd, ok = q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, cmdSync, cmd.kind)
	assert.Equal(t, "Idle", cmd.label)

	_, ok = q.TryDequeue()
	assert.False(t, ok)
	assert.Equal(t, 0, q.Len())
}

func TestCommandQueueSignalsOnEnqueue(t *testing.T) {
	q := newCommandQueue()

	select {
	case <-q.Wait():
		t.Fatal("fresh queue should not signal")
	default:
	}

	q.Enqueue(command{kind: cmdTrigger, event: "GO"})

	select {
	case <-q.Wait():
	default:
		t.Fatal("enqueue should signal availability")
	}
}

func TestCommandQueueSignalCoalesces(t *testing.T) {
	q := newCommandQueue()

	q.Enqueue(command{kind: cmdTrigger, event: "A"})
	q.Enqueue(command{kind: cmdTrigger, event: "B"})
	q.Enqueue(command{kind: cmdTrigger, event: "C"})

	// One buffered wakeup regardless of how many enqueues landed.
	<-q.Wait()
	select {
	case <-q.Wait():
		t.Fatal("signal should have been consumed")
	default:
	}
	assert.Equal(t, 3, q.Len())
}

func TestCommandQueueCloseRejectsEnqueue(t *testing.T) {
	q := newCommandQueue()
	require.True(t, q.Enqueue(command{kind: cmdTrigger, event: "KEEP"}))

	q.Close()
	q.Close()

	assert.False(t, q.Enqueue(command{kind: cmdTrigger, event: "DROP"}))

	// Already queued commands stay drainable so Stop can reply to them.
	cmd, ok := q.TryDequeue()
	require.True(t, ok)
	assert.Equal(t, "KEEP", cmd.event)
	_, ok = q.TryDequeue()
	assert.False(t, ok)
}

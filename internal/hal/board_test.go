package hal

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBoard_ReadPin_DefaultsLow(t *testing.T) {
	b := New()
	assert.False(t, b.ReadPin(0))
	assert.False(t, b.ReadPin(13))
}

func TestBoard_WritePin_SetsAndNotifies(t *testing.T) {
	b := New()

	var got []Snapshot
	b.Subscribe(func(s Snapshot) { got = append(got, s) })
	require.Len(t, got, 1, "subscribe delivers the initial snapshot")

	b.WritePin(7, true)

	assert.True(t, b.ReadPin(7))
	require.Len(t, got, 2)
	assert.True(t, got[1].Pins[7])
}

func TestBoard_SetPWM_ClampsDuty(t *testing.T) {
	tests := []struct {
		duty int
		want int
	}{
		{-10, 0},
		{0, 0},
		{55, 55},
		{100, 100},
		{140, 100},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("duty=%d", tt.duty), func(t *testing.T) {
			b := New()
			b.SetPWM(3, tt.duty)
			assert.Equal(t, tt.want, b.PWM(3))
		})
	}
}

func TestBoard_UARTTransmit_EvictsOldestPastCap(t *testing.T) {
	b := New()
	for i := 0; i < 25; i++ {
		b.UARTTransmit(fmt.Sprintf("msg-%02d", i))
	}

	snap := b.Snapshot()
	require.Len(t, snap.UARTTx, MaxUARTBuffer)
	assert.Equal(t, "msg-05", snap.UARTTx[0], "oldest five evicted")
	assert.Equal(t, "msg-24", snap.UARTTx[MaxUARTBuffer-1])
}

func TestBoard_UARTReceive_PopsOldestFirst(t *testing.T) {
	b := New()
	b.MockInject("first")
	b.MockInject("second")

	data, ok := b.UARTReceive()
	require.True(t, ok)
	assert.Equal(t, "first", data)

	data, ok = b.UARTReceive()
	require.True(t, ok)
	assert.Equal(t, "second", data)

	data, ok = b.UARTReceive()
	assert.False(t, ok)
	assert.Empty(t, data)
}

func TestBoard_UARTReceive_NotifiesOnlyOnPop(t *testing.T) {
	b := New()

	notifications := 0
	b.Subscribe(func(Snapshot) { notifications++ })
	require.Equal(t, 1, notifications)

	// Empty FIFO: no mutation, no notification.
	_, ok := b.UARTReceive()
	require.False(t, ok)
	assert.Equal(t, 1, notifications)

	b.MockInject("data")
	assert.Equal(t, 2, notifications)

	_, ok = b.UARTReceive()
	require.True(t, ok)
	assert.Equal(t, 3, notifications)
}

func TestBoard_MockInject_Bounded(t *testing.T) {
	b := New()
	for i := 0; i < MaxUARTBuffer+5; i++ {
		b.MockInject(fmt.Sprintf("in-%02d", i))
	}

	snap := b.Snapshot()
	require.Len(t, snap.UARTRx, MaxUARTBuffer)
	assert.Equal(t, "in-05", snap.UARTRx[0])
}

func TestBoard_Reset_ClearsEverything(t *testing.T) {
	b := New()
	b.WritePin(1, true)
	b.SetPWM(2, 50)
	b.UARTTransmit("tx")
	b.MockInject("rx")

	notified := false
	b.Subscribe(func(Snapshot) { notified = true })
	notified = false // ignore the subscribe replay

	b.Reset()

	assert.True(t, notified, "reset notifies subscribers")
	snap := b.Snapshot()
	assert.Empty(t, snap.Pins)
	assert.Empty(t, snap.PWM)
	assert.Empty(t, snap.UARTTx)
	assert.Empty(t, snap.UARTRx)
	assert.False(t, b.ReadPin(1))
	assert.Equal(t, 0, b.PWM(2))
}

func TestBoard_Subscribe_ReplaysCurrentSnapshot(t *testing.T) {
	b := New()
	b.WritePin(4, true)

	// No mutation happens between subscribe and assert; the listener must
	// still have seen the current state exactly once.
	var got []Snapshot
	b.Subscribe(func(s Snapshot) { got = append(got, s) })

	require.Len(t, got, 1)
	assert.True(t, got[0].Pins[4])
}

func TestBoard_Unsubscribe_Idempotent(t *testing.T) {
	b := New()

	first, second := 0, 0
	unsub := b.Subscribe(func(Snapshot) { first++ })
	b.Subscribe(func(Snapshot) { second++ })

	unsub()
	unsub() // second call is a no-op

	b.WritePin(0, true)

	assert.Equal(t, 1, first, "only the subscribe replay")
	assert.Equal(t, 2, second, "replay plus the write")
}

func TestBoard_Notify_SubscriptionOrder(t *testing.T) {
	b := New()

	var order []string
	b.Subscribe(func(Snapshot) { order = append(order, "a") })
	b.Subscribe(func(Snapshot) { order = append(order, "b") })
	order = nil

	b.WritePin(0, true)

	assert.Equal(t, []string{"a", "b"}, order)
}

func TestBoard_SnapshotIsolation(t *testing.T) {
	b := New()
	b.WritePin(1, true)

	var delivered Snapshot
	b.Subscribe(func(s Snapshot) { delivered = s })

	delivered.Pins[1] = false
	delivered.Pins[9] = true

	assert.True(t, b.ReadPin(1), "board unaffected by snapshot mutation")
	assert.False(t, b.ReadPin(9))
}

// Package hal simulates the I/O surface of a microcontroller so firmware
// models can be exercised before hardware exists: digital pins, PWM
// channels, UART-like transmit/receive FIFOs, and a synthetic analog input.
//
// A Board is one peripheral set, owned by one simulation run and injected
// into the engine at construction. Every mutation synchronously notifies
// subscribers with a full snapshot (replay-latest semantics, see Subscribe).
// All methods are safe for concurrent use; listeners run on the mutating
// goroutine, outside the board lock, in subscription order.
package hal

import (
	"maps"
	"slices"
	"sync"
)

// MaxUARTBuffer bounds both UART FIFOs. Appending beyond it evicts the
// oldest entry.
const MaxUARTBuffer = 20

// Snapshot is an immutable copy of the full peripheral state. Listeners
// receive their own copy; mutating one never affects the board.
type Snapshot struct {
	Pins   map[int]bool `json:"pins"`
	PWM    map[int]int  `json:"pwm"`
	UARTTx []string     `json:"uart_tx"`
	UARTRx []string     `json:"uart_rx"`
}

// Clone deep-copies the snapshot.
func (s Snapshot) Clone() Snapshot {
	return Snapshot{
		Pins:   maps.Clone(s.Pins),
		PWM:    maps.Clone(s.PWM),
		UARTTx: slices.Clone(s.UARTTx),
		UARTRx: slices.Clone(s.UARTRx),
	}
}

// Listener receives peripheral snapshots. Delivery is synchronous; a slow
// listener stalls the mutating call, never the board's consistency.
type Listener func(Snapshot)

// Board is a single simulated peripheral set.
type Board struct {
	mu     sync.Mutex
	clock  Clock
	pins   map[int]bool
	pwm    map[int]int
	tx     []string
	rx     []string
	subs   []subscriber
	nextID int
}

type subscriber struct {
	id int
	fn Listener
}

// Option configures a Board.
type Option func(*Board)

// WithClock injects the time source the ADC samples. Tests pin it to make
// analog reads reproducible.
func WithClock(c Clock) Option {
	return func(b *Board) { b.clock = c }
}

// New returns a Board with all pins low, all buffers empty, and the system
// clock driving the ADC.
func New(opts ...Option) *Board {
	b := &Board{
		clock: systemClock{},
		pins:  make(map[int]bool),
		pwm:   make(map[int]int),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ReadPin returns the digital level of a pin; unset pins read low.
func (b *Board) ReadPin(pin int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pins[pin]
}

// WritePin sets a digital pin and notifies subscribers.
func (b *Board) WritePin(pin int, value bool) {
	b.mu.Lock()
	b.pins[pin] = value
	snap, subs := b.publishLocked()
	b.mu.Unlock()
	deliver(subs, snap)
}

// ReadADC samples the synthetic analog input for a channel at the board
// clock's current time. Always within [0, 4095]. Stateless: no notification.
func (b *Board) ReadADC(channel int) int {
	return ADCAt(b.clock.Now(), channel)
}

// PWM returns the stored duty cycle for a channel (0 for unset channels).
func (b *Board) PWM(channel int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.pwm[channel]
}

// SetPWM stores a duty cycle, clamped to [0, 100], and notifies subscribers.
func (b *Board) SetPWM(channel, duty int) {
	if duty < 0 {
		duty = 0
	}
	if duty > 100 {
		duty = 100
	}
	b.mu.Lock()
	b.pwm[channel] = duty
	snap, subs := b.publishLocked()
	b.mu.Unlock()
	deliver(subs, snap)
}

// UARTTransmit appends to the transmit FIFO, evicting the oldest entry past
// MaxUARTBuffer, and notifies subscribers.
func (b *Board) UARTTransmit(data string) {
	b.mu.Lock()
	b.tx = appendBounded(b.tx, data)
	snap, subs := b.publishLocked()
	b.mu.Unlock()
	deliver(subs, snap)
}

// UARTReceive pops the oldest entry from the receive FIFO. It never blocks:
// the second return is false when the FIFO is empty. Subscribers are
// notified only when an entry was actually consumed.
func (b *Board) UARTReceive() (string, bool) {
	b.mu.Lock()
	if len(b.rx) == 0 {
		b.mu.Unlock()
		return "", false
	}
	data := b.rx[0]
	b.rx = append(b.rx[:0], b.rx[1:]...)
	snap, subs := b.publishLocked()
	b.mu.Unlock()
	deliver(subs, snap)
	return data, true
}

// MockInject appends externally-sourced data to the receive FIFO, simulating
// the incoming wire, with the same bound and eviction as transmit.
func (b *Board) MockInject(data string) {
	b.mu.Lock()
	b.rx = appendBounded(b.rx, data)
	snap, subs := b.publishLocked()
	b.mu.Unlock()
	deliver(subs, snap)
}

// Reset clears all pins, PWM channels, and FIFOs to defaults and notifies
// subscribers. Called by the engine on every run start and stop.
func (b *Board) Reset() {
	b.mu.Lock()
	b.pins = make(map[int]bool)
	b.pwm = make(map[int]int)
	b.tx = nil
	b.rx = nil
	snap, subs := b.publishLocked()
	b.mu.Unlock()
	deliver(subs, snap)
}

// Subscribe registers a listener and synchronously delivers the current full
// snapshot to it before returning — replay-latest, not delta-only: a new
// subscriber never has to wait for the next mutation to learn the board
// state. The returned function removes the listener and is idempotent.
func (b *Board) Subscribe(fn Listener) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscriber{id: id, fn: fn})
	snap := b.snapshotLocked()
	b.mu.Unlock()

	fn(snap)

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.subs = slices.DeleteFunc(b.subs, func(s subscriber) bool { return s.id == id })
	}
}

// Snapshot returns a copy of the current peripheral state.
func (b *Board) Snapshot() Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.snapshotLocked()
}

func (b *Board) snapshotLocked() Snapshot {
	return Snapshot{
		Pins:   maps.Clone(b.pins),
		PWM:    maps.Clone(b.pwm),
		UARTTx: slices.Clone(b.tx),
		UARTRx: slices.Clone(b.rx),
	}
}

// publishLocked captures the delivery set for a mutation: the snapshot at
// mutation time plus the subscriber list. Delivery happens after unlock so
// listeners may call back into the board.
func (b *Board) publishLocked() (Snapshot, []subscriber) {
	return b.snapshotLocked(), slices.Clone(b.subs)
}

func deliver(subs []subscriber, snap Snapshot) {
	for _, s := range subs {
		s.fn(snap.Clone())
	}
}

func appendBounded(buf []string, data string) []string {
	buf = append(buf, data)
	if len(buf) > MaxUARTBuffer {
		buf = append(buf[:0], buf[len(buf)-MaxUARTBuffer:]...)
	}
	return buf
}

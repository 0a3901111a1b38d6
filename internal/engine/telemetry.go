package engine

import (
	"math/rand/v2"
	"strings"
	"time"
)

// Telemetry is the synthesized board health snapshot pushed on each
// heartbeat. Values are plausible, not physical: the contract is the bounds
// (LoadPercent within [0,100]) and monotonicity in the stated inputs, so the
// UI dials move believably as a simulation grows busier.
type Telemetry struct {
	UptimeMS    int64     `json:"uptime_ms"`
	LoadPercent int       `json:"load_percent"`
	MemoryKB    int       `json:"memory_kb"`
	PowerMW     int       `json:"power_mw"`
	Transitions int64     `json:"transitions"`
	ContextKeys int       `json:"context_keys"`
	At          time.Time `json:"at"`
}

// DefaultTelemetryPeriod is the heartbeat interval while running.
const DefaultTelemetryPeriod = 2 * time.Second

// Heuristic bases. Load idles near a warm microcontroller's few percent,
// memory near a small firmware heap, power near an idle dev board's draw.
const (
	baseLoadPercent  = 12
	loadPerKey       = 3
	loadJitterSpan   = 5
	baseMemoryKB     = 96
	memoryPerHistory = 1
	basePowerMW      = 45
	powerPerPeriph   = 18
)

// peripheralHints marks context keys that suggest a peripheral is being
// driven; each match bumps the synthesized power draw.
var peripheralHints = []string{"pin", "pwm", "uart", "adc", "led", "motor", "servo"}

// buildTelemetry synthesizes a snapshot from the run's observable size:
// context keys, serialized context bytes, history length, transition count.
func (e *Engine) buildTelemetry(now time.Time) Telemetry {
	e.mu.Lock()
	started := e.started
	histLen := len(e.history)
	transitions := e.transitions
	ctx := e.ctx
	e.mu.Unlock()

	keys := 0
	encoded := 0
	periph := 0
	if ctx != nil {
		keyList := ctx.Keys()
		keys = len(keyList)
		encoded = ctx.EncodedSize()
		for _, k := range keyList {
			lk := strings.ToLower(k)
			for _, hint := range peripheralHints {
				if strings.Contains(lk, hint) {
					periph++
					break
				}
			}
		}
	}

	load := baseLoadPercent + loadPerKey*keys + rand.IntN(loadJitterSpan)
	if load > 100 {
		load = 100
	}

	return Telemetry{
		UptimeMS:    now.Sub(started).Milliseconds(),
		LoadPercent: load,
		MemoryKB:    baseMemoryKB + encoded/8 + memoryPerHistory*histLen,
		PowerMW:     basePowerMW + powerPerPeriph*periph,
		Transitions: transitions,
		ContextKeys: keys,
		At:          now,
	}
}

// handleHeartbeat runs on the loop goroutine each telemetry tick.
func (e *Engine) handleHeartbeat() {
	if e.hooks.Telemetry == nil {
		return
	}
	e.hooks.Telemetry(e.buildTelemetry(e.clock.Now()))
}

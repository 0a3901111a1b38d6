// Package engine implements the Protoboard execution engine.
//
// The engine is the heart of Protoboard - it holds the current state of one
// simulated firmware run, resolves triggered events against the transition
// table, executes entry/exit scripts in the sandbox, and synthesizes board
// telemetry.
//
// ARCHITECTURE:
//
// Single-Writer Event Loop:
// The engine processes all commands in a single goroutine for deterministic
// behavior. This ensures:
// - Predictable transition resolution order (array order, first match wins)
// - One writer for position, history, and the shared context
// - Simple reasoning about causality when scripts dispatch further events
//
// Command Processing Flow:
//  1. Public calls enqueue commands to a FIFO queue (trigger, sync, reload)
//  2. The loop dequeues commands one at a time
//  3. Each command runs to completion: guards, exit script, pause, advance,
//     entry script
//  4. dispatch(event, 0) calls made by scripts extend the current turn's
//     cascade; the cascade drains before the next command
//  5. dispatch(event, delayMS) schedules on a min-heap; due entries fire
//     when no command is pending
//
// Runaway cascades are contained per turn: a dispatch quota bounds linear
// explosions and a (state, event) cycle detector cuts recursive loops. Both
// are recoverable - the turn is trimmed, the run continues.
//
// The engine is designed for believable interactive pacing, not throughput.
// The transit pause between exit and advance is the only place the loop
// sleeps, and Stop interrupts it.
//
// CRITICAL PATTERNS:
//
// CP-2: Logical Clock
// All journal steps stamped with a monotonic seq counter from Clock.Next(),
// fresh per run. NEVER use wall-clock timestamps for ordering.
//
// CRITICAL-3: Callbacks on the Loop
// Hooks fire synchronously on the loop goroutine and must not block or call
// blocking engine operations. The engine never holds its mutex while
// invoking a hook or a script.
package engine

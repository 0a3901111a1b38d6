// Package trace provides SQLite-backed durable storage for simulation
// traces.
//
// The journal implements an append-only log with:
//   - Runs: one row per simulation run (token, graph identity, lifecycle)
//   - Steps: committed state changes (transitions, syncs, reload recovery)
//   - Errors: recoverable simulation errors in the order they occurred
//
// # Critical Patterns
//
// CP-2: Logical Identity and Time
//   - Steps and errors share one seq INTEGER space per run (logical clock)
//   - All ordering uses seq, NEVER timestamps; wall times are annotations
//
// CP-4: Deterministic Query Results
//   - All per-run queries include: ORDER BY seq ASC
//   - Ensures identical listings across processes and reopens
//
// Idempotency: (run_token, seq) is the identity of a step or error row;
// re-appending the same row is a silent no-op (ON CONFLICT DO NOTHING), so
// a crashed writer can safely repeat its tail.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Graph hashes stored here are computed in internal/model using RFC 8785
// canonical JSON and SHA-256 with domain separation.
package trace

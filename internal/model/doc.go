// Package model defines the FSM graph types shared by every other
// internal package.
//
// This package contains type definitions and pure functions only. All other
// internal packages import model; model imports nothing internal. This keeps
// it the foundational layer with no circular dependencies.
//
// Key design constraints:
//   - Graphs are immutable after construction; the engine never writes to
//     them. Transient execution status lives in the engine, not here.
//   - Transition evaluation order is array order; the model preserves it.
//   - All JSON tags use snake_case.
//   - Graph identity (GraphHash) uses canonical JSON, never json.Marshal.
package model

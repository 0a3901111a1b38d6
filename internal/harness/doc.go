// Package harness provides scenario-driven conformance testing for the
// simulator.
//
// The harness compiles a graph, drives a real engine through a scripted
// sequence of stimuli, and validates the final position, context, board
// state, and journaled trace against declared expectations.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: lamp-toggle
//	description: "Lamp lights on TOGGLE and counts flashes"
//	graph: lamp.cue
//	shadow: false
//	speed_ms: 0
//	run_token: run-test-0001
//	steps:
//	  - trigger: TOGGLE
//	  - sync: "Idle"
//	  - wait_ms: 50
//	  - inject_uart: "sensor:1"
//	  - set_pin: { pin: 2, value: true }
//	expect:
//	  state: "Idle"
//	  history: [s-idle, s-on, s-idle]
//	  context: { count: 1 }
//	  pins: { 13: false }
//	  pwm: { 5: 50 }
//	  uart_tx: ["hello"]
//	  errors: [EVENT_DROPPED]
//	  log_contains: ["--TOGGLE-->"]
//
// The graph path is resolved relative to the scenario file. Each step
// carries exactly one stimulus. Every expectation field is optional;
// history, uart_tx, and errors match exactly, context is a subset match.
//
// # Deterministic Testing
//
// All scenarios execute with a pinned clock and a fixed run token so the
// resulting trace is byte-identical across runs, which the golden-file
// comparison relies on.
//
// The harness uses:
//   - A fixed run token (scenario.run_token, default run-test-0001)
//   - A frozen wall clock (testutil.Clock) shared by the board and engine;
//     it advances only on wait_ms steps
//   - An in-memory trace journal (isolated per scenario)
//   - Transit speed 0 unless the scenario raises it
//
// # Usage
//
// Load and run a scenario:
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/lamp.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	result, err := harness.Run(scenario, harness.Options{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, f := range result.Failures {
//	        log.Println(f)
//	    }
//	}
package harness

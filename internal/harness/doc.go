// Package harness runs profile sync scenarios against the real engine.
//
// A scenario seeds the local profile, the session and the remote profile,
// drives the engine through a flow of operations on a manually advanced
// clock, and asserts on the resulting trace and final state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: auto_sync_debounce
//	description: "Rapid edits collapse into one push"
//	variant: matching
//	signed_in: true
//	local: { region: CN }
//	remote: { region: "日本" }
//	flow:
//	  - op: edit
//	    set: { region: Japan }
//	  - op: advance
//	    ms: 1000
//	  - op: save
//	    set: { displayName: "Ada L" }
//	    expect:
//	      case: synced
//	      result: { region: JP }
//	assertions:
//	  - type: trace_count
//	    event: push
//	    count: 2
//	  - type: final_state
//	    target: local
//	    expect: { region: JP }
//
// # Operations
//
//   - edit: record a form change (set) with Edit
//   - save, load, upgrade, logout: the matching engine operations
//   - autosync: switch auto-sync (enabled)
//   - advance: move the clock forward by ms and fire due timers
//   - settle: wait for in-flight requests
//   - login: store a session without going through the engine
//   - fail_push, fail_fetch: make the next call fail with status
//   - hold_push: make the next push block until release or cancellation
//   - release: complete the held push with status (0 succeeds)
//   - await: wait for an operation started with async and check expect
//
// # Trace
//
// The trace records, in order, every gateway call (fetch, push) and every
// notification (notify:<kind>). Each event carries the clock offset from
// the scenario start in milliseconds, so golden traces are reproducible.
//
// # Current Limitations
//
// While a push is held, the harness only waits for the held call to start
// before moving on. Scenarios that hold a push must not depend on the
// relative order of other concurrent calls.
package harness

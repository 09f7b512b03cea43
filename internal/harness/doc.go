// Package harness runs scripted editing sessions against a fresh store and
// checks the results.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	setup:
//	  - op: put
//	    db: users
//	    key: alice
//	    value: v1
//	  - op: commit
//	flow:
//	  - op: delete
//	    db: users
//	    key: alice
//	    expect:
//	      result: { undo: 1, redo: 0 }
//	  - op: commit
//	    expect:
//	      case: INVALID_ARGUMENT
//	assertions:
//	  - type: trace_order
//	    ops: [delete, commit]
//	  - type: final_state
//	    db: users
//	    key: alice
//	    absent: true
//
// # Operations
//
// put, delete, get, undo, redo, commit, abort, list, query and stats map to
// the service operation of the same name. Every step produces one trace
// event whose case is "ok" or the error code of the failure.
//
// # Assertion Types
//
//   - trace_contains: an event with the op and a subset of its args
//   - trace_order: ops appear in the given order
//   - trace_count: an op appears exactly N times
//   - final_state: a committed key holds a value, or is absent
//
// # Deterministic Testing
//
// Write tokens come from a sequence generator, so traces are byte-stable
// and can be compared against golden files with RunWithGolden.
package harness

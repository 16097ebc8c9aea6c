// Package harness provides conformance testing for the reconciliation
// engine.
//
// A scenario loads a scene into a real engine, applies host steps, and
// asserts on component counters, object identity and the journal.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: texture_load_patches
//	description: "A finished texture load patches the texture in place"
//	scene:
//	  - scene.cue
//	components:
//	  - name: box
//	    type: box-geometry
//	    attributes: { width: 2 }
//	assets:
//	  brick.png: { format: png, width: 4, height: 4 }
//	gated: true
//	steps:
//	  - get: { component: wall, as: before }
//	  - load: brick.png
//	  - set: { component: wall, attributes: { roughness: 0.2 } }
//	  - changed: { component: wall, names: [roughness] }
//	  - add: { name: hero, type: mesh, attributes: { material: { ref: wall } } }
//	  - teardown: box
//	assertions:
//	  - type: same_object
//	    objects: [before, after]
//	  - type: rebuild_count
//	    component: wall
//	    count: 1
//
// # Assertion Types
//
//   - same_object, different_object: identity of objects labelled by get steps
//   - rebuild_count, patch_count, ready_count: a component's counters
//   - live_subscriptions: unreleased journal subscriptions owned by a component
//   - attribute: a component's current attribute value (null means unset)
//   - replay_identical: the journal replays to the same fingerprints
//
// # Deterministic Testing
//
// The harness uses:
//   - A fixed run ID ("scenario-<name>" unless run_id is set)
//   - Deterministic logical clock (testutil.DeterministicClock)
//   - Deterministic subscription IDs (testutil.DeterministicIDs)
//   - A fresh sqlite journal per run
//   - Gated fetches when the scenario needs to control load timing
//
// Two runs of a scenario therefore write byte-identical timelines, which
// RunWithGolden compares against testdata/golden.
package harness

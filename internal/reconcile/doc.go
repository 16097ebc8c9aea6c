// Package reconcile decides, for one component at a time, whether a change
// to its declarative attributes can be applied to the existing engine object
// (patch) or requires constructing a new one (rebuild).
//
// ARCHITECTURE:
//
// Change Classifier (changeset.go):
// Folds raw attribute names into a canonical ChangeSet. Names are case
// folded and deduplicated; the "init" sentinel expands to the kind's
// default attributes; synonym groups add their canonical name.
//
// Patch/Rebuild Arbiter (arbiter.go):
// A ChangeSet fully covered by the kind's patch table is a Patch; anything
// else, or the "clearinit" sentinel, is a Rebuild. The test is whole-set: one
// unpatchable attribute forces a rebuild of the batch.
//
// Dependency Subscription Manager (deps.go):
// After every successful resolution the component's slot attributes are
// resolved to sources and diffed against the previous set. Removed edges are
// released, added edges subscribed. A firing edge marks the owner dirty.
//
// Lazy Rebuild Cache (component.go):
// Nothing is built eagerly. Component.Object() resolves pending work, swaps
// the new object in only after it is fully constructed, and fires the ready
// signal once per successful resolution.
//
// CONCURRENCY:
//
// Single logical thread. None of the types in this package lock; the engine
// loop is the only caller. Reentrant calls are tolerated: Object() during an
// in-flight resolution returns the previous object, and every iteration over
// subscribers or dependencies runs over a snapshot.
package reconcile

// Package engine hosts reconciled components.
//
// The engine owns the component table, the resource loader and the
// journal. It is the only place where host inputs meet components.
//
// Single-writer event loop:
// Host inputs (load, update, changed, teardown) and loader completions go
// through one FIFO queue. Exactly one goroutine applies them, either a
// caller of Drain or the Run loop, so a component is never touched
// concurrently and a journaled run can be replayed in the same order.
//
// Event processing flow:
//  1. Host calls Load/Update/Notify/Remove, or a fetch goroutine posts a
//     completion through Post.
//  2. Drain (or Run) dequeues events one at a time and applies them to the
//     component table. Components only record pending work.
//  3. The host calls Object, which resolves the pending work with a patch
//     or a rebuild.
//  4. The journal observer writes resolutions, failures and subscription
//     lifecycle to the store, stamped with seq numbers from the Clock.
//
// Resolution of slot values:
// An ir.Ref names a component in the table; a string names a loader
// resource, acquired on first use and evicted at the end of the first
// Drain in which nothing subscribes to it.
package engine

// Package store provides the SQLite-backed reconciliation journal.
//
// The journal is append-only and records, per engine run:
//   - Events: host updates, change notifications and teardowns, in the order
//     the engine applied them
//   - Resolutions: every successful patch or rebuild with the attribute
//     fingerprint it was built from
//   - Subscriptions: dependency edges with the seq they were created and
//     released at
//   - Failures: build errors returned to the host
//
// # Ordering
//
// Every record carries a seq from the engine's logical clock. Queries order
// by seq only, so a replayed run produces an identical journal.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store

// Package persist provides SQLite-backed durable storage for statecore
// snapshots.
//
// The store is a string-keyed record table where each record carries:
//   - Value: a JSON snapshot (state tree, form entries, or trigger rule set)
//   - WrittenAt: write timestamp used for TTL staleness checks
//   - Marker: optional revalidation marker (HTTP Last-Modified for rule sets)
//
// Staleness is TTL-based and decided at read time: Get treats a record older
// than the caller's TTL as absent without deleting it. The stale row remains
// reachable through GetStale so that a failed network refresh can still fall
// back to the last known copy.
//
// Persistence is best-effort by design. Callers treat write failures as
// non-fatal: in-memory state stays authoritative for the session even when
// the durable copy cannot be written.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package persist

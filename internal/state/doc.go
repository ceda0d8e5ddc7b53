// Package state implements the canonical session state container.
//
// The container owns a single nested state tree (project metadata, page
// context, cart, product, profile fields, consent flags) and exposes exactly
// two mutation surfaces: Write, and the cart convenience writer built on it.
// Every external read is an isolated deep copy; the canonical reference is
// never handed out, so direct mutation from outside is impossible.
//
// ARCHITECTURE:
//
// Single-Writer Critical Sections:
// Writes build the complete next tree before swapping the canonical
// reference, then notify subscribers with a deep copy. Readers outside the
// critical section observe the fully-prior or fully-next tree, never a
// partial merge. The Updating flag signals "write in progress" to
// asynchronous observers; it is a signal, not a lock.
//
// Deferred Startup Queues:
// Writes and cart operations arriving before Start completes are buffered in
// two FIFO queues and replayed in arrival order once the initial tree is
// established (hydrated from the durable store within its TTL, or built
// fresh). The generic queue drains first, then the cart queue: cart
// operations fold aggregates over the tree, so they must observe the generic
// writes issued before readiness. Each non-empty drain emits exactly one
// consolidated notification to avoid redundant downstream re-renders.
//
// Merge Modes:
// Deep-merge recurses into nested mappings and overwrites everything else,
// including nil. Shallow-replace substitutes whole top-level keys; it exists
// because deep-merge cannot express deletion, so removal is scoped to the
// smallest containing key (the cart writer replaces the entire cart key for
// exactly this reason).
package state

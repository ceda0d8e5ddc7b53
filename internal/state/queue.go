package state

// updateEntry is one deferred generic write: the payload and its merge mode,
// captured in call order.
type updateEntry struct {
	payload Tree
	mode    MergeMode
}

// updateQueue buffers generic writes that arrive before the container
// finishes startup. Entries are drained strictly in arrival order.
//
// The queue is unbounded: fragments may issue arbitrarily many writes while
// hydration is in flight. Access is guarded by the Container's mutex, so the
// queue itself carries no lock.
type updateQueue struct {
	entries []updateEntry
}

func newUpdateQueue() *updateQueue {
	return &updateQueue{entries: make([]updateEntry, 0, 8)}
}

// Append adds an entry to the back of the queue.
func (q *updateQueue) Append(e updateEntry) {
	q.entries = append(q.entries, e)
}

// DrainAll removes and returns every pending entry in arrival order.
// The queue is empty afterwards.
func (q *updateQueue) DrainAll() []updateEntry {
	drained := q.entries
	q.entries = make([]updateEntry, 0, 8)
	return drained
}

// Len returns the number of pending entries.
func (q *updateQueue) Len() int {
	return len(q.entries)
}

// cartOpKind identifies a deferred cart operation.
type cartOpKind int

const (
	cartOpAdd cartOpKind = iota + 1
	cartOpRemove
	cartOpSetQuantity
)

// cartOp is one deferred cart operation. Unlike generic writes, a cart op
// cannot be captured as a payload before readiness: it needs the hydrated
// cart to fold aggregates, so the descriptor is queued and applied at drain.
type cartOp struct {
	kind cartOpKind
	item LineItem
	id   string
	qty  int
}

// cartQueue buffers cart operations issued before startup completes.
// FIFO within itself; no ordering guarantee relative to the generic queue
// (the container drains generic writes first, then cart ops).
type cartQueue struct {
	ops []cartOp
}

func newCartQueue() *cartQueue {
	return &cartQueue{ops: make([]cartOp, 0, 8)}
}

func (q *cartQueue) Append(op cartOp) {
	q.ops = append(q.ops, op)
}

func (q *cartQueue) DrainAll() []cartOp {
	drained := q.ops
	q.ops = make([]cartOp, 0, 8)
	return drained
}

func (q *cartQueue) Len() int {
	return len(q.ops)
}

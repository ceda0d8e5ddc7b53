package state

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/halcyon-eng/statecore/internal/persist"
)

// MergeMode selects how a write payload is applied to the tree.
type MergeMode int

const (
	// DeepMerge combines nested mappings key-wise; scalars and nil overwrite.
	DeepMerge MergeMode = iota
	// ShallowReplace substitutes only the top-level keys present in the
	// payload wholesale, leaving sibling top-level keys untouched.
	ShallowReplace
)

// NotifyType tags a notification with how the tree came to be.
type NotifyType string

const (
	// NotifyInitialized - a freshly constructed default tree.
	NotifyInitialized NotifyType = "initialized"
	// NotifyRestored - a tree hydrated from the durable store.
	NotifyRestored NotifyType = "restored"
	// NotifyUpdated - a write (or a consolidated queue drain) was applied.
	NotifyUpdated NotifyType = "updated"
)

// Notification is delivered to subscribers after every committed mutation.
// Tree is a deep copy - subscribers may read it freely without aliasing the
// canonical tree. Revision is strictly increasing per container.
type Notification struct {
	Type     NotifyType
	Revision int64
	Tree     Tree
}

// Default TTL windows for durable records.
const (
	DefaultStateTTL = 30 * 24 * time.Hour
	DefaultFormsTTL = 90 * 24 * time.Hour
)

// Container owns the canonical session state tree.
//
// All mutation goes through Write (directly or via Cart); the tree is never
// handed out by reference. Writes arriving before Start completes are queued
// and replayed in arrival order once the initial tree is established.
//
// Thread-safety model:
//   - Write/Read/Clear: safe from any goroutine (mutex-guarded)
//   - Start: must be called exactly once
//   - Updating: lock-free signal for asynchronous observers (the trigger
//     engine) to distinguish "safe to read" from "write in progress"
type Container struct {
	mu    sync.Mutex
	tree  Tree
	ready bool

	readyCh  chan struct{}
	updating atomic.Bool
	rev      atomic.Int64

	store  *persist.Store // nil = in-memory only
	tokens TokenGenerator

	subs []func(Notification)

	pending     *updateQueue
	pendingCart *cartQueue

	stateTTL time.Duration
	formsTTL time.Duration
}

// Option configures a Container.
type Option func(*Container)

// WithTokenGenerator overrides session token generation. Tests use
// FixedTokens for deterministic trees.
func WithTokenGenerator(g TokenGenerator) Option {
	return func(c *Container) { c.tokens = g }
}

// WithStateTTL overrides the staleness window for the persisted state tree.
func WithStateTTL(ttl time.Duration) Option {
	return func(c *Container) { c.stateTTL = ttl }
}

// WithFormsTTL overrides the staleness window for persisted form entries.
func WithFormsTTL(ttl time.Duration) Option {
	return func(c *Container) { c.formsTTL = ttl }
}

// New creates a Container backed by store. A nil store keeps all state
// in memory; persistence becomes a no-op.
func New(store *persist.Store, opts ...Option) *Container {
	c := &Container{
		readyCh:     make(chan struct{}),
		store:       store,
		tokens:      UUIDv7Generator{},
		pending:     newUpdateQueue(),
		pendingCart: newCartQueue(),
		stateTTL:    DefaultStateTTL,
		formsTTL:    DefaultFormsTTL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Start establishes the initial tree and drains the startup queues.
//
// Hydration order: a persisted snapshot within its TTL restores the previous
// session's tree; a miss (absent, stale, or corrupt) falls through to a fresh
// default tree. Then the generic update queue drains, then the cart queue -
// cart operations fold aggregates over the tree, so they must observe the
// generic writes issued before readiness. Each non-empty drain emits exactly
// one consolidated notification.
//
// After Start returns, Ready() is closed and writes apply immediately.
func (c *Container) Start(ctx context.Context) error {
	tree, typ := c.hydrate(ctx)

	c.mu.Lock()
	c.tree = tree
	c.ready = true

	notifications := []Notification{c.makeNotificationLocked(typ)}

	if n := c.drainUpdatesLocked(); n != nil {
		notifications = append(notifications, *n)
	}
	if n := c.drainCartLocked(); n != nil {
		notifications = append(notifications, *n)
	}

	snapshot := Copy(c.tree)
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.persistState(ctx, snapshot)
	close(c.readyCh)

	for _, n := range notifications {
		for _, fn := range subs {
			fn(n)
		}
	}

	slog.Info("state container ready",
		"type", typ,
		"revision", c.rev.Load(),
	)
	return nil
}

// hydrate loads the persisted tree or builds a default one.
func (c *Container) hydrate(ctx context.Context) (Tree, NotifyType) {
	if c.store == nil {
		return DefaultTree(c.tokens.Generate()), NotifyInitialized
	}

	rec, err := c.store.Get(ctx, persist.KeyState, c.stateTTL)
	if err != nil {
		slog.Debug("no usable state snapshot, building default tree", "reason", err)
		return DefaultTree(c.tokens.Generate()), NotifyInitialized
	}

	var tree Tree
	if err := json.Unmarshal(rec.Value, &tree); err != nil {
		// Corrupt record: treated as a cache miss, not a failure.
		slog.Warn("persisted state snapshot is corrupt, building default tree",
			"error", &Error{Code: ErrCodeParse, Message: "decode state snapshot", Err: err},
		)
		return DefaultTree(c.tokens.Generate()), NotifyInitialized
	}

	return tree, NotifyRestored
}

// drainUpdatesLocked replays queued generic writes in arrival order.
// Returns the consolidated notification, or nil if the queue was empty.
func (c *Container) drainUpdatesLocked() *Notification {
	entries := c.pending.DrainAll()
	if len(entries) == 0 {
		return nil
	}

	c.updating.Store(true)
	next := Copy(c.tree)
	for _, e := range entries {
		applyPayload(next, e.payload, e.mode)
	}
	c.tree = next
	c.updating.Store(false)

	slog.Debug("drained queued updates", "count", len(entries))
	n := c.makeNotificationLocked(NotifyUpdated)
	return &n
}

// drainCartLocked replays queued cart operations in arrival order.
// Returns the consolidated notification, or nil if the queue was empty.
func (c *Container) drainCartLocked() *Notification {
	ops := c.pendingCart.DrainAll()
	if len(ops) == 0 {
		return nil
	}

	c.updating.Store(true)
	next := Copy(c.tree)
	for _, op := range ops {
		if err := applyCartOp(next, op); err != nil {
			slog.Warn("queued cart operation dropped", "error", err)
		}
	}
	c.tree = next
	c.updating.Store(false)

	slog.Debug("drained queued cart operations", "count", len(ops))
	n := c.makeNotificationLocked(NotifyUpdated)
	return &n
}

// makeNotificationLocked stamps the next revision and snapshots the tree.
func (c *Container) makeNotificationLocked(typ NotifyType) Notification {
	return Notification{
		Type:     typ,
		Revision: c.rev.Add(1),
		Tree:     Copy(c.tree),
	}
}

func (c *Container) subscribersLocked() []func(Notification) {
	subs := make([]func(Notification), len(c.subs))
	copy(subs, c.subs)
	return subs
}

// Ready returns a channel closed once the initial tree is established and
// the startup queues are fully drained.
func (c *Container) Ready() <-chan struct{} {
	return c.readyCh
}

// Updating reports whether a write is currently inside its critical section.
// Used by asynchronous observers to avoid dispatching mid-write; it is a
// signal, not a lock.
func (c *Container) Updating() bool {
	return c.updating.Load()
}

// Revision returns the current notification revision.
func (c *Container) Revision() int64 {
	return c.rev.Load()
}

// Subscribe registers fn to receive a deep-copy notification after every
// committed mutation. Subscribers are invoked synchronously in registration
// order and must not call back into Write.
func (c *Container) Subscribe(fn func(Notification)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs = append(c.subs, fn)
}

// Read returns a deep copy of the subtree at the dot-separated path, or the
// whole tree if path is empty. Fails soft before Start completes: logs and
// reports false.
func (c *Container) Read(path string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.ready {
		slog.Warn("state read before container ready", "path", path)
		return nil, false
	}

	v, ok := Lookup(c.tree, path)
	if !ok {
		return nil, false
	}
	return copyValue(v), true
}

// Write validates and applies payload to the tree under mode, persists the
// result, and notifies subscribers with a deep copy of the new tree.
//
// Before Start completes the write is queued instead and replayed at drain
// time; queued writes return nil immediately.
//
// A nil payload is a validation error: logged, dropped, no state mutation.
func (c *Container) Write(ctx context.Context, payload Tree, mode MergeMode) error {
	if payload == nil {
		err := newValidationError("write payload must be a mapping")
		slog.Warn("write dropped", "error", err)
		return err
	}

	c.mu.Lock()
	if !c.ready {
		c.pending.Append(updateEntry{payload: Copy(payload), mode: mode})
		queued := c.pending.Len()
		c.mu.Unlock()
		slog.Debug("write queued before readiness", "pending", queued)
		return nil
	}

	// Critical section: the next tree is fully built before the canonical
	// reference moves, so readers observe prior or next, never partial.
	c.updating.Store(true)
	next := Copy(c.tree)
	applyPayload(next, payload, mode)
	c.tree = next
	c.updating.Store(false)

	n := c.makeNotificationLocked(NotifyUpdated)
	subs := c.subscribersLocked()
	c.mu.Unlock()

	c.persistState(ctx, n.Tree)

	for _, fn := range subs {
		fn(n)
	}
	return nil
}

// applyPayload applies one payload under its merge mode.
func applyPayload(dst, payload Tree, mode MergeMode) {
	switch mode {
	case ShallowReplace:
		Replace(dst, payload)
	default:
		Merge(dst, payload)
	}
}

// persistState records the committed tree, best-effort. A write failure is
// logged and otherwise ignored: the in-memory tree remains authoritative for
// the page's lifetime.
func (c *Container) persistState(ctx context.Context, snapshot Tree) {
	if c.store == nil {
		return
	}

	data, err := json.Marshal(snapshot)
	if err != nil {
		slog.Error("state snapshot not persisted",
			"error", newPersistenceError("encode state snapshot", err))
		return
	}
	if err := c.store.Put(ctx, persist.KeyState, data, ""); err != nil {
		slog.Error("state snapshot not persisted",
			"error", newPersistenceError("store state snapshot", err))
	}
}

// Clear wipes the in-memory tree back to a fresh default and deletes its
// durable record. Independently persisted form-entry data is untouched.
func (c *Container) Clear(ctx context.Context) error {
	c.mu.Lock()
	c.updating.Store(true)
	c.tree = DefaultTree(c.tokens.Generate())
	c.updating.Store(false)

	n := c.makeNotificationLocked(NotifyInitialized)
	subs := c.subscribersLocked()
	c.mu.Unlock()

	if c.store != nil {
		if err := c.store.Delete(ctx, persist.KeyState); err != nil {
			slog.Error("state record not cleared",
				"error", newPersistenceError("delete state record", err))
		}
	}

	for _, fn := range subs {
		fn(n)
	}
	return nil
}

// Status is the diagnostic view exposed by QueueStatus.
type Status struct {
	Ready          bool                     `json:"ready"`
	Revision       int64                    `json:"revision"`
	PendingUpdates int                      `json:"pending_updates"`
	PendingCartOps int                      `json:"pending_cart_ops"`
	CacheAges      map[string]time.Duration `json:"cache_ages"`
}

// QueueStatus reports pending queue lengths and durable cache ages.
// Keys absent from the store are omitted from CacheAges.
func (c *Container) QueueStatus(ctx context.Context) Status {
	c.mu.Lock()
	st := Status{
		Ready:          c.ready,
		Revision:       c.rev.Load(),
		PendingUpdates: c.pending.Len(),
		PendingCartOps: c.pendingCart.Len(),
		CacheAges:      map[string]time.Duration{},
	}
	c.mu.Unlock()

	if c.store == nil {
		return st
	}
	for _, key := range []string{persist.KeyState, persist.KeyForms, persist.KeyRuleSet} {
		age, err := c.store.Age(ctx, key)
		if err != nil {
			continue
		}
		st.CacheAges[key] = age
	}
	return st
}

// SaveFormEntry persists fields under the independent form-entry record.
// Form entries survive Clear and carry their own (longer) TTL.
func (c *Container) SaveFormEntry(ctx context.Context, fields Tree) error {
	if fields == nil {
		err := newValidationError("form entry must be a mapping")
		slog.Warn("form entry dropped", "error", err)
		return err
	}
	if c.store == nil {
		return nil
	}

	data, err := json.Marshal(fields)
	if err != nil {
		perr := newPersistenceError("encode form entry", err)
		slog.Error("form entry not persisted", "error", perr)
		return perr
	}
	if err := c.store.Put(ctx, persist.KeyForms, data, ""); err != nil {
		perr := newPersistenceError("store form entry", err)
		slog.Error("form entry not persisted", "error", perr)
		return perr
	}
	return nil
}

// LoadFormEntry returns the persisted form-entry fields, or false when the
// record is absent, stale, or corrupt.
func (c *Container) LoadFormEntry(ctx context.Context) (Tree, bool) {
	if c.store == nil {
		return nil, false
	}

	rec, err := c.store.Get(ctx, persist.KeyForms, c.formsTTL)
	if err != nil {
		return nil, false
	}

	var fields Tree
	if err := json.Unmarshal(rec.Value, &fields); err != nil {
		slog.Warn("persisted form entry is corrupt",
			"error", &Error{Code: ErrCodeParse, Message: "decode form entry", Err: err})
		return nil, false
	}
	return fields, true
}

package trigger

import "sync"

// fakeHost is an in-memory Host for engine tests: controllable page,
// manually signalled lifecycle phases, and direct interaction delivery.
type fakeHost struct {
	mu        sync.Mutex
	page      Page
	phases    map[Phase]chan struct{}
	listeners map[ListenerKey]fakeListener
}

type fakeListener struct {
	selector string
	fn       func(*Interaction)
}

func newFakeHost(page Page) *fakeHost {
	return &fakeHost{
		page: page,
		phases: map[Phase]chan struct{}{
			PhaseDOMReady: make(chan struct{}),
			PhaseLoad:     make(chan struct{}),
		},
		listeners: map[ListenerKey]fakeListener{},
	}
}

func (h *fakeHost) Page() Page {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.page
}

func (h *fakeHost) PhaseReached(p Phase) bool {
	h.mu.Lock()
	ch := h.phases[p]
	h.mu.Unlock()
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (h *fakeHost) PhaseDone(p Phase) <-chan struct{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.phases[p]
}

// reach marks a lifecycle phase as passed.
func (h *fakeHost) reach(p Phase) {
	h.mu.Lock()
	defer h.mu.Unlock()
	select {
	case <-h.phases[p]:
	default:
		close(h.phases[p])
	}
}

func (h *fakeHost) AddInteractionListener(key ListenerKey, selector string, fn func(*Interaction)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.listeners[key] = fakeListener{selector: selector, fn: fn}
}

func (h *fakeHost) RemoveInteractionListener(key ListenerKey) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.listeners, key)
}

func (h *fakeHost) listenerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.listeners)
}

// click delivers an interaction to every listener whose selector is among
// the target's matched selectors, then runs the default behavior unless a
// listener suppressed it - the host side of the delegation contract.
func (h *fakeHost) click(selectors []string, def *DefaultAction) *Interaction {
	h.mu.Lock()
	var fns []func(*Interaction)
	for _, l := range h.listeners {
		for _, sel := range selectors {
			if l.selector == sel {
				fns = append(fns, l.fn)
				break
			}
		}
	}
	h.mu.Unlock()

	it := &Interaction{Selectors: selectors, Default: def}
	for _, fn := range fns {
		fn(it)
	}
	if def != nil && def.Run != nil && !it.Suppressed() {
		def.Run()
	}
	return it
}

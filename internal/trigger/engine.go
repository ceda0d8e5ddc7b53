package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/halcyon-eng/statecore/internal/state"
)

// Notification is one dispatched trigger event.
type Notification struct {
	Event     string
	RuleIndex int
	Kind      Kind
	Page      Page
}

// Sink receives dispatched notifications. Dispatch is synchronous: for a
// suppressed default action, the sink observably runs strictly before the
// deferred behavior replays.
type Sink func(Notification)

// Engine evaluates a declarative rule set against the host page once the
// state container is ready.
//
// Rules are evaluated in declaration order. Start blocks until the container
// reports readiness (initial tree established, startup queues drained) and no
// write is inside its critical section, so no rule ever observes a
// half-applied tree.
type Engine struct {
	host      Host
	container *state.Container
	rules     []Rule
	sink      Sink
	disabled  bool

	mu     sync.Mutex
	states []RuleState
}

// New creates an Engine for the given rule set. A nil rule set (fetch failed
// with no cached fallback) yields a disabled engine: Start returns
// immediately, no rules are evaluated, nothing crashes.
func New(host Host, container *state.Container, rules []Rule, sink Sink) *Engine {
	e := &Engine{
		host:      host,
		container: container,
		rules:     rules,
		sink:      sink,
		disabled:  rules == nil,
		states:    make([]RuleState, len(rules)),
	}
	for i := range e.states {
		e.states[i] = StatePending
	}
	return e
}

// Disabled reports whether the engine was constructed without a rule set.
func (e *Engine) Disabled() bool {
	return e.disabled
}

// RuleStates returns a copy of the per-rule lifecycle states.
func (e *Engine) RuleStates() []RuleState {
	e.mu.Lock()
	defer e.mu.Unlock()
	states := make([]RuleState, len(e.states))
	copy(states, e.states)
	return states
}

func (e *Engine) setState(idx int, s RuleState) {
	e.mu.Lock()
	e.states[idx] = s
	e.mu.Unlock()
}

// Start waits for container readiness and evaluates every rule in
// declaration order. It returns once all immediate rules have fired and all
// deferred rules (load waiters, click listeners) are installed.
func (e *Engine) Start(ctx context.Context) error {
	if e.disabled {
		slog.Info("trigger engine disabled: no rule set available")
		return nil
	}

	// Readiness gate: initial tree established and startup queues drained.
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-e.container.Ready():
	}

	// Let any in-flight write finish its critical section. Writes are
	// synchronous and short; this loop is the asynchronous observer side of
	// the container's updating signal.
	for e.container.Updating() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Millisecond):
		}
	}

	slog.Info("trigger engine starting", "rules", len(e.rules))

	for i, rule := range e.rules {
		e.evaluate(ctx, i, rule)
	}
	return nil
}

// evaluate applies exclusion and page matching, then arms the rule per its
// kind. Malformed rules are skipped with a warning, never fatal.
func (e *Engine) evaluate(ctx context.Context, idx int, rule Rule) {
	if err := rule.Validate(); err != nil {
		slog.Warn("trigger rule skipped", "index", idx, "error", err)
		e.setState(idx, StateSkipped)
		return
	}

	page := e.host.Page()

	if excluded(rule.Exclude, page) {
		slog.Debug("trigger rule excluded on this page",
			"event", rule.Event, "page", page.Full())
		e.setState(idx, StateSkipped)
		return
	}
	if !pageMatches(rule.Page, page) {
		e.setState(idx, StateSkipped)
		return
	}

	switch rule.Kind {
	case KindPageLoad:
		e.setState(idx, StateArmed)
		e.fire(idx, rule)

	case KindDOMReady:
		e.setState(idx, StateArmed)
		if e.host.PhaseReached(PhaseDOMReady) {
			e.fire(idx, rule)
			return
		}
		go e.fireOnPhase(ctx, idx, rule, PhaseDOMReady)

	case KindLoad:
		e.setState(idx, StateArmed)
		if e.host.PhaseReached(PhaseLoad) {
			e.fire(idx, rule)
			return
		}
		go e.fireOnPhase(ctx, idx, rule, PhaseLoad)

	case KindClick:
		e.installClick(idx, rule)
	}
}

// fireOnPhase dispatches once the host signals the phase, or never if the
// page is abandoned first.
func (e *Engine) fireOnPhase(ctx context.Context, idx int, rule Rule, phase Phase) {
	select {
	case <-ctx.Done():
	case <-e.host.PhaseDone(phase):
		e.fire(idx, rule)
	}
}

// installClick registers the single delegated listener for this rule.
// Exactly one observer exists per (event, ruleIndex, selector) - dynamically
// added matching targets are covered without rebinding, and re-registration
// replaces any previous observer under the same key.
func (e *Engine) installClick(idx int, rule Rule) {
	key := ListenerKey{Event: rule.Event, RuleIndex: idx, Selector: rule.Selector}
	e.host.RemoveInteractionListener(key)
	e.host.AddInteractionListener(key, rule.Selector, func(it *Interaction) {
		e.handleInteraction(idx, rule, it)
	})
	e.setState(idx, StateListening)
	slog.Debug("trigger listener installed",
		"event", rule.Event, "selector", rule.Selector)
}

// handleInteraction dispatches a click rule. With PreventDefault set and an
// interceptable default present, the default is suppressed, the notification
// dispatched, and the original behavior replayed after ResumeDelay - the
// notification is observably dispatched strictly before the deferred action.
func (e *Engine) handleInteraction(idx int, rule Rule, it *Interaction) {
	if rule.PreventDefault && it.Default != nil && it.Default.Run != nil {
		it.Suppress()
		e.dispatch(idx, rule)

		run := it.Default.Run
		time.AfterFunc(rule.ResumeDelay, run)
		slog.Debug("default action deferred",
			"event", rule.Event,
			"kind", it.Default.Kind,
			"delay", rule.ResumeDelay,
		)
		return
	}
	e.dispatch(idx, rule)
}

// fire dispatches a one-shot rule and marks it fired.
func (e *Engine) fire(idx int, rule Rule) {
	e.dispatch(idx, rule)
	e.setState(idx, StateFired)
}

func (e *Engine) dispatch(idx int, rule Rule) {
	page := e.host.Page()
	slog.Info("trigger fired",
		"event", rule.Event,
		"kind", rule.Kind,
		"page", page.Full(),
	)
	if e.sink != nil {
		e.sink(Notification{
			Event:     rule.Event,
			RuleIndex: idx,
			Kind:      rule.Kind,
			Page:      page,
		})
	}
}

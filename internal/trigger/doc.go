// Package trigger implements the declarative event trigger engine.
//
// A rule set (fetched and validated by internal/ruleset) describes named
// notifications to fire based on page identity and interaction patterns:
// one-shot kinds (pageload, domready, load) and delegated click rules.
//
// ORDERING:
//
// Start gates on the state container: the initial tree must be established,
// the startup queues drained, and no write inside its critical section
// before any rule is evaluated. This prevents a rule from observing a
// half-applied tree.
//
// Per rule, exclude patterns are evaluated first (exact or wildcard, over
// path and path+query); then the page pattern (absent or "*" matches all).
// Rules are evaluated in declaration order.
//
// DELEGATION:
//
// Click rules install exactly one observer per (event, ruleIndex, selector)
// key through the host's interaction-notification capability - never one per
// matching element - so targets added after installation are covered without
// rebinding. Re-registering a key replaces the previous observer.
//
// With PreventDefault set and an interceptable default behavior present
// (link navigation, form submission), the behavior is suppressed, the
// notification dispatched, and the behavior replayed after ResumeDelay.
// Dispatch strictly precedes the deferred replay.
//
// FAILURE SEMANTICS:
//
// A rule missing an event name is skipped with a warning. An engine
// constructed without a rule set is disabled: Start returns immediately,
// nothing is evaluated, nothing crashes.
package trigger

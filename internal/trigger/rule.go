package trigger

import (
	"fmt"
	"time"
)

// Kind identifies when a rule fires.
type Kind string

const (
	// KindPageLoad fires as soon as the engine starts on a matching page.
	KindPageLoad Kind = "pageload"
	// KindDOMReady fires once the document structure is available.
	KindDOMReady Kind = "domready"
	// KindLoad fires on the environment's full-resource-load signal.
	KindLoad Kind = "load"
	// KindClick fires on a delegated interaction matching the selector.
	KindClick Kind = "click"
)

// Rule is one declarative trigger: fire the named event on pages matching
// Page (unless excluded) when the Kind condition occurs.
type Rule struct {
	// Event is the notification name to dispatch. A rule without an event
	// name is skipped with a warning.
	Event string

	// Page matches the current page path or path+query; exact match or
	// wildcard ('*' matches any run). Empty or "*" matches all pages.
	Page string

	// Exclude patterns are evaluated first; any match skips the rule.
	Exclude []string

	// Kind selects the firing condition.
	Kind Kind

	// Selector scopes click rules to matching interaction targets.
	// Required for click rules.
	Selector string

	// PreventDefault suppresses the target's interceptable default behavior
	// (link navigation, form submission) until after dispatch.
	PreventDefault bool

	// ResumeDelay is how long after dispatch a suppressed default behavior
	// is replayed.
	ResumeDelay time.Duration
}

// Validate checks structural rule constraints.
func (r Rule) Validate() error {
	if r.Event == "" {
		return fmt.Errorf("rule missing event name")
	}
	switch r.Kind {
	case KindPageLoad, KindDOMReady, KindLoad, KindClick:
	default:
		return fmt.Errorf("rule %q: unknown trigger kind %q", r.Event, r.Kind)
	}
	if r.Kind == KindClick && r.Selector == "" {
		return fmt.Errorf("rule %q: click rules must carry a selector", r.Event)
	}
	return nil
}

// RuleState tracks a rule through its lifecycle:
// pending → armed → fired for one-shot kinds, pending → listening for click,
// pending → skipped when the page does not match or the rule is malformed.
type RuleState string

const (
	StatePending   RuleState = "pending"
	StateSkipped   RuleState = "skipped"
	StateArmed     RuleState = "armed"
	StateFired     RuleState = "fired"
	StateListening RuleState = "listening"
)

package trigger

// Page identifies the current document location.
type Page struct {
	Path  string // e.g. "/checkout"
	Query string // raw query without '?', e.g. "step=2"
}

// Full returns path plus query ("/checkout?step=2"), or just the path when
// there is no query. Patterns are matched against both forms.
func (p Page) Full() string {
	if p.Query == "" {
		return p.Path
	}
	return p.Path + "?" + p.Query
}

// Phase is a document lifecycle point.
type Phase int

const (
	// PhaseDOMReady - document structure available.
	PhaseDOMReady Phase = iota + 1
	// PhaseLoad - all resources finished loading.
	PhaseLoad
)

// DefaultAction is an interceptable default behavior carried by an
// interaction target: link navigation, form submission, or a submit control
// inside a form. Run replays the behavior programmatically.
type DefaultAction struct {
	Kind string // "navigate" | "submit"
	Run  func()
}

// Interaction is one user interaction delivered to a delegated listener.
//
// Selectors lists every registered selector the target matches; the host
// resolves matching, keeping the engine independent of DOM specifics.
// Default is nil when the target has no interceptable behavior.
type Interaction struct {
	Selectors []string
	Default   *DefaultAction

	suppressed bool
}

// Suppress marks the interaction's default behavior as suppressed. The host
// consults Suppressed after listeners return and skips the behavior itself;
// the suppressing listener owns the replay.
func (it *Interaction) Suppress() {
	it.suppressed = true
}

// Suppressed reports whether a listener suppressed the default behavior.
func (it *Interaction) Suppressed() bool {
	return it.suppressed
}

// ListenerKey identifies one delegated interaction subscription. Exactly one
// listener exists per key; re-registering a key replaces the previous
// listener (idempotent re-registration).
type ListenerKey struct {
	Event     string
	RuleIndex int
	Selector  string
}

// Host abstracts the page environment the engine runs against: current page
// identity, lifecycle signals, and a delegated interaction-notification
// capability. One subscription at the document root serves dynamically added
// matching targets; nothing is bound per element.
type Host interface {
	// Page returns the current page identity.
	Page() Page

	// PhaseReached reports whether the lifecycle phase has already passed.
	PhaseReached(Phase) bool

	// PhaseDone returns a channel closed when the phase passes (immediately
	// closed if it already has).
	PhaseDone(Phase) <-chan struct{}

	// AddInteractionListener installs the delegated listener for key,
	// invoked for every interaction whose target matches selector.
	AddInteractionListener(key ListenerKey, selector string, fn func(*Interaction))

	// RemoveInteractionListener uninstalls the listener for key, if any.
	RemoveInteractionListener(key ListenerKey)
}

package trigger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-eng/statecore/internal/state"
)

type recordingSink struct {
	mu    sync.Mutex
	notes []Notification
	times []time.Time
}

func (r *recordingSink) sink(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notes = append(r.notes, n)
	r.times = append(r.times, time.Now())
}

func (r *recordingSink) events() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.notes))
	for i, n := range r.notes {
		out[i] = n.Event
	}
	return out
}

func readyContainer(t *testing.T) *state.Container {
	t.Helper()
	c := state.New(nil, state.WithTokenGenerator(state.NewFixedTokens("sess-trigger")))
	require.NoError(t, c.Start(context.Background()))
	return c
}

func TestEngine_PageLoadFiresOnMatchingPage(t *testing.T) {
	host := newFakeHost(Page{Path: "/checkout"})
	rec := &recordingSink{}
	e := New(host, readyContainer(t), []Rule{
		{Event: "checkout_view", Page: "/checkout", Kind: KindPageLoad},
		{Event: "cart_view", Page: "/cart", Kind: KindPageLoad},
	}, rec.sink)

	require.NoError(t, e.Start(context.Background()))

	assert.Equal(t, []string{"checkout_view"}, rec.events())
	states := e.RuleStates()
	assert.Equal(t, StateFired, states[0])
	assert.Equal(t, StateSkipped, states[1])
}

func TestEngine_ExcludeEvaluatedBeforePagePattern(t *testing.T) {
	host := newFakeHost(Page{Path: "/checkout", Query: "preview=1"})
	rec := &recordingSink{}
	e := New(host, readyContainer(t), []Rule{
		{Event: "checkout_view", Page: "/checkout*", Exclude: []string{"*preview=1*"}, Kind: KindPageLoad},
	}, rec.sink)

	require.NoError(t, e.Start(context.Background()))

	assert.Empty(t, rec.events())
	assert.Equal(t, StateSkipped, e.RuleStates()[0])
}

func TestEngine_MissingEventNameSkippedNonFatal(t *testing.T) {
	host := newFakeHost(Page{Path: "/"})
	rec := &recordingSink{}
	e := New(host, readyContainer(t), []Rule{
		{Event: "", Kind: KindPageLoad},
		{Event: "home_view", Kind: KindPageLoad},
	}, rec.sink)

	require.NoError(t, e.Start(context.Background()))

	assert.Equal(t, []string{"home_view"}, rec.events())
	assert.Equal(t, StateSkipped, e.RuleStates()[0])
}

func TestEngine_ClickRuleWithoutSelectorSkipped(t *testing.T) {
	host := newFakeHost(Page{Path: "/"})
	e := New(host, readyContainer(t), []Rule{
		{Event: "broken_click", Kind: KindClick},
	}, nil)

	require.NoError(t, e.Start(context.Background()))

	assert.Equal(t, StateSkipped, e.RuleStates()[0])
	assert.Zero(t, host.listenerCount())
}

func TestEngine_LoadFiresWhenPhasePasses(t *testing.T) {
	host := newFakeHost(Page{Path: "/"})
	rec := &recordingSink{}
	e := New(host, readyContainer(t), []Rule{
		{Event: "page_loaded", Kind: KindLoad},
	}, rec.sink)

	require.NoError(t, e.Start(context.Background()))
	assert.Empty(t, rec.events(), "load rule must wait for the phase")
	assert.Equal(t, StateArmed, e.RuleStates()[0])

	host.reach(PhaseLoad)

	require.Eventually(t, func() bool {
		return len(rec.events()) == 1
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateFired, e.RuleStates()[0])
}

func TestEngine_LoadFiresImmediatelyIfPhaseAlreadyPassed(t *testing.T) {
	host := newFakeHost(Page{Path: "/"})
	host.reach(PhaseLoad)
	rec := &recordingSink{}
	e := New(host, readyContainer(t), []Rule{
		{Event: "page_loaded", Kind: KindLoad},
	}, rec.sink)

	require.NoError(t, e.Start(context.Background()))

	assert.Equal(t, []string{"page_loaded"}, rec.events())
}

func TestEngine_StartBlocksUntilContainerReady(t *testing.T) {
	host := newFakeHost(Page{Path: "/"})
	c := state.New(nil, state.WithTokenGenerator(state.NewFixedTokens("sess-late")))
	rec := &recordingSink{}
	e := New(host, c, []Rule{
		{Event: "home_view", Kind: KindPageLoad},
	}, rec.sink)

	started := make(chan error, 1)
	go func() { started <- e.Start(context.Background()) }()

	time.Sleep(20 * time.Millisecond)
	assert.Empty(t, rec.events(), "no dispatch before readiness")

	require.NoError(t, c.Start(context.Background()))
	require.NoError(t, <-started)
	assert.Equal(t, []string{"home_view"}, rec.events())
}

func TestEngine_StartCancellableWhileWaiting(t *testing.T) {
	host := newFakeHost(Page{Path: "/"})
	c := state.New(nil, state.WithTokenGenerator(state.NewFixedTokens("sess-cancel")))
	e := New(host, c, []Rule{{Event: "x", Kind: KindPageLoad}}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, e.Start(ctx), context.Canceled)
}

func TestEngine_ClickDelegation(t *testing.T) {
	host := newFakeHost(Page{Path: "/cart"})
	rec := &recordingSink{}
	e := New(host, readyContainer(t), []Rule{
		{Event: "checkout_click", Kind: KindClick, Selector: ".checkout-btn"},
	}, rec.sink)

	require.NoError(t, e.Start(context.Background()))
	assert.Equal(t, StateListening, e.RuleStates()[0])
	assert.Equal(t, 1, host.listenerCount(), "one delegated observer, not one per element")

	// Targets added after installation are covered: any interaction whose
	// target matches the selector reaches the same listener.
	host.click([]string{".checkout-btn"}, nil)
	host.click([]string{".other"}, nil)
	host.click([]string{".checkout-btn", ".big"}, nil)

	assert.Equal(t, []string{"checkout_click", "checkout_click"}, rec.events())
}

func TestEngine_ClickReinstallIsIdempotent(t *testing.T) {
	host := newFakeHost(Page{Path: "/cart"})
	rec := &recordingSink{}
	rules := []Rule{{Event: "checkout_click", Kind: KindClick, Selector: ".checkout-btn"}}

	c := readyContainer(t)
	require.NoError(t, New(host, c, rules, rec.sink).Start(context.Background()))
	require.NoError(t, New(host, c, rules, rec.sink).Start(context.Background()))

	assert.Equal(t, 1, host.listenerCount(), "re-registration replaces the previous observer")
}

// A click rule with preventDefault on a navigation link: the notification is
// dispatched, and the navigation occurs no sooner than ResumeDelay after
// dispatch, never before.
func TestEngine_PreventDefaultDefersNavigation(t *testing.T) {
	host := newFakeHost(Page{Path: "/cart"})
	rec := &recordingSink{}
	e := New(host, readyContainer(t), []Rule{
		{
			Event:          "checkout_click",
			Kind:           KindClick,
			Selector:       ".checkout-btn",
			PreventDefault: true,
			ResumeDelay:    100 * time.Millisecond,
		},
	}, rec.sink)
	require.NoError(t, e.Start(context.Background()))

	navigated := make(chan time.Time, 1)
	it := host.click([]string{".checkout-btn"}, &DefaultAction{
		Kind: "navigate",
		Run:  func() { navigated <- time.Now() },
	})

	assert.True(t, it.Suppressed(), "host must not run the default itself")
	require.Equal(t, []string{"checkout_click"}, rec.events(), "dispatch precedes replay")

	select {
	case at := <-navigated:
		rec.mu.Lock()
		dispatched := rec.times[0]
		rec.mu.Unlock()
		assert.GreaterOrEqual(t, at.Sub(dispatched), 100*time.Millisecond)
	case <-time.After(2 * time.Second):
		t.Fatal("deferred navigation never replayed")
	}
}

func TestEngine_NoPreventDefaultLeavesDefaultAlone(t *testing.T) {
	host := newFakeHost(Page{Path: "/cart"})
	rec := &recordingSink{}
	e := New(host, readyContainer(t), []Rule{
		{Event: "checkout_click", Kind: KindClick, Selector: ".checkout-btn"},
	}, rec.sink)
	require.NoError(t, e.Start(context.Background()))

	ran := false
	it := host.click([]string{".checkout-btn"}, &DefaultAction{
		Kind: "navigate",
		Run:  func() { ran = true },
	})

	assert.False(t, it.Suppressed())
	assert.True(t, ran, "default runs immediately without suppression")
	assert.Equal(t, []string{"checkout_click"}, rec.events())
}

func TestEngine_PreventDefaultWithoutInterceptableDefault(t *testing.T) {
	host := newFakeHost(Page{Path: "/cart"})
	rec := &recordingSink{}
	e := New(host, readyContainer(t), []Rule{
		{Event: "toggle_click", Kind: KindClick, Selector: ".toggle", PreventDefault: true},
	}, rec.sink)
	require.NoError(t, e.Start(context.Background()))

	it := host.click([]string{".toggle"}, nil)

	assert.False(t, it.Suppressed())
	assert.Equal(t, []string{"toggle_click"}, rec.events(), "dispatch without suppression")
}

func TestEngine_DisabledWithoutRuleSet(t *testing.T) {
	host := newFakeHost(Page{Path: "/"})
	c := state.New(nil, state.WithTokenGenerator(state.NewFixedTokens("sess-disabled")))
	// Container never started: a disabled engine must not block on readiness.
	e := New(host, c, nil, nil)

	assert.True(t, e.Disabled())
	require.NoError(t, e.Start(context.Background()))
	assert.Zero(t, host.listenerCount())
}

func TestEngine_EmptyRuleSetIsEnabledAndIdle(t *testing.T) {
	host := newFakeHost(Page{Path: "/"})
	e := New(host, readyContainer(t), []Rule{}, nil)

	assert.False(t, e.Disabled())
	require.NoError(t, e.Start(context.Background()))
}

func TestRule_Validate(t *testing.T) {
	tests := []struct {
		name    string
		rule    Rule
		wantErr bool
	}{
		{"valid pageload", Rule{Event: "e", Kind: KindPageLoad}, false},
		{"valid click", Rule{Event: "e", Kind: KindClick, Selector: ".x"}, false},
		{"missing event", Rule{Kind: KindPageLoad}, true},
		{"click without selector", Rule{Event: "e", Kind: KindClick}, true},
		{"unknown kind", Rule{Event: "e", Kind: "hover"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rule.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

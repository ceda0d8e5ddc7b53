package ruleset

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/halcyon-eng/statecore/internal/persist"
	"github.com/halcyon-eng/statecore/internal/trigger"
)

// DefaultTTL is the freshness window for a cached rule set. A cache younger
// than this is used without touching the network; older copies trigger a
// conditional refetch.
const DefaultTTL = 24 * time.Hour

// Fetcher retrieves the trigger rule set with conditional re-validation,
// using the persistence adapter as its cache.
type Fetcher struct {
	URL    string
	Client *http.Client
	Store  *persist.Store // nil disables caching
	TTL    time.Duration
}

// NewFetcher creates a Fetcher with the default client and TTL.
func NewFetcher(url string, store *persist.Store) *Fetcher {
	return &Fetcher{
		URL:    url,
		Client: &http.Client{Timeout: 10 * time.Second},
		Store:  store,
		TTL:    DefaultTTL,
	}
}

// Load returns the current rule set.
//
// Resolution order:
//  1. A cached copy within TTL is used as-is, no network.
//  2. Otherwise GET the URL, sending If-Modified-Since from the cached
//     record's marker. 304 refreshes the cache timestamp and reuses the
//     cached copy; 200 validates the body against the schema and stores it
//     with the response's Last-Modified marker.
//  3. Any fetch or validation failure falls back to the last cached copy,
//     stale or not. With no cache at all, Load returns nil rules and the
//     error - the caller runs a disabled engine.
func (f *Fetcher) Load(ctx context.Context) ([]trigger.Rule, error) {
	if rules, ok := f.fromCache(ctx); ok {
		slog.Debug("rule set served from cache", "url", f.URL)
		return rules, nil
	}

	rules, err := f.fetch(ctx)
	if err == nil {
		return rules, nil
	}

	slog.Warn("rule-set fetch failed, trying cached fallback", "url", f.URL, "error", err)
	if rules, ok := f.fromStale(ctx); ok {
		return rules, nil
	}
	return nil, err
}

// fromCache decodes the cached rule set if it is within TTL.
func (f *Fetcher) fromCache(ctx context.Context) ([]trigger.Rule, bool) {
	if f.Store == nil {
		return nil, false
	}
	rec, err := f.Store.Get(ctx, persist.KeyRuleSet, f.TTL)
	if err != nil {
		return nil, false
	}
	rs, err := DecodeJSON(rec.Value)
	if err != nil {
		// Corrupt cache: treated as a miss, the fetch path will replace it.
		slog.Warn("cached rule set is corrupt", "error", err)
		return nil, false
	}
	return rs.ToRules(), true
}

// fromStale decodes the cached rule set regardless of age.
func (f *Fetcher) fromStale(ctx context.Context) ([]trigger.Rule, bool) {
	if f.Store == nil {
		return nil, false
	}
	rec, err := f.Store.GetStale(ctx, persist.KeyRuleSet)
	if err != nil {
		return nil, false
	}
	rs, err := DecodeJSON(rec.Value)
	if err != nil {
		return nil, false
	}
	slog.Info("using stale cached rule set", "age", time.Since(rec.WrittenAt))
	return rs.ToRules(), true
}

// fetch performs the conditional GET and caches a validated 200 response.
func (f *Fetcher) fetch(ctx context.Context) ([]trigger.Rule, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build rule-set request: %w", err)
	}
	if marker := f.cachedMarker(ctx); marker != "" {
		req.Header.Set("If-Modified-Since", marker)
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch rule set: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotModified:
		return f.revalidated(ctx)

	case http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("read rule set: %w", err)
		}
		rs, err := DecodeJSON(body)
		if err != nil {
			return nil, err
		}
		f.cache(ctx, body, resp.Header.Get("Last-Modified"))
		slog.Info("rule set fetched", "url", f.URL, "rules", len(rs.Rules))
		return rs.ToRules(), nil

	default:
		return nil, fmt.Errorf("fetch rule set: unexpected status %d", resp.StatusCode)
	}
}

// revalidated handles a 304: the cached copy is still current, so its
// freshness window restarts.
func (f *Fetcher) revalidated(ctx context.Context) ([]trigger.Rule, error) {
	if f.Store == nil {
		return nil, fmt.Errorf("rule-set revalidation without a cache")
	}
	if _, err := f.Store.Touch(ctx, persist.KeyRuleSet); err != nil {
		slog.Warn("rule-set cache not refreshed", "error", err)
	}
	rules, ok := f.fromStale(ctx)
	if !ok {
		return nil, fmt.Errorf("rule-set revalidated but cache unreadable")
	}
	slog.Debug("rule set revalidated", "url", f.URL)
	return rules, nil
}

// cache stores a fetched rule set, best-effort.
func (f *Fetcher) cache(ctx context.Context, body []byte, marker string) {
	if f.Store == nil {
		return
	}
	if err := f.Store.Put(ctx, persist.KeyRuleSet, body, marker); err != nil {
		slog.Warn("rule set not cached", "error", err)
	}
}

// cachedMarker returns the revalidation marker of the cached copy, if any.
func (f *Fetcher) cachedMarker(ctx context.Context) string {
	if f.Store == nil {
		return ""
	}
	return f.Store.Marker(ctx, persist.KeyRuleSet)
}

package ruleset

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/halcyon-eng/statecore/internal/persist"
)

const validBody = `{"rules":[{"event":"checkout_view","page":"/checkout*","trigger":"pageload"}]}`

func newTestStore(t *testing.T) *persist.Store {
	t.Helper()
	s, err := persist.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestFetcher_FetchesAndCaches(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Last-Modified", "Wed, 01 Jan 2025 00:00:00 GMT")
		w.Write([]byte(validBody))
	}))
	defer srv.Close()

	store := newTestStore(t)
	f := NewFetcher(srv.URL, store)
	ctx := context.Background()

	rules, err := f.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "checkout_view", rules[0].Event)
	assert.EqualValues(t, 1, hits.Load())

	rec, err := store.Get(ctx, persist.KeyRuleSet, DefaultTTL)
	require.NoError(t, err)
	assert.Equal(t, "Wed, 01 Jan 2025 00:00:00 GMT", rec.Marker)

	// A fresh cache short-circuits the network entirely.
	_, err = f.Load(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load(), "fresh cache must not refetch")
}

func TestFetcher_RevalidatesWith304(t *testing.T) {
	const marker = "Wed, 01 Jan 2025 00:00:00 GMT"
	var condHits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("If-Modified-Since") == marker {
			condHits.Add(1)
			w.WriteHeader(http.StatusNotModified)
			return
		}
		w.Header().Set("Last-Modified", marker)
		w.Write([]byte(validBody))
	}))
	defer srv.Close()

	store := newTestStore(t)
	ctx := context.Background()

	// Seed a stale cache with the marker.
	require.NoError(t, store.Put(ctx, persist.KeyRuleSet, []byte(validBody), marker))

	f := NewFetcher(srv.URL, store)
	f.TTL = 0 // force revalidation

	rules, err := f.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.EqualValues(t, 1, condHits.Load(), "conditional request sent with If-Modified-Since")

	// 304 restarted the freshness window without changing the payload.
	rec, err := store.Get(ctx, persist.KeyRuleSet, time.Minute)
	require.NoError(t, err)
	assert.JSONEq(t, validBody, string(rec.Value))
}

func TestFetcher_FallsBackToStaleCacheOnFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, persist.KeyRuleSet, []byte(validBody), ""))

	f := NewFetcher(srv.URL, store)
	f.TTL = 0

	rules, err := f.Load(ctx)
	require.NoError(t, err, "stale cache absorbs the failure")
	require.Len(t, rules, 1)
}

func TestFetcher_NoCacheNoNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, newTestStore(t))

	rules, err := f.Load(context.Background())
	assert.Error(t, err)
	assert.Nil(t, rules, "nil rules signal a disabled engine")
}

func TestFetcher_InvalidBodyFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"rules":[{"event":"e","trigger":"hover"}]}`))
	}))
	defer srv.Close()

	store := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, persist.KeyRuleSet, []byte(validBody), ""))

	f := NewFetcher(srv.URL, store)
	f.TTL = 0

	rules, err := f.Load(ctx)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "checkout_view", rules[0].Event, "schema-rejected body never replaces the cache")
}

func TestFetcher_WithoutStore(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(validBody))
	}))
	defer srv.Close()

	f := NewFetcher(srv.URL, nil)

	rules, err := f.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, rules, 1)
}

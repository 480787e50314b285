// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package services

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/atifkhan161/pandora-box-sub000/internal/cache"
	"github.com/atifkhan161/pandora-box-sub000/internal/config"
)

func fakeTMDB(t *testing.T, fetches *int32, failing *atomic.Bool) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(fetches, 1)
		if r.URL.Query().Get("api_key") != "tmdb-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if failing.Load() {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		fmt.Fprint(w, `{"page":1,"results":[{"id":550,"title":"Fight Club","vote_average":8.4}],"total_pages":10,"total_results":200}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestTMDB(srv *httptest.Server) *TMDBClient {
	return NewTMDBClient(config.TokenService{
		URL:     srv.URL,
		APIKey:  "tmdb-key",
		Timeout: 5 * time.Second,
	}, cache.NewStore(), time.Hour)
}

func TestTMDBTrendingServedFromCache(t *testing.T) {
	var fetches int32
	var failing atomic.Bool
	client := newTestTMDB(fakeTMDB(t, &fetches, &failing))
	ctx := context.Background()

	first, err := client.Trending(ctx, "movie", "week", 1)
	if err != nil {
		t.Fatalf("first Trending failed: %v", err)
	}
	if len(first.Results) != 1 || first.Results[0].Title != "Fight Club" {
		t.Fatalf("unexpected page: %+v", first)
	}

	// Second identical call stays local.
	second, err := client.Trending(ctx, "movie", "week", 1)
	if err != nil {
		t.Fatalf("second Trending failed: %v", err)
	}
	if second.Results[0].ID != 550 {
		t.Errorf("cached page differs: %+v", second)
	}
	if got := atomic.LoadInt32(&fetches); got != 1 {
		t.Errorf("upstream fetched %d times, want 1", got)
	}

	// A different page is a different cache key.
	if _, err := client.Trending(ctx, "movie", "week", 2); err != nil {
		t.Fatalf("page 2 Trending failed: %v", err)
	}
	if got := atomic.LoadInt32(&fetches); got != 2 {
		t.Errorf("upstream fetched %d times, want 2", got)
	}
}

func TestTMDBErrorsAreNotCached(t *testing.T) {
	var fetches int32
	var failing atomic.Bool
	failing.Store(true)
	client := newTestTMDB(fakeTMDB(t, &fetches, &failing))
	ctx := context.Background()

	if _, err := client.Popular(ctx, "movie", 1); err == nil {
		t.Fatal("expected error from failing upstream")
	}

	// Once the upstream recovers the same request succeeds: the failure was
	// not written into the cache.
	failing.Store(false)
	page, err := client.Popular(ctx, "movie", 1)
	if err != nil {
		t.Fatalf("Popular after recovery failed: %v", err)
	}
	if len(page.Results) != 1 {
		t.Errorf("unexpected page after recovery: %+v", page)
	}
	if got := atomic.LoadInt32(&fetches); got != 2 {
		t.Errorf("upstream fetched %d times, want 2", got)
	}
}

func TestTMDBSearchBadKey(t *testing.T) {
	var fetches int32
	var failing atomic.Bool
	srv := fakeTMDB(t, &fetches, &failing)
	client := NewTMDBClient(config.TokenService{
		URL:     srv.URL,
		APIKey:  "wrong",
		Timeout: 5 * time.Second,
	}, cache.NewStore(), time.Hour)

	if _, err := client.SearchCatalog(context.Background(), "dune", 1); !IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

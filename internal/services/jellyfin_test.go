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

func fakeJellyfin(t *testing.T, fetches *int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(fetches, 1)
		if r.Header.Get("X-Emby-Token") != "jelly-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch r.URL.Path {
		case "/Items/Counts":
			fmt.Fprint(w, `{"MovieCount":120,"SeriesCount":14,"EpisodeCount":412,"SongCount":0}`)
		case "/Sessions":
			fmt.Fprint(w, `[{"Id":"s1","UserName":"atif","Client":"web","NowPlayingItem":{"Name":"Dune","Type":"Movie"}}]`)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newTestJellyfin(srv *httptest.Server) *JellyfinClient {
	return NewJellyfinClient(config.TokenService{
		URL:     srv.URL,
		APIKey:  "jelly-key",
		Timeout: 5 * time.Second,
	}, cache.NewStore(), 5*time.Minute)
}

func TestJellyfinCountsServedFromCache(t *testing.T) {
	var fetches int32
	client := newTestJellyfin(fakeJellyfin(t, &fetches))
	ctx := context.Background()

	first, err := client.Counts(ctx)
	if err != nil {
		t.Fatalf("first Counts failed: %v", err)
	}
	if first.MovieCount != 120 || first.EpisodeCount != 412 {
		t.Fatalf("unexpected counts: %+v", first)
	}

	second, err := client.Counts(ctx)
	if err != nil {
		t.Fatalf("second Counts failed: %v", err)
	}
	if second.MovieCount != 120 {
		t.Errorf("cached counts differ: %+v", second)
	}
	if got := atomic.LoadInt32(&fetches); got != 1 {
		t.Errorf("library queried %d times, want 1", got)
	}
}

func TestJellyfinActiveSessionsAlwaysLive(t *testing.T) {
	var fetches int32
	client := newTestJellyfin(fakeJellyfin(t, &fetches))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		sessions, err := client.ActiveSessions(ctx)
		if err != nil {
			t.Fatalf("ActiveSessions %d failed: %v", i, err)
		}
		if len(sessions) != 1 || sessions[0].UserName != "atif" {
			t.Fatalf("unexpected sessions: %+v", sessions)
		}
		if sessions[0].NowPlayingItem == nil || sessions[0].NowPlayingItem.Name != "Dune" {
			t.Errorf("now playing not decoded: %+v", sessions[0])
		}
	}
	if got := atomic.LoadInt32(&fetches); got != 2 {
		t.Errorf("sessions queried %d times, want 2", got)
	}
}

func TestJellyfinBadToken(t *testing.T) {
	var fetches int32
	srv := fakeJellyfin(t, &fetches)
	client := NewJellyfinClient(config.TokenService{
		URL:     srv.URL,
		APIKey:  "wrong",
		Timeout: 5 * time.Second,
	}, cache.NewStore(), 5*time.Minute)

	if _, err := client.Counts(context.Background()); !IsAuthError(err) {
		t.Fatalf("expected auth error, got %v", err)
	}
}

// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// fakeUpstream is a session-authenticated test server. /login hands out a
// new bearer token; data paths answer 401 unless the presented token matches
// the currently valid one.
type fakeUpstream struct {
	mu         sync.Mutex
	logins     int32
	dataCalls  int32
	validToken string
	dataStatus int // overrides the data response status when non-zero
	rejectAll  bool
}

func (f *fakeUpstream) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&f.logins, 1)
		f.mu.Lock()
		f.validToken = fmt.Sprintf("token-%d", n)
		token := f.validToken
		f.mu.Unlock()
		fmt.Fprintf(w, `{"token":%q}`, token)
	})
	mux.HandleFunc("/data", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&f.dataCalls, 1)
		f.mu.Lock()
		valid := "Bearer " + f.validToken
		status := f.dataStatus
		reject := f.rejectAll
		f.mu.Unlock()

		if reject || r.Header.Get("Authorization") != valid {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if status != 0 {
			w.WriteHeader(status)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	})
	return mux
}

// expireToken invalidates the current token server-side without the client
// knowing, simulating an early session expiry.
func (f *fakeUpstream) expireToken() {
	f.mu.Lock()
	f.validToken = "rotated-away"
	f.mu.Unlock()
}

func testLogin(ctx context.Context, httpClient *http.Client, baseURL, username, password string) (Credential, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/login", http.NoBody)
	if err != nil {
		return Credential{}, err
	}
	resp, err := httpClient.Do(req)
	if err != nil {
		return Credential{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return Credential{}, fmt.Errorf("login status %d", resp.StatusCode)
	}
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Credential{}, err
	}
	return Credential{Bearer: body.Token}, nil
}

func newTestSessionClient(t *testing.T, upstream *fakeUpstream, ttl time.Duration) (*SessionClient, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(upstream.handler())
	t.Cleanup(srv.Close)
	return NewSessionClient("testsvc", srv.URL, "user", "pass", ttl, 5*time.Second, testLogin), srv
}

func TestSessionClientSingleLoginUnderConcurrency(t *testing.T) {
	upstream := &fakeUpstream{}
	client, _ := newTestSessionClient(t, upstream, time.Hour)

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/data"})
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
	}
	if got := atomic.LoadInt32(&upstream.logins); got != 1 {
		t.Errorf("expected exactly 1 login, got %d", got)
	}
}

func TestSessionClientReloginAfterServerSideExpiry(t *testing.T) {
	upstream := &fakeUpstream{}
	client, _ := newTestSessionClient(t, upstream, time.Hour)

	if _, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/data"}); err != nil {
		t.Fatalf("first request failed: %v", err)
	}

	// The upstream drops the session early; the local TTL still trusts it.
	upstream.expireToken()

	body, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/data"})
	if err != nil {
		t.Fatalf("request after server-side expiry failed: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected body %q", body)
	}
	if got := atomic.LoadInt32(&upstream.logins); got != 2 {
		t.Errorf("expected 2 logins (initial + one re-login), got %d", got)
	}
}

func TestSessionClientSecondRejectionIsTerminal(t *testing.T) {
	upstream := &fakeUpstream{rejectAll: true}
	client, _ := newTestSessionClient(t, upstream, time.Hour)

	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/data"})
	if err == nil {
		t.Fatal("expected error when upstream rejects every session")
	}
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected *AuthError, got %T: %v", err, err)
	}
	if authErr.Service != "testsvc" {
		t.Errorf("AuthError.Service = %q, want testsvc", authErr.Service)
	}
	// Initial attempt plus exactly one retry, never a storm.
	if got := atomic.LoadInt32(&upstream.dataCalls); got != 2 {
		t.Errorf("expected 2 data attempts, got %d", got)
	}
	if got := atomic.LoadInt32(&upstream.logins); got != 2 {
		t.Errorf("expected 2 logins, got %d", got)
	}
}

func TestSessionClientLoginFailureIsAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	client := NewSessionClient("testsvc", srv.URL, "user", "bad-pass", time.Hour, 5*time.Second, testLogin)

	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/data"})
	if !IsAuthError(err) {
		t.Fatalf("expected auth error from failed login, got %v", err)
	}
	// No session may be cached after a failed login.
	if client.currentSession() != nil {
		t.Error("session cached despite login failure")
	}
}

func TestSessionClientLocalTTLExpiry(t *testing.T) {
	upstream := &fakeUpstream{}
	client, _ := newTestSessionClient(t, upstream, 10*time.Minute)

	now := time.Now()
	client.now = func() time.Time { return now }

	if _, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/data"}); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if got := atomic.LoadInt32(&upstream.logins); got != 1 {
		t.Fatalf("expected 1 login, got %d", got)
	}

	// Exactly at the TTL boundary the session is no longer trusted.
	now = now.Add(10 * time.Minute)

	if _, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/data"}); err != nil {
		t.Fatalf("request after TTL failed: %v", err)
	}
	if got := atomic.LoadInt32(&upstream.logins); got != 2 {
		t.Errorf("expected re-login after TTL elapsed, got %d logins", got)
	}
}

func TestSessionClientNonAuthFailureKeepsSession(t *testing.T) {
	upstream := &fakeUpstream{}
	client, _ := newTestSessionClient(t, upstream, time.Hour)

	if _, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/data"}); err != nil {
		t.Fatalf("first request failed: %v", err)
	}

	upstream.mu.Lock()
	upstream.dataStatus = http.StatusInternalServerError
	upstream.mu.Unlock()

	_, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/data"})
	var upstreamErr *UpstreamError
	if !errors.As(err, &upstreamErr) {
		t.Fatalf("expected *UpstreamError, got %T: %v", err, err)
	}
	if upstreamErr.StatusCode != http.StatusInternalServerError {
		t.Errorf("StatusCode = %d, want 500", upstreamErr.StatusCode)
	}

	// A 500 is not an auth failure; the session survives and no re-login
	// happens on the next call.
	upstream.mu.Lock()
	upstream.dataStatus = 0
	upstream.mu.Unlock()

	if _, err := client.Do(context.Background(), Request{Method: http.MethodGet, Path: "/data"}); err != nil {
		t.Fatalf("request after recovery failed: %v", err)
	}
	if got := atomic.LoadInt32(&upstream.logins); got != 1 {
		t.Errorf("expected no re-login around a 500, got %d logins", got)
	}
}

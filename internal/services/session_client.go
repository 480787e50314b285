// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/atifkhan161/pandora-box-sub000/internal/logging"
	"github.com/atifkhan161/pandora-box-sub000/internal/metrics"
)

// Credential is the opaque proof of a live upstream session: a cookie
// (qBittorrent's SID) or a bearer token (Portainer, File Browser).
type Credential struct {
	Cookie *http.Cookie
	Bearer string
}

// LoginFunc performs the service-specific login call and returns a fresh
// credential. It is invoked under the client's login mutex, never
// concurrently with itself.
type LoginFunc func(ctx context.Context, httpClient *http.Client, baseURL, username, password string) (Credential, error)

// session is the current credential with its validity window.
type session struct {
	credential Credential
	obtainedAt time.Time
}

// SessionClient wraps an HTTP client for one session-authenticated upstream.
// There is exactly one instance per configured service, shared process-wide
// through the Registry, so the session is a per-service singleton.
//
// The client re-logs-in transparently in two cases: the locally tracked TTL
// has elapsed, or the upstream rejects the credential with an auth-class
// status (the session expired server-side early). A rejected call is retried
// exactly once after re-login; a second rejection surfaces as *AuthError.
// This bounds re-login attempts per call, so a misconfigured or down upstream
// cannot trigger a login storm.
type SessionClient struct {
	Service string

	baseURL    string
	username   string
	password   string
	sessionTTL time.Duration
	httpClient *http.Client
	login      LoginFunc

	// loginMu serializes the login step only, not the whole request
	// pipeline: N concurrent callers with no valid session produce one
	// login, then proceed in parallel.
	loginMu sync.Mutex

	// mu guards the session state.
	mu   sync.RWMutex
	sess *session

	// now is swappable for expiry tests.
	now func() time.Time
}

// NewSessionClient builds a session client for one upstream. timeout bounds
// every request including the login call.
func NewSessionClient(service, baseURL, username, password string, sessionTTL, timeout time.Duration, login LoginFunc) *SessionClient {
	return &SessionClient{
		Service:    service,
		baseURL:    baseURL,
		username:   username,
		password:   password,
		sessionTTL: sessionTTL,
		httpClient: &http.Client{Timeout: timeout},
		login:      login,
		now:        time.Now,
	}
}

// BaseURL returns the configured upstream base URL.
func (c *SessionClient) BaseURL() string { return c.baseURL }

// currentSession returns the session if one exists and its TTL has not
// elapsed.
func (c *SessionClient) currentSession() *session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.sess == nil || c.now().Sub(c.sess.obtainedAt) >= c.sessionTTL {
		return nil
	}
	return c.sess
}

// invalidate drops the current session unconditionally. Called on any
// auth-class response regardless of the local timestamp.
func (c *SessionClient) invalidate() {
	c.mu.Lock()
	c.sess = nil
	c.mu.Unlock()
}

// EnsureAuthenticated guarantees a usable session, logging in if the current
// one is absent or past its TTL. Returns *AuthError when login fails; no
// session is cached on failure.
func (c *SessionClient) EnsureAuthenticated(ctx context.Context) error {
	if c.currentSession() != nil {
		return nil
	}

	c.loginMu.Lock()
	defer c.loginMu.Unlock()

	// Another caller may have logged in while this one waited.
	if c.currentSession() != nil {
		return nil
	}

	cred, err := c.login(ctx, c.httpClient, c.baseURL, c.username, c.password)
	if err != nil {
		return &AuthError{Service: c.Service, Err: err}
	}

	c.mu.Lock()
	c.sess = &session{credential: cred, obtainedAt: c.now()}
	c.mu.Unlock()

	metrics.UpstreamRelogins.WithLabelValues(c.Service).Inc()
	logging.Debug().Str("service", c.Service).Msg("upstream session established")
	return nil
}

// Request describes one upstream call. Body is raw bytes so the call can be
// replayed after a re-login.
type Request struct {
	Method      string
	Path        string
	Query       url.Values
	Body        []byte
	ContentType string
}

// Do executes the request against the upstream, authenticating first and
// absorbing at most one server-side session expiry. The response body is
// returned fully read; non-2xx statuses (other than the single retried
// auth-class one) are *UpstreamError.
func (c *SessionClient) Do(ctx context.Context, req Request) ([]byte, error) {
	start := time.Now()
	body, err := c.doOnce(ctx, req)

	if err != nil && isAuthFailure(err) {
		// The upstream rejected a session the local TTL still trusted.
		// Invalidate, log in once, retry the original call once.
		c.invalidate()
		if authErr := c.EnsureAuthenticated(ctx); authErr != nil {
			metrics.UpstreamRequestDuration.WithLabelValues(c.Service, "auth_error").Observe(time.Since(start).Seconds())
			return nil, authErr
		}
		body, err = c.doOnce(ctx, req)
		if err != nil && isAuthFailure(err) {
			metrics.UpstreamRequestDuration.WithLabelValues(c.Service, "auth_error").Observe(time.Since(start).Seconds())
			c.invalidate()
			return nil, &AuthError{Service: c.Service, Err: err}
		}
	}

	outcome := "success"
	if err != nil {
		outcome = "upstream_error"
	}
	metrics.UpstreamRequestDuration.WithLabelValues(c.Service, outcome).Observe(time.Since(start).Seconds())
	return body, err
}

// DoJSON executes the request and decodes the JSON response into result when
// result is non-nil.
func (c *SessionClient) DoJSON(ctx context.Context, req Request, result interface{}) error {
	body, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		return &UpstreamError{Service: c.Service, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// doOnce performs a single authenticated attempt.
func (c *SessionClient) doOnce(ctx context.Context, req Request) ([]byte, error) {
	if err := c.EnsureAuthenticated(ctx); err != nil {
		return nil, err
	}
	sess := c.currentSession()
	if sess == nil {
		// TTL elapsed between EnsureAuthenticated and here; treat as an
		// auth failure so the retry path re-logs-in.
		return nil, &authStatusError{status: http.StatusUnauthorized}
	}

	var bodyReader io.Reader = http.NoBody
	if len(req.Body) > 0 {
		bodyReader = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.Path, bodyReader)
	if err != nil {
		return nil, &UpstreamError{Service: c.Service, Err: fmt.Errorf("create request: %w", err)}
	}
	if len(req.Query) > 0 {
		httpReq.URL.RawQuery = req.Query.Encode()
	}
	if req.ContentType != "" {
		httpReq.Header.Set("Content-Type", req.ContentType)
	}
	httpReq.Header.Set("Accept", "application/json")

	if sess.credential.Cookie != nil {
		httpReq.AddCookie(sess.credential.Cookie)
	}
	if sess.credential.Bearer != "" {
		httpReq.Header.Set("Authorization", "Bearer "+sess.credential.Bearer)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		// Timeouts and transport failures are upstream errors; they do
		// not invalidate the session.
		return nil, &UpstreamError{Service: c.Service, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &UpstreamError{Service: c.Service, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, &authStatusError{status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &UpstreamError{
			Service:    c.Service,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s %s: %s", req.Method, req.Path, resp.Status),
		}
	}

	return data, nil
}

// authStatusError marks an auth-class HTTP status internally so Do can
// distinguish "session rejected" from other upstream failures. It never
// escapes the package: Do converts it to *AuthError when terminal.
type authStatusError struct {
	status int
}

func (e *authStatusError) Error() string {
	return fmt.Sprintf("upstream rejected session with status %d", e.status)
}

func isAuthFailure(err error) bool {
	var ase *authStatusError
	return errors.As(err, &ase)
}

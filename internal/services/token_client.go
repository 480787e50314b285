// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/goccy/go-json"

	"github.com/atifkhan161/pandora-box-sub000/internal/metrics"
)

// TokenClient is the simpler counterpart of SessionClient for upstreams that
// take a static API key on every request (Jackett, Jellyfin, TMDB). There is
// no session lifecycle: an auth-class response means the configured key is
// wrong and surfaces immediately as *AuthError, with no retry.
type TokenClient struct {
	Service string

	baseURL    string
	httpClient *http.Client

	// authorize attaches the key in the service's preferred position
	// (query parameter or header).
	authorize func(req *http.Request)
}

// NewTokenClient builds an API-key client. authorize must not be nil.
func NewTokenClient(service, baseURL string, timeout time.Duration, authorize func(req *http.Request)) *TokenClient {
	return &TokenClient{
		Service:    service,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		authorize:  authorize,
	}
}

// GetJSON performs an authorized GET and decodes the JSON response into
// result when result is non-nil.
func (c *TokenClient) GetJSON(ctx context.Context, path string, query url.Values, result interface{}) error {
	start := time.Now()
	err := c.getJSON(ctx, path, query, result)

	outcome := "success"
	switch {
	case IsAuthError(err):
		outcome = "auth_error"
	case err != nil:
		outcome = "upstream_error"
	}
	metrics.UpstreamRequestDuration.WithLabelValues(c.Service, outcome).Observe(time.Since(start).Seconds())
	return err
}

func (c *TokenClient) getJSON(ctx context.Context, path string, query url.Values, result interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return &UpstreamError{Service: c.Service, Err: fmt.Errorf("create request: %w", err)}
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &UpstreamError{Service: c.Service, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &AuthError{Service: c.Service, Err: fmt.Errorf("upstream rejected api key with status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		return &UpstreamError{
			Service:    c.Service,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("GET %s: %s", path, resp.Status),
		}
	}

	if result == nil {
		_, err := io.Copy(io.Discard, resp.Body)
		return err
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return &UpstreamError{Service: c.Service, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

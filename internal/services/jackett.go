// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package services

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"

	"github.com/atifkhan161/pandora-box-sub000/internal/cache"
	"github.com/atifkhan161/pandora-box-sub000/internal/config"
	"github.com/atifkhan161/pandora-box-sub000/internal/logging"
	"github.com/atifkhan161/pandora-box-sub000/internal/metrics"
)

const searchNamespace = "jackett"

// SearchResult is one indexer hit.
type SearchResult struct {
	Title        string `json:"Title"`
	Tracker      string `json:"Tracker"`
	CategoryDesc string `json:"CategoryDesc"`
	MagnetURI    string `json:"MagnetUri"`
	Link         string `json:"Link"`
	Size         int64  `json:"Size"`
	Seeders      int    `json:"Seeders"`
	Peers        int    `json:"Peers"`
	PublishDate  string `json:"PublishDate"`
}

// jackettSearchResponse wraps the results array of /api/v2.0/indexers/all/results.
type jackettSearchResponse struct {
	Results []SearchResult `json:"Results"`
}

// JackettClient is the torrent search indexer integration. Searches fan out
// to every configured tracker upstream and can take tens of seconds or hang
// when trackers misbehave, so calls run behind a circuit breaker: after a
// sustained failure rate the breaker opens and searches fail fast until the
// indexer recovers.
type JackettClient struct {
	client  *TokenClient
	apiKey  string
	cache   *cache.Store
	ttl     time.Duration
	breaker *gobreaker.CircuitBreaker[[]SearchResult]
}

// NewJackettClient builds the indexer client from config. Search results are
// cached under the "jackett" namespace for the given TTL: a search fans out
// to every configured tracker, and repeat queries are common while the user
// compares results.
func NewJackettClient(cfg config.TokenService, cacheStore *cache.Store, ttl time.Duration) *JackettClient {
	apiKey := cfg.APIKey
	authorize := func(req *http.Request) {
		q := req.URL.Query()
		q.Set("apikey", apiKey)
		req.URL.RawQuery = q.Encode()
	}

	cbName := "jackett-search"
	cb := gobreaker.NewCircuitBreaker[[]SearchResult](gobreaker.Settings{
		Name:        cbName,
		MaxRequests: 2,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 5 {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= 0.6
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Info().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit breaker state change")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
		},
	})
	metrics.CircuitBreakerState.WithLabelValues(cbName).Set(0)

	return &JackettClient{
		client:  NewTokenClient("jackett", cfg.URL, cfg.Timeout, authorize),
		apiKey:  apiKey,
		cache:   cacheStore,
		ttl:     ttl,
		breaker: cb,
	}
}

// Search queries all configured indexers for q. Recent identical searches
// are answered from cache without touching the breaker; when the breaker is
// open, uncached calls fail fast with *UpstreamError without reaching the
// indexer. Failed searches are never cached.
func (c *JackettClient) Search(ctx context.Context, q string, categories []string) ([]SearchResult, error) {
	key := cache.RequestKey(struct {
		Query      string
		Categories []string
	}{q, categories})
	if cached, ok := c.cache.Get(searchNamespace, "results", key); ok {
		if results, ok := cached.([]SearchResult); ok {
			return results, nil
		}
	}

	results, err := c.breaker.Execute(func() ([]SearchResult, error) {
		query := url.Values{}
		query.Set("Query", q)
		for _, cat := range categories {
			query.Add("Category[]", cat)
		}

		var resp jackettSearchResponse
		if err := c.client.GetJSON(ctx, "/api/v2.0/indexers/all/results", query, &resp); err != nil {
			return nil, err
		}
		return resp.Results, nil
	})
	if err != nil {
		var ue *UpstreamError
		if IsAuthError(err) || errors.As(err, &ue) {
			return nil, err
		}
		// Breaker-open and half-open rejections arrive untyped.
		return nil, &UpstreamError{Service: "jackett", Err: err}
	}

	c.cache.Set(searchNamespace, "results", key, results, c.ttl)
	return results, nil
}

// Healthy reports whether searches are currently being attempted. An open
// breaker means recent searches kept failing and calls fail fast.
func (c *JackettClient) Healthy() bool {
	return c.breaker.State() != gobreaker.StateOpen
}

func breakerStateValue(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}

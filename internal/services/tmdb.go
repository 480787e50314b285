// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/atifkhan161/pandora-box-sub000/internal/cache"
	"github.com/atifkhan161/pandora-box-sub000/internal/config"
)

// CatalogItem is one metadata catalog entry (movie or TV show).
type CatalogItem struct {
	ID           int64   `json:"id"`
	Title        string  `json:"title"`
	Name         string  `json:"name"` // TV results carry name instead of title
	Overview     string  `json:"overview"`
	PosterPath   string  `json:"poster_path"`
	BackdropPath string  `json:"backdrop_path"`
	ReleaseDate  string  `json:"release_date"`
	FirstAirDate string  `json:"first_air_date"`
	VoteAverage  float64 `json:"vote_average"`
	MediaType    string  `json:"media_type"`
}

// CatalogPage is one page of catalog results.
type CatalogPage struct {
	Page         int           `json:"page"`
	Results      []CatalogItem `json:"results"`
	TotalPages   int           `json:"total_pages"`
	TotalResults int           `json:"total_results"`
}

const catalogNamespace = "tmdb"

// TMDBClient is the metadata catalog integration. The catalog is both rate
// limited and the slowest-changing data the box serves, so every read goes
// through the TTL cache and outbound calls are throttled with a limiter
// kept safely under the upstream's documented request budget.
type TMDBClient struct {
	client  *TokenClient
	cache   *cache.Store
	ttl     time.Duration
	limiter *rate.Limiter
}

// NewTMDBClient builds the catalog client. Cached payloads live in cacheStore
// under the "tmdb" namespace with the configured catalog TTL.
func NewTMDBClient(cfg config.TokenService, cacheStore *cache.Store, ttl time.Duration) *TMDBClient {
	apiKey := cfg.APIKey
	authorize := func(req *http.Request) {
		q := req.URL.Query()
		q.Set("api_key", apiKey)
		req.URL.RawQuery = q.Encode()
	}

	return &TMDBClient{
		client:  NewTokenClient("tmdb", cfg.URL, cfg.Timeout, authorize),
		cache:   cacheStore,
		ttl:     ttl,
		limiter: rate.NewLimiter(rate.Limit(20), 40),
	}
}

// Trending returns the trending page for mediaType ("movie" or "tv") over
// timeWindow ("day" or "week").
func (c *TMDBClient) Trending(ctx context.Context, mediaType, timeWindow string, page int) (*CatalogPage, error) {
	path := fmt.Sprintf("/trending/%s/%s", mediaType, timeWindow)
	query := url.Values{}
	query.Set("page", fmt.Sprintf("%d", page))
	return c.cachedPage(ctx, "trending", path, query)
}

// SearchCatalog searches the catalog across movies and TV.
func (c *TMDBClient) SearchCatalog(ctx context.Context, q string, page int) (*CatalogPage, error) {
	query := url.Values{}
	query.Set("query", q)
	query.Set("page", fmt.Sprintf("%d", page))
	return c.cachedPage(ctx, "search", "/search/multi", query)
}

// Popular returns the popular page for mediaType.
func (c *TMDBClient) Popular(ctx context.Context, mediaType string, page int) (*CatalogPage, error) {
	path := fmt.Sprintf("/%s/popular", mediaType)
	query := url.Values{}
	query.Set("page", fmt.Sprintf("%d", page))
	return c.cachedPage(ctx, "popular", path, query)
}

// cachedPage serves the request from cache when fresh, otherwise fetches
// upstream and overwrites the entry. Errors are returned without touching
// the cache: a failed fetch must not poison the next read.
func (c *TMDBClient) cachedPage(ctx context.Context, category, path string, query url.Values) (*CatalogPage, error) {
	key := cache.RequestKey(struct {
		Path  string
		Query string
	}{path, query.Encode()})

	if cached, ok := c.cache.Get(catalogNamespace, category, key); ok {
		if page, ok := cached.(*CatalogPage); ok {
			return page, nil
		}
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &UpstreamError{Service: "tmdb", Err: err}
	}

	var page CatalogPage
	if err := c.client.GetJSON(ctx, path, query, &page); err != nil {
		return nil, err
	}

	c.cache.Set(catalogNamespace, category, key, &page, c.ttl)
	return &page, nil
}

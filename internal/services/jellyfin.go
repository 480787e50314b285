// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package services

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/atifkhan161/pandora-box-sub000/internal/cache"
	"github.com/atifkhan161/pandora-box-sub000/internal/config"
)

const libraryNamespace = "jellyfin"

// LibraryCounts summarizes the media library server's holdings.
type LibraryCounts struct {
	MovieCount   int `json:"MovieCount"`
	SeriesCount  int `json:"SeriesCount"`
	EpisodeCount int `json:"EpisodeCount"`
	SongCount    int `json:"SongCount"`
}

// JellyfinSession is one active playback session on the library server.
type JellyfinSession struct {
	ID             string `json:"Id"`
	UserName       string `json:"UserName"`
	Client         string `json:"Client"`
	NowPlayingItem *struct {
		Name string `json:"Name"`
		Type string `json:"Type"`
	} `json:"NowPlayingItem"`
}

// JellyfinClient is the media-library server integration, authenticated with
// a static access token header.
type JellyfinClient struct {
	client *TokenClient
	cache  *cache.Store
	ttl    time.Duration
}

// NewJellyfinClient builds the client from config. Library counts are cached
// under the "jellyfin" namespace for the given TTL.
func NewJellyfinClient(cfg config.TokenService, cacheStore *cache.Store, ttl time.Duration) *JellyfinClient {
	apiKey := cfg.APIKey
	authorize := func(req *http.Request) {
		req.Header.Set("X-Emby-Token", apiKey)
	}
	return &JellyfinClient{
		client: NewTokenClient("jellyfin", cfg.URL, cfg.Timeout, authorize),
		cache:  cacheStore,
		ttl:    ttl,
	}
}

// Counts returns the library item counts. The totals move slowly, so they
// are served from cache; session data is always fetched live.
func (c *JellyfinClient) Counts(ctx context.Context) (*LibraryCounts, error) {
	if cached, ok := c.cache.Get(libraryNamespace, "counts", "all"); ok {
		if counts, ok := cached.(*LibraryCounts); ok {
			return counts, nil
		}
	}

	var counts LibraryCounts
	if err := c.client.GetJSON(ctx, "/Items/Counts", nil, &counts); err != nil {
		return nil, err
	}

	c.cache.Set(libraryNamespace, "counts", "all", &counts, c.ttl)
	return &counts, nil
}

// ActiveSessions returns sessions that played something recently.
func (c *JellyfinClient) ActiveSessions(ctx context.Context) ([]JellyfinSession, error) {
	query := url.Values{}
	query.Set("activeWithinSeconds", "300")

	var sessions []JellyfinSession
	if err := c.client.GetJSON(ctx, "/Sessions", query, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

// Package services wraps every external integration behind one registry:
// session-authenticated upstreams (torrent client, container orchestrator,
// file browser) share the SessionClient lifecycle, API-key upstreams
// (indexer, catalog, media library) share the TokenClient, and callers check
// availability before use so an unconfigured service degrades that feature
// instead of failing the request.
package services

import (
	"time"

	"github.com/atifkhan161/pandora-box-sub000/internal/cache"
	"github.com/atifkhan161/pandora-box-sub000/internal/config"
	"github.com/atifkhan161/pandora-box-sub000/internal/logging"
)

// Service names used for availability checks and status reporting.
const (
	ServiceQBittorrent = "qbittorrent"
	ServiceJackett     = "jackett"
	ServicePortainer   = "portainer"
	ServiceJellyfin    = "jellyfin"
	ServiceTMDB        = "tmdb"
	ServiceFileBrowser = "filebrowser"
)

// Registry holds one configured client per external service. A nil client
// means the service is not configured; IsAvailable gates every use. The
// registry is built once at startup and passed by constructor injection so
// tests substitute fakes per service without global state.
type Registry struct {
	QBittorrent *QBittorrentClient
	Jackett     *JackettClient
	Portainer   *PortainerClient
	Jellyfin    *JellyfinClient
	TMDB        *TMDBClient
	FileBrowser *FileBrowserClient
}

// NewRegistry builds clients for every enabled service in cfg.
func NewRegistry(cfg *config.Config, cacheStore *cache.Store) *Registry {
	r := &Registry{}

	if cfg.QBittorrent.Enabled {
		r.QBittorrent = NewQBittorrentClient(cfg.QBittorrent)
	}
	if cfg.Jackett.Enabled {
		r.Jackett = NewJackettClient(cfg.Jackett, cacheStore, ttlOr(cfg.Cache.SearchTTL, cfg.Cache.DefaultTTL))
	}
	if cfg.Portainer.Enabled {
		r.Portainer = NewPortainerClient(cfg.Portainer)
	}
	if cfg.Jellyfin.Enabled {
		r.Jellyfin = NewJellyfinClient(cfg.Jellyfin, cacheStore, ttlOr(cfg.Cache.LibraryTTL, cfg.Cache.DefaultTTL))
	}
	if cfg.TMDB.Enabled {
		r.TMDB = NewTMDBClient(cfg.TMDB, cacheStore, ttlOr(cfg.Cache.CatalogTTL, cfg.Cache.DefaultTTL))
	}
	if cfg.FileBrowser.Enabled {
		r.FileBrowser = NewFileBrowserClient(cfg.FileBrowser)
	}

	for _, name := range r.Available() {
		logging.Info().Str("service", name).Msg("external service configured")
	}
	return r
}

// ttlOr falls back to the default cache TTL when a namespace has none set.
func ttlOr(ttl, fallback time.Duration) time.Duration {
	if ttl <= 0 {
		return fallback
	}
	return ttl
}

// IsAvailable reports whether the named service is configured.
func (r *Registry) IsAvailable(name string) bool {
	switch name {
	case ServiceQBittorrent:
		return r.QBittorrent != nil
	case ServiceJackett:
		return r.Jackett != nil
	case ServicePortainer:
		return r.Portainer != nil
	case ServiceJellyfin:
		return r.Jellyfin != nil
	case ServiceTMDB:
		return r.TMDB != nil
	case ServiceFileBrowser:
		return r.FileBrowser != nil
	default:
		return false
	}
}

// Available returns the names of every configured service, in a fixed order.
func (r *Registry) Available() []string {
	var names []string
	for _, name := range AllServices() {
		if r.IsAvailable(name) {
			names = append(names, name)
		}
	}
	return names
}

// AllServices returns every known service name, configured or not.
func AllServices() []string {
	return []string{
		ServiceQBittorrent,
		ServiceJackett,
		ServicePortainer,
		ServiceJellyfin,
		ServiceTMDB,
		ServiceFileBrowser,
	}
}

// ServiceStatus is one entry of the aggregate status report.
type ServiceStatus struct {
	Name      string `json:"name"`
	Available bool   `json:"available"`
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latency_ms"`
	Error     string `json:"error,omitempty"`
}

// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

// Package config loads and validates server configuration from layered
// sources: built-in defaults, an optional YAML file, and PB_-prefixed
// environment variables (highest priority).
package config

import (
	"fmt"
	"time"
)

// Config is the root configuration for the server.
type Config struct {
	Server      ServerConfig      `koanf:"server"`
	Security    SecurityConfig    `koanf:"security"`
	Database    DatabaseConfig    `koanf:"database"`
	Cache       CacheConfig       `koanf:"cache"`
	Poller      PollerConfig      `koanf:"poller"`
	Logging     LoggingConfig     `koanf:"logging"`
	QBittorrent SessionService    `koanf:"qbittorrent"`
	Portainer   SessionService    `koanf:"portainer"`
	FileBrowser SessionService    `koanf:"filebrowser"`
	Jackett     TokenService      `koanf:"jackett"`
	Jellyfin    TokenService      `koanf:"jellyfin"`
	TMDB        TokenService      `koanf:"tmdb"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host    string        `koanf:"host"`
	Port    int           `koanf:"port"`
	Timeout time.Duration `koanf:"timeout"`
}

// SecurityConfig holds authentication settings for the box's own API.
type SecurityConfig struct {
	JWTSecret       string        `koanf:"jwt_secret"`
	TokenTTL        time.Duration `koanf:"token_ttl"`
	AdminUsername   string        `koanf:"admin_username"`
	AdminPassword   string        `koanf:"admin_password"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	CORSOrigins     []string      `koanf:"cors_origins"`
}

// DatabaseConfig holds the embedded document store settings.
type DatabaseConfig struct {
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`
}

// CacheConfig holds per-namespace TTLs for the upstream response cache.
type CacheConfig struct {
	CatalogTTL   time.Duration `koanf:"catalog_ttl"`
	SearchTTL    time.Duration `koanf:"search_ttl"`
	LibraryTTL   time.Duration `koanf:"library_ttl"`
	DefaultTTL   time.Duration `koanf:"default_ttl"`
	SweepEnabled bool          `koanf:"sweep_enabled"`
	SweepEvery   time.Duration `koanf:"sweep_every"`
}

// PollerConfig controls the background reconciliation loop.
type PollerConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval"`
}

// LoggingConfig configures the logging facade.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// SessionService configures an upstream that authenticates with a login
// endpoint returning a time-bounded session credential (qBittorrent,
// Portainer, File Browser).
type SessionService struct {
	Enabled    bool          `koanf:"enabled"`
	URL        string        `koanf:"url"`
	Username   string        `koanf:"username"`
	Password   string        `koanf:"password"`
	SessionTTL time.Duration `koanf:"session_ttl"`
	Timeout    time.Duration `koanf:"timeout"`
}

// TokenService configures an upstream that authenticates with a static API
// key or token on every request (Jackett, Jellyfin, TMDB).
type TokenService struct {
	Enabled bool          `koanf:"enabled"`
	URL     string        `koanf:"url"`
	APIKey  string        `koanf:"api_key"`
	Timeout time.Duration `koanf:"timeout"`
}

// defaultConfig returns a Config with all defaults applied. Integrations are
// disabled until configured; the server degrades per-service rather than
// refusing to start.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8181,
			Timeout: 30 * time.Second,
		},
		Security: SecurityConfig{
			JWTSecret:       "",
			TokenTTL:        24 * time.Hour,
			AdminUsername:   "admin",
			AdminPassword:   "",
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Database: DatabaseConfig{
			Path:     "/data/pandora",
			InMemory: false,
		},
		Cache: CacheConfig{
			CatalogTTL:   6 * time.Hour,
			SearchTTL:    10 * time.Minute,
			LibraryTTL:   5 * time.Minute,
			DefaultTTL:   5 * time.Minute,
			SweepEnabled: true,
			SweepEvery:   5 * time.Minute,
		},
		Poller: PollerConfig{
			Enabled:  true,
			Interval: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		QBittorrent: SessionService{
			SessionTTL: 30 * time.Minute,
			Timeout:    15 * time.Second,
		},
		Portainer: SessionService{
			SessionTTL: 8 * time.Hour,
			Timeout:    15 * time.Second,
		},
		FileBrowser: SessionService{
			SessionTTL: 2 * time.Hour,
			Timeout:    15 * time.Second,
		},
		Jackett: TokenService{
			Timeout: 30 * time.Second,
		},
		Jellyfin: TokenService{
			Timeout: 15 * time.Second,
		},
		TMDB: TokenService{
			URL:     "https://api.themoviedb.org/3",
			Timeout: 15 * time.Second,
		},
	}
}

// Validate rejects configurations the server cannot safely run with.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Security.JWTSecret == "" {
		return fmt.Errorf("security.jwt_secret is required")
	}
	if len(c.Security.JWTSecret) < 32 {
		return fmt.Errorf("security.jwt_secret must be at least 32 characters, got %d", len(c.Security.JWTSecret))
	}
	if c.Security.AdminPassword == "" {
		return fmt.Errorf("security.admin_password is required")
	}
	if !c.Database.InMemory && c.Database.Path == "" {
		return fmt.Errorf("database.path is required unless database.in_memory is set")
	}
	if c.Poller.Enabled && c.Poller.Interval < time.Second {
		return fmt.Errorf("poller.interval must be at least 1s, got %s", c.Poller.Interval)
	}

	for _, svc := range []struct {
		name    string
		enabled bool
		url     string
	}{
		{"qbittorrent", c.QBittorrent.Enabled, c.QBittorrent.URL},
		{"portainer", c.Portainer.Enabled, c.Portainer.URL},
		{"filebrowser", c.FileBrowser.Enabled, c.FileBrowser.URL},
		{"jackett", c.Jackett.Enabled, c.Jackett.URL},
		{"jellyfin", c.Jellyfin.Enabled, c.Jellyfin.URL},
		{"tmdb", c.TMDB.Enabled, c.TMDB.URL},
	} {
		if svc.enabled && svc.url == "" {
			return fmt.Errorf("%s.url is required when %s.enabled is true", svc.name, svc.name)
		}
	}

	return nil
}

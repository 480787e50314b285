// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package config

import (
	"testing"
	"time"
)

// validConfig is the smallest configuration that passes validation.
func validConfig() *Config {
	cfg := defaultConfig()
	cfg.Security.JWTSecret = "0123456789abcdef0123456789abcdef"
	cfg.Security.AdminPassword = "changeme"
	return cfg
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.Server.Port != 8181 {
		t.Errorf("default port = %d, want 8181", cfg.Server.Port)
	}
	if cfg.Security.TokenTTL != 24*time.Hour {
		t.Errorf("default token ttl = %s, want 24h", cfg.Security.TokenTTL)
	}
	if !cfg.Poller.Enabled || cfg.Poller.Interval != 5*time.Second {
		t.Errorf("unexpected poller defaults: %+v", cfg.Poller)
	}
	// Integrations start disabled; the box degrades per-service.
	for name, enabled := range map[string]bool{
		"qbittorrent": cfg.QBittorrent.Enabled,
		"jackett":     cfg.Jackett.Enabled,
		"jellyfin":    cfg.Jellyfin.Enabled,
		"tmdb":        cfg.TMDB.Enabled,
	} {
		if enabled {
			t.Errorf("%s enabled by default", name)
		}
	}
	if cfg.TMDB.URL == "" {
		t.Error("tmdb url has no default")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{"valid", func(cfg *Config) {}, false},
		{"port zero", func(cfg *Config) { cfg.Server.Port = 0 }, true},
		{"port too high", func(cfg *Config) { cfg.Server.Port = 70000 }, true},
		{"missing jwt secret", func(cfg *Config) { cfg.Security.JWTSecret = "" }, true},
		{"short jwt secret", func(cfg *Config) { cfg.Security.JWTSecret = "tooshort" }, true},
		{"missing admin password", func(cfg *Config) { cfg.Security.AdminPassword = "" }, true},
		{"missing db path", func(cfg *Config) { cfg.Database.Path = "" }, true},
		{"in-memory needs no path", func(cfg *Config) {
			cfg.Database.Path = ""
			cfg.Database.InMemory = true
		}, false},
		{"poller interval too short", func(cfg *Config) { cfg.Poller.Interval = 100 * time.Millisecond }, true},
		{"disabled poller skips interval check", func(cfg *Config) {
			cfg.Poller.Enabled = false
			cfg.Poller.Interval = 0
		}, false},
		{"enabled service without url", func(cfg *Config) { cfg.QBittorrent.Enabled = true }, true},
		{"enabled service with url", func(cfg *Config) {
			cfg.Jackett.Enabled = true
			cfg.Jackett.URL = "http://jackett:9117"
		}, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("unexpected validation error: %v", err)
			}
		})
	}
}

func TestEnvTransform(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PB_SERVER_PORT", "server.port"},
		{"PB_SECURITY_JWT_SECRET", "security.jwt_secret"},
		{"PB_QBITTORRENT_URL", "qbittorrent.url"},
		{"PB_SECURITY_RATE_LIMIT_REQS", "security.rate_limit_reqs"},
	}
	for _, tc := range tests {
		if got := envTransform(tc.in); got != tc.want {
			t.Errorf("envTransform(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

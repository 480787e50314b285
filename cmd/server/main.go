// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

// Package main is the entry point for the Pandora Box server.
//
// Pandora Box aggregates a self-hosted media stack behind one authenticated
// API: torrent transfers (qBittorrent), indexer search (Jackett), the media
// library (Jellyfin), container management (Portainer), file storage
// (File Browser) and the metadata catalog (TMDB). Download state is
// reconciled against the torrent client on a fixed interval and pushed to
// connected browsers over websockets.
//
// Startup order:
//
//  1. Configuration: defaults, optional YAML file, PB_-prefixed env vars
//  2. Logging: zerolog facade, json or console
//  3. Document store: BadgerDB at database.path
//  4. Service registry: one client per enabled upstream
//  5. WebSocket hub and reconciliation poller
//  6. HTTP server: chi router, JWT auth, /metrics
//
// Shutdown on SIGINT/SIGTERM drains in-flight requests, stops the poller
// and hub, and closes the store.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/atifkhan161/pandora-box-sub000/internal/api"
	"github.com/atifkhan161/pandora-box-sub000/internal/auth"
	"github.com/atifkhan161/pandora-box-sub000/internal/cache"
	"github.com/atifkhan161/pandora-box-sub000/internal/config"
	"github.com/atifkhan161/pandora-box-sub000/internal/logging"
	"github.com/atifkhan161/pandora-box-sub000/internal/reconcile"
	"github.com/atifkhan161/pandora-box-sub000/internal/services"
	"github.com/atifkhan161/pandora-box-sub000/internal/store"
	"github.com/atifkhan161/pandora-box-sub000/internal/websocket"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		logging.Fatal().Err(err).Msg("server exited with error")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Str("level", cfg.Logging.Level).Msg("pandora box starting")

	st, err := store.Open(store.Options{
		Path:     cfg.Database.Path,
		InMemory: cfg.Database.InMemory,
	})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logging.Err(cerr).Msg("store close failed")
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := ensureAdminUser(ctx, st, cfg); err != nil {
		return fmt.Errorf("bootstrap admin user: %w", err)
	}

	cacheStore := cache.NewStore()
	registry := services.NewRegistry(cfg, cacheStore)
	reconciler := reconcile.New(st.Downloads)
	hub := websocket.NewHub()

	jwtManager, err := auth.NewJWTManager(cfg.Security)
	if err != nil {
		return fmt.Errorf("init jwt: %w", err)
	}

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = hub.Run(ctx)
	}()

	if cfg.Cache.SweepEnabled {
		sweepStop := make(chan struct{})
		defer close(sweepStop)
		go cacheStore.SweepLoop(cfg.Cache.SweepEvery, sweepStop)
	}

	if cfg.Poller.Enabled {
		var torrents reconcile.TorrentLister
		if registry.QBittorrent != nil {
			torrents = registry.QBittorrent
		}
		poller := reconcile.NewPoller(torrents, reconciler, st.Users, hub, cfg.Poller.Interval)

		wg.Add(1)
		go func() {
			defer wg.Done()
			poller.Run(ctx)
		}()
	}

	server := api.NewServer(cfg, st, registry, reconciler, hub, jwtManager)
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      server.Routes(),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", httpServer.Addr).Msg("http server listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logging.Info().Msg("shutdown signal received")
	case err := <-errCh:
		stop()
		wg.Wait()
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logging.Err(err).Msg("http shutdown incomplete")
	}

	wg.Wait()
	logging.Info().Msg("pandora box stopped")
	return nil
}

// ensureAdminUser creates or refreshes the admin account from config so the
// box is always reachable with the configured credentials, including after a
// password change in config.
func ensureAdminUser(ctx context.Context, st *store.Store, cfg *config.Config) error {
	hash, err := auth.HashPassword(cfg.Security.AdminPassword)
	if err != nil {
		return err
	}

	existing, err := st.Users.GetByUsername(ctx, cfg.Security.AdminUsername)
	if err == nil {
		if auth.CheckPassword(existing.PasswordHash, cfg.Security.AdminPassword) {
			return nil
		}
		existing.PasswordHash = hash
		return st.Users.Insert(ctx, existing)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return err
	}

	user := &store.User{
		Username:     cfg.Security.AdminUsername,
		PasswordHash: hash,
		Role:         "admin",
	}
	if err := st.Users.Insert(ctx, user); err != nil {
		return err
	}
	logging.Info().Str("username", user.Username).Msg("admin account created")
	return nil
}

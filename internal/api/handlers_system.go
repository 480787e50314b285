// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/atifkhan161/pandora-box-sub000/internal/services"
)

// statusProbeTimeout bounds each per-service probe so one hung upstream does
// not stall the whole status page.
const statusProbeTimeout = 5 * time.Second

type systemStatusResponse struct {
	Services       []services.ServiceStatus   `json:"services"`
	Library        *services.LibraryCounts    `json:"library,omitempty"`
	ActiveSessions int                        `json:"active_sessions"`
	Storage        *services.StorageUsage     `json:"storage,omitempty"`
	Sessions       []services.JellyfinSession `json:"sessions,omitempty"`
}

// handleSystemStatus probes every configured service concurrently and
// reports per-service reachability plus whatever summary data the probes
// brought back. An unreachable service degrades its own entry; the endpoint
// itself always answers 200.
func (s *Server) handleSystemStatus(w http.ResponseWriter, r *http.Request) {
	resp := systemStatusResponse{
		Services: make([]services.ServiceStatus, len(services.AllServices())),
	}

	var wg sync.WaitGroup
	var mu sync.Mutex

	for i, name := range services.AllServices() {
		if !s.registry.IsAvailable(name) {
			resp.Services[i] = services.ServiceStatus{Name: name}
			continue
		}

		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()

			ctx, cancel := context.WithTimeout(r.Context(), statusProbeTimeout)
			defer cancel()

			start := time.Now()
			err := s.probeService(ctx, name, &mu, &resp)
			status := services.ServiceStatus{
				Name:      name,
				Available: true,
				Reachable: err == nil,
				LatencyMS: time.Since(start).Milliseconds(),
			}
			if err != nil {
				status.Error = err.Error()
			}

			mu.Lock()
			resp.Services[i] = status
			mu.Unlock()
		}(i, name)
	}
	wg.Wait()

	respondJSON(w, http.StatusOK, resp)
}

// probeService issues the cheapest meaningful call to one service, filling
// summary fields on resp (under mu) as a side effect where the probe returns
// usable data.
func (s *Server) probeService(ctx context.Context, name string, mu *sync.Mutex, resp *systemStatusResponse) error {
	switch name {
	case services.ServiceQBittorrent:
		return s.registry.QBittorrent.EnsureAuthenticated(ctx)

	case services.ServicePortainer:
		return s.registry.Portainer.EnsureAuthenticated(ctx)

	case services.ServiceFileBrowser:
		usage, err := s.registry.FileBrowser.Usage(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		resp.Storage = usage
		mu.Unlock()
		return nil

	case services.ServiceJellyfin:
		counts, err := s.registry.Jellyfin.Counts(ctx)
		if err != nil {
			return err
		}
		sessions, err := s.registry.Jellyfin.ActiveSessions(ctx)
		if err != nil {
			return err
		}
		mu.Lock()
		resp.Library = counts
		resp.Sessions = sessions
		resp.ActiveSessions = len(sessions)
		mu.Unlock()
		return nil

	case services.ServiceTMDB:
		// Usually answered from cache, so the probe is nearly free.
		_, err := s.registry.TMDB.Trending(ctx, "movie", "week", 1)
		return err

	case services.ServiceJackett:
		// A real search is too expensive for a status page; the breaker
		// state stands in for reachability.
		if !s.registry.Jackett.Healthy() {
			return fmt.Errorf("search circuit breaker open")
		}
		return nil
	}
	return nil
}

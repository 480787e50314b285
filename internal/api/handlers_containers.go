// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/atifkhan161/pandora-box-sub000/internal/auth"
	"github.com/atifkhan161/pandora-box-sub000/internal/logging"
)

// defaultEndpointID is the orchestrator's first environment, which is where
// a single-host install's containers live.
const defaultEndpointID = 1

func endpointParam(r *http.Request) int {
	if id, err := strconv.Atoi(r.URL.Query().Get("endpoint")); err == nil && id > 0 {
		return id
	}
	return defaultEndpointID
}

func (s *Server) handleListContainers(w http.ResponseWriter, r *http.Request) {
	if s.registry.Portainer == nil {
		respondError(w, http.StatusServiceUnavailable, "container orchestrator not configured")
		return
	}

	containers, err := s.registry.Portainer.ListContainers(r.Context(), endpointParam(r))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"containers": containers})
}

// handleRestartContainer restarts one container. Admin only: restarting the
// media stack affects every user of the box.
func (s *Server) handleRestartContainer(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.Role != "admin" {
		respondError(w, http.StatusForbidden, "admin role required")
		return
	}
	if s.registry.Portainer == nil {
		respondError(w, http.StatusServiceUnavailable, "container orchestrator not configured")
		return
	}

	containerID := chi.URLParam(r, "id")
	if containerID == "" {
		respondError(w, http.StatusBadRequest, "container id is required")
		return
	}

	if err := s.registry.Portainer.RestartContainer(r.Context(), endpointParam(r), containerID); err != nil {
		respondUpstreamError(w, err)
		return
	}
	logging.Info().Str("container_id", containerID).Str("user", claims.Username).Msg("container restarted")
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "restarting"})
}

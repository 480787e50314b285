// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package api

import (
	"net/http"

	"github.com/atifkhan161/pandora-box-sub000/internal/services"
)

// handleSearch proxies a torrent search across every configured indexer.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if s.registry.Jackett == nil {
		respondError(w, http.StatusServiceUnavailable, "indexer not configured")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	categories := r.URL.Query()["category"]

	results, err := s.registry.Jackett.Search(r.Context(), query, categories)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	if results == nil {
		results = []services.SearchResult{}
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package api

import (
	"net/http"
	"strconv"
)

func pageParam(r *http.Request) int {
	page, err := strconv.Atoi(r.URL.Query().Get("page"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}

// mediaTypeParam returns the media_type query value, restricted to the two
// catalog types.
func mediaTypeParam(r *http.Request) string {
	switch mt := r.URL.Query().Get("media_type"); mt {
	case "tv":
		return "tv"
	default:
		return "movie"
	}
}

func (s *Server) handleCatalogTrending(w http.ResponseWriter, r *http.Request) {
	if s.registry.TMDB == nil {
		respondError(w, http.StatusServiceUnavailable, "metadata catalog not configured")
		return
	}

	window := r.URL.Query().Get("window")
	if window != "day" && window != "week" {
		window = "week"
	}

	page, err := s.registry.TMDB.Trending(r.Context(), mediaTypeParam(r), window, pageParam(r))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleCatalogPopular(w http.ResponseWriter, r *http.Request) {
	if s.registry.TMDB == nil {
		respondError(w, http.StatusServiceUnavailable, "metadata catalog not configured")
		return
	}

	page, err := s.registry.TMDB.Popular(r.Context(), mediaTypeParam(r), pageParam(r))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

func (s *Server) handleCatalogSearch(w http.ResponseWriter, r *http.Request) {
	if s.registry.TMDB == nil {
		respondError(w, http.StatusServiceUnavailable, "metadata catalog not configured")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		respondError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}

	page, err := s.registry.TMDB.SearchCatalog(r.Context(), query, pageParam(r))
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, page)
}

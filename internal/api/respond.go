// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package api

import (
	"errors"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/atifkhan161/pandora-box-sub000/internal/logging"
	"github.com/atifkhan161/pandora-box-sub000/internal/services"
	"github.com/atifkhan161/pandora-box-sub000/internal/store"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.Err(err).Msg("api: response encode failed")
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// respondUpstreamError translates service-layer failures into API statuses:
// an exhausted re-login becomes 502 (the box's credentials are wrong, not the
// user's), other upstream failures become 502, and a missing record is 404.
func respondUpstreamError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondError(w, http.StatusNotFound, "not found")
	case services.IsAuthError(err):
		respondError(w, http.StatusBadGateway, "upstream rejected the configured credentials")
	case errors.Is(err, services.ErrServiceUnavailable):
		respondError(w, http.StatusServiceUnavailable, "service not configured")
	default:
		var upstream *services.UpstreamError
		if errors.As(err, &upstream) {
			respondError(w, http.StatusBadGateway, "upstream request failed")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func decodeJSON(r *http.Request, dst interface{}) error {
	defer func() { _ = r.Body.Close() }()
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

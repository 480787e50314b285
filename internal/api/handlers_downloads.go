// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package api

import (
	"encoding/base32"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/atifkhan161/pandora-box-sub000/internal/auth"
	"github.com/atifkhan161/pandora-box-sub000/internal/logging"
	"github.com/atifkhan161/pandora-box-sub000/internal/reconcile"
	"github.com/atifkhan161/pandora-box-sub000/internal/store"
)

type downloadsResponse struct {
	Downloads []reconcile.MergedView `json:"downloads"`
	Degraded  bool                   `json:"degraded"`
}

// handleListDownloads returns the caller's downloads merged with the live
// transfer list. When the torrent client is unreachable the stored records
// are served as-is with the degraded flag set, so the list never 500s just
// because an upstream is down.
func (s *Server) handleListDownloads(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	if s.registry.QBittorrent != nil {
		live, err := s.registry.QBittorrent.ListTorrents(r.Context())
		if err == nil {
			views, _, rerr := s.reconciler.Reconcile(r.Context(), claims.UserID, live)
			if rerr != nil {
				respondError(w, http.StatusInternalServerError, "internal error")
				return
			}
			respondJSON(w, http.StatusOK, downloadsResponse{Downloads: views, Degraded: false})
			return
		}
		logging.Err(err).Msg("downloads: live list fetch failed, serving stored records")
	}

	local, err := s.store.Downloads.ListByUser(r.Context(), claims.UserID)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	views := make([]reconcile.MergedView, 0, len(local))
	for _, d := range local {
		views = append(views, reconcile.MergedView{Download: d, Live: false})
	}
	respondJSON(w, http.StatusOK, downloadsResponse{Downloads: views, Degraded: true})
}

type addDownloadRequest struct {
	Magnet    string `json:"magnet" validate:"required"`
	Title     string `json:"title" validate:"required"`
	Category  string `json:"category"`
	CatalogID int64  `json:"catalog_id"`
}

// handleAddDownload records the user's intent first, then submits the magnet
// to the torrent client. The record starts as queued; the next reconcile
// pass picks up whatever state the client reports. If submission fails the
// record is removed again so the list doesn't show a transfer that never
// started.
func (s *Server) handleAddDownload(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing identity")
		return
	}
	if s.registry.QBittorrent == nil {
		respondError(w, http.StatusServiceUnavailable, "torrent client not configured")
		return
	}

	var req addDownloadRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "magnet and title are required")
		return
	}

	hash, err := magnetHash(req.Magnet)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid magnet link")
		return
	}

	if existing, err := s.store.Downloads.GetByHash(r.Context(), claims.UserID, hash); err == nil {
		respondJSON(w, http.StatusOK, existing)
		return
	}

	d := &store.Download{
		UserID:    claims.UserID,
		Hash:      hash,
		Title:     req.Title,
		Category:  req.Category,
		CatalogID: req.CatalogID,
		Status:    store.StatusQueued,
		ETA:       -1,
	}
	if err := s.store.Downloads.Insert(r.Context(), d); err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if err := s.registry.QBittorrent.AddMagnet(r.Context(), req.Magnet, req.Category); err != nil {
		if derr := s.store.Downloads.Delete(r.Context(), d.ID); derr != nil {
			logging.Err(derr).Str("download_id", d.ID).Msg("downloads: rollback delete failed")
		}
		respondUpstreamError(w, err)
		return
	}

	logging.Info().Str("user_id", claims.UserID).Str("hash", hash).Str("title", req.Title).Msg("download added")
	respondJSON(w, http.StatusCreated, d)
}

// handleDeleteDownload removes the record and, when requested with
// ?delete_files=true, the transfer and its data from the torrent client.
// Ownership is checked before anything happens.
func (s *Server) handleDeleteDownload(w http.ResponseWriter, r *http.Request) {
	claims, d, ok := s.ownedDownload(w, r)
	if !ok {
		return
	}

	deleteFiles := r.URL.Query().Get("delete_files") == "true"
	if s.registry.QBittorrent != nil {
		if err := s.registry.QBittorrent.DeleteTorrent(r.Context(), d.Hash, deleteFiles); err != nil {
			// The transfer may already be gone from the client; the record
			// still goes away.
			logging.Err(err).Str("hash", d.Hash).Msg("downloads: client delete failed")
		}
	}

	if err := s.store.Downloads.Delete(r.Context(), d.ID); err != nil {
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}
	logging.Info().Str("user_id", claims.UserID).Str("download_id", d.ID).Msg("download deleted")
	respondJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handlePauseDownload(w http.ResponseWriter, r *http.Request) {
	_, d, ok := s.ownedDownload(w, r)
	if !ok {
		return
	}
	if s.registry.QBittorrent == nil {
		respondError(w, http.StatusServiceUnavailable, "torrent client not configured")
		return
	}
	if err := s.registry.QBittorrent.PauseTorrent(r.Context(), d.Hash); err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "pausing"})
}

func (s *Server) handleResumeDownload(w http.ResponseWriter, r *http.Request) {
	_, d, ok := s.ownedDownload(w, r)
	if !ok {
		return
	}
	if s.registry.QBittorrent == nil {
		respondError(w, http.StatusServiceUnavailable, "torrent client not configured")
		return
	}
	if err := s.registry.QBittorrent.ResumeTorrent(r.Context(), d.Hash); err != nil {
		respondUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "resuming"})
}

// ownedDownload loads the {id} download and enforces that it belongs to the
// caller. A foreign id answers 404, not 403: other users' records do not
// exist as far as this caller can observe.
func (s *Server) ownedDownload(w http.ResponseWriter, r *http.Request) (*auth.Claims, *store.Download, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing identity")
		return nil, nil, false
	}

	id := chi.URLParam(r, "id")
	d, err := s.store.Downloads.Get(r.Context(), id)
	if err != nil || d.UserID != claims.UserID {
		respondError(w, http.StatusNotFound, "not found")
		return nil, nil, false
	}
	return claims, d, true
}

// magnetHash extracts the info-hash from a magnet link's xt parameter,
// normalized to the 40-char lowercase hex form the torrent client reports.
// Base32-encoded hashes are decoded to hex so the record's hash always
// matches the corresponding live list entry.
func magnetHash(magnet string) (string, error) {
	u, err := url.Parse(magnet)
	if err != nil || u.Scheme != "magnet" {
		return "", fmt.Errorf("not a magnet link")
	}
	for _, xt := range u.Query()["xt"] {
		if !strings.HasPrefix(xt, "urn:btih:") {
			continue
		}
		hash := strings.TrimPrefix(xt, "urn:btih:")
		switch len(hash) {
		case 40:
			if _, err := hex.DecodeString(hash); err != nil {
				return "", fmt.Errorf("malformed hex info-hash")
			}
			return strings.ToLower(hash), nil
		case 32:
			raw, err := base32.StdEncoding.DecodeString(strings.ToUpper(hash))
			if err != nil {
				return "", fmt.Errorf("malformed base32 info-hash")
			}
			return hex.EncodeToString(raw), nil
		default:
			return "", fmt.Errorf("unexpected info-hash length %d", len(hash))
		}
	}
	return "", fmt.Errorf("magnet link missing info-hash")
}

// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

// Package reconcile merges the torrent client's live transfer list into the
// locally owned download records. The live list is the authority for
// transfer state; the local record is the authority for ownership and user
// intent. Each pass overwrites local display state from the matching live
// entry, leaves other users' transfers untouched, and reports records whose
// live entry has disappeared instead of deleting them.
package reconcile

import (
	"context"
	"sync"
	"time"

	"github.com/atifkhan161/pandora-box-sub000/internal/logging"
	"github.com/atifkhan161/pandora-box-sub000/internal/metrics"
	"github.com/atifkhan161/pandora-box-sub000/internal/services"
	"github.com/atifkhan161/pandora-box-sub000/internal/store"
)

// orphanGrace is how long a non-terminal record may be missing from the live
// list before its status is forced to error. The window is wall time, not a
// pass count: passes run on the poll interval and on every list request, so
// rapid refreshes right after an add must not burn through the grace a fresh
// transfer needs to show up in the client's list.
const orphanGrace = 30 * time.Second

// MergedView is one download as presented to consumers: the stored record
// after the pass, plus whether a live transfer currently backs it.
type MergedView struct {
	store.Download
	Live bool `json:"live"`
}

// Reconciler folds live transfer state into the download records of one user
// at a time. It is safe for concurrent use; the first-miss timestamps are the
// only shared state.
type Reconciler struct {
	downloads *store.DownloadRepo

	// now is swappable for deterministic grace-window tests.
	now func() time.Time

	mu      sync.Mutex
	missing map[string]time.Time // download id -> first pass without a live entry
}

// New builds a Reconciler over the downloads collection.
func New(downloads *store.DownloadRepo) *Reconciler {
	return &Reconciler{
		downloads: downloads,
		now:       time.Now,
		missing:   make(map[string]time.Time),
	}
}

// Reconcile merges live into userID's records and returns the merged views
// plus the records orphaned this pass. The live slice is the client's full
// process-wide list; only entries whose hash matches one of the user's own
// records are considered, so one user's pass never reads or writes another
// user's state. Records are updated in place with a full overwrite every
// pass, making the pass idempotent: running it twice against the same live
// list yields identical stored state.
func (r *Reconciler) Reconcile(ctx context.Context, userID string, live []services.TorrentState) ([]MergedView, []store.Download, error) {
	local, err := r.downloads.ListByUser(ctx, userID)
	if err != nil {
		metrics.ReconcilePasses.WithLabelValues("qbittorrent", "error").Inc()
		return nil, nil, err
	}

	byHash := make(map[string]services.TorrentState, len(live))
	for _, t := range live {
		byHash[t.Hash] = t
	}

	views := make([]MergedView, 0, len(local))
	var orphans []store.Download
	outcome := "success"

	for i := range local {
		d := local[i]
		t, ok := byHash[d.Hash]
		if !ok {
			view, orphan := r.handleMissing(ctx, &d)
			views = append(views, view)
			if orphan {
				orphans = append(orphans, d)
			}
			continue
		}

		r.clearMissing(d.ID)
		applyLiveState(&d, t)

		if err := r.downloads.Update(ctx, &d); err != nil {
			logging.Err(err).Str("download_id", d.ID).Msg("reconcile: write-back failed")
			outcome = "partial"
		}
		views = append(views, MergedView{Download: d, Live: true})
	}

	metrics.ReconcilePasses.WithLabelValues("qbittorrent", outcome).Inc()
	metrics.ReconcileOrphans.Set(float64(len(orphans)))
	return views, orphans, nil
}

// applyLiveState overwrites the record's display fields from the live entry.
// Title, Category and CatalogID are user intent and are never touched: the
// client may rename a transfer or reshuffle categories without losing what
// the user actually asked for.
func applyLiveState(d *store.Download, t services.TorrentState) {
	d.Status = MapTorrentState(t.State)
	d.Progress = t.Progress
	d.Speed = t.DlSpeed
	d.ETA = t.ETA
	d.Size = t.Size
	d.SavePath = t.SavePath
}

// handleMissing decides what to do with a record that has no live entry.
// Terminal records (completed, error) are expected to leave the live list
// once the user clears them from the client, so they pass through unchanged.
// Anything else is an orphan: after the grace window its status is forced to
// error so the user sees the transfer vanished, but the record itself is
// kept. Deletion is always an explicit user action.
func (r *Reconciler) handleMissing(ctx context.Context, d *store.Download) (MergedView, bool) {
	if d.Status == store.StatusCompleted || d.Status == store.StatusError {
		r.clearMissing(d.ID)
		return MergedView{Download: *d, Live: false}, false
	}

	missingFor := r.now().Sub(r.firstMissing(d.ID))
	if missingFor < orphanGrace {
		return MergedView{Download: *d, Live: false}, true
	}

	logging.Warn().
		Str("download_id", d.ID).
		Str("hash", d.Hash).
		Dur("missing_for", missingFor).
		Msg("reconcile: live transfer gone, marking record as error")

	d.Status = store.StatusError
	d.Speed = 0
	d.ETA = -1
	if err := r.downloads.Update(ctx, d); err != nil {
		logging.Err(err).Str("download_id", d.ID).Msg("reconcile: orphan write-back failed")
	}
	return MergedView{Download: *d, Live: false}, true
}

// firstMissing returns when id was first seen without a live entry,
// recording the current pass as that moment if none is tracked yet.
func (r *Reconciler) firstMissing(id string) time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	first, ok := r.missing[id]
	if !ok {
		first = r.now()
		r.missing[id] = first
	}
	return first
}

func (r *Reconciler) clearMissing(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.missing, id)
}

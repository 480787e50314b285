// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/atifkhan161/pandora-box-sub000/internal/services"
	"github.com/atifkhan161/pandora-box-sub000/internal/store"
)

// newClockedReconciler pins the reconciler's clock so tests control how much
// wall time separates passes.
func newClockedReconciler(repo *store.DownloadRepo) (*Reconciler, *time.Time) {
	r := New(repo)
	now := time.Now()
	r.now = func() time.Time { return now }
	return r, &now
}

func newTestRepo(t *testing.T) *store.DownloadRepo {
	t.Helper()
	s, err := store.Open(store.Options{InMemory: true})
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s.Downloads
}

func insertDownload(t *testing.T, repo *store.DownloadRepo, d *store.Download) *store.Download {
	t.Helper()
	if err := repo.Insert(context.Background(), d); err != nil {
		t.Fatalf("insert download: %v", err)
	}
	return d
}

func TestMapTorrentState(t *testing.T) {
	tests := []struct {
		native string
		want   store.Status
	}{
		{"downloading", store.StatusDownloading},
		{"stalledDL", store.StatusDownloading},
		{"metaDL", store.StatusDownloading},
		{"forcedDL", store.StatusDownloading},
		{"queuedDL", store.StatusQueued},
		{"checkingResumeData", store.StatusQueued},
		{"pausedDL", store.StatusPaused},
		{"stoppedDL", store.StatusPaused},
		{"uploading", store.StatusSeeding},
		{"stalledUP", store.StatusSeeding},
		{"forcedUP", store.StatusSeeding},
		{"queuedUP", store.StatusCompleted},
		{"pausedUP", store.StatusCompleted},
		{"stoppedUP", store.StatusCompleted},
		{"moving", store.StatusCompleted},
		{"error", store.StatusError},
		{"missingFiles", store.StatusError},
		{"someFutureState", store.StatusUnknown},
		{"", store.StatusUnknown},
	}
	for _, tc := range tests {
		if got := MapTorrentState(tc.native); got != tc.want {
			t.Errorf("MapTorrentState(%q) = %q, want %q", tc.native, got, tc.want)
		}
	}
}

func TestReconcileAppliesLiveState(t *testing.T) {
	repo := newTestRepo(t)
	r := New(repo)
	ctx := context.Background()

	d := insertDownload(t, repo, &store.Download{
		UserID: "u1", Hash: "h1", Title: "My Movie", Category: "movies",
		CatalogID: 42, Status: store.StatusQueued, ETA: -1,
	})

	live := []services.TorrentState{{
		Hash: "h1", Name: "renamed-by-client", State: "downloading",
		Progress: 0.5, DlSpeed: 2048, ETA: 300, Size: 4096, SavePath: "/downloads",
		Category: "shuffled",
	}}

	views, orphans, err := r.Reconcile(ctx, "u1", live)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(orphans) != 0 {
		t.Fatalf("unexpected orphans: %+v", orphans)
	}
	if len(views) != 1 {
		t.Fatalf("expected 1 view, got %d", len(views))
	}

	v := views[0]
	if !v.Live {
		t.Error("view not marked live")
	}
	if v.Status != store.StatusDownloading || v.Progress != 0.5 || v.Speed != 2048 || v.ETA != 300 {
		t.Errorf("live state not applied: %+v", v)
	}
	// User intent survives whatever the client renamed.
	if v.Title != "My Movie" || v.Category != "movies" || v.CatalogID != 42 {
		t.Errorf("intent fields overwritten: %+v", v)
	}

	// The write-back is visible to the next reader.
	stored, err := repo.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("Get after reconcile failed: %v", err)
	}
	if stored.Status != store.StatusDownloading || stored.Progress != 0.5 {
		t.Errorf("reconcile not persisted: %+v", stored)
	}
}

func TestReconcileIdempotent(t *testing.T) {
	repo := newTestRepo(t)
	r := New(repo)
	ctx := context.Background()

	d := insertDownload(t, repo, &store.Download{
		UserID: "u1", Hash: "h1", Title: "movie", Status: store.StatusQueued,
	})
	live := []services.TorrentState{{Hash: "h1", State: "downloading", Progress: 0.3, DlSpeed: 100, ETA: 60, Size: 1000}}

	if _, _, err := r.Reconcile(ctx, "u1", live); err != nil {
		t.Fatalf("first pass failed: %v", err)
	}
	first, _ := repo.Get(ctx, d.ID)

	if _, _, err := r.Reconcile(ctx, "u1", live); err != nil {
		t.Fatalf("second pass failed: %v", err)
	}
	second, _ := repo.Get(ctx, d.ID)

	first.UpdatedAt = second.UpdatedAt
	if *first != *second {
		t.Errorf("second pass changed stored state:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}

func TestReconcileIgnoresOtherUsersTransfers(t *testing.T) {
	repo := newTestRepo(t)
	r := New(repo)
	ctx := context.Background()

	insertDownload(t, repo, &store.Download{UserID: "alice", Hash: "ha", Title: "a", Status: store.StatusQueued})
	bob := insertDownload(t, repo, &store.Download{UserID: "bob", Hash: "hb", Title: "b", Status: store.StatusQueued})

	// The client's process-wide list carries both transfers plus one nobody
	// tracks; alice's pass must only surface her own record.
	live := []services.TorrentState{
		{Hash: "ha", State: "downloading", Progress: 0.1},
		{Hash: "hb", State: "downloading", Progress: 0.9},
		{Hash: "untracked", State: "downloading"},
	}

	views, _, err := r.Reconcile(ctx, "alice", live)
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if len(views) != 1 || views[0].Hash != "ha" {
		t.Fatalf("expected exactly alice's record, got %+v", views)
	}

	// Bob's stored record is untouched by alice's pass.
	stored, err := repo.Get(ctx, bob.ID)
	if err != nil {
		t.Fatalf("Get bob failed: %v", err)
	}
	if stored.Status != store.StatusQueued || stored.Progress != 0 {
		t.Errorf("bob's record modified by alice's pass: %+v", stored)
	}
}

func TestReconcileOrphanGraceThenError(t *testing.T) {
	repo := newTestRepo(t)
	r, clock := newClockedReconciler(repo)
	ctx := context.Background()

	d := insertDownload(t, repo, &store.Download{
		UserID: "u1", Hash: "gone", Title: "vanished",
		Status: store.StatusDownloading, Speed: 500, ETA: 100,
	})

	// Passes without a live entry inside the grace window: orphan reported,
	// status kept, however many passes run.
	for i := 0; i < 2; i++ {
		views, orphans, err := r.Reconcile(ctx, "u1", nil)
		if err != nil {
			t.Fatalf("pass %d failed: %v", i, err)
		}
		if len(orphans) != 1 || orphans[0].ID != d.ID {
			t.Fatalf("expected 1 orphan on pass %d, got %+v", i, orphans)
		}
		if views[0].Live {
			t.Error("missing record marked live")
		}
		if views[0].Status != store.StatusDownloading {
			t.Errorf("status changed inside grace window: %q", views[0].Status)
		}
	}

	// Still missing once the window has elapsed: forced to error.
	*clock = clock.Add(orphanGrace + time.Second)
	views, orphans, err := r.Reconcile(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("pass after grace failed: %v", err)
	}
	if len(orphans) != 1 {
		t.Fatalf("expected 1 orphan after grace, got %d", len(orphans))
	}
	if views[0].Status != store.StatusError || views[0].Speed != 0 || views[0].ETA != -1 {
		t.Errorf("orphan not forced to error: %+v", views[0])
	}

	// The record still exists; reconciliation never deletes.
	stored, err := repo.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("orphaned record deleted: %v", err)
	}
	if stored.Status != store.StatusError {
		t.Errorf("error status not persisted: %q", stored.Status)
	}
}

func TestReconcileGraceResetsOnReappearance(t *testing.T) {
	repo := newTestRepo(t)
	r, clock := newClockedReconciler(repo)
	ctx := context.Background()

	insertDownload(t, repo, &store.Download{
		UserID: "u1", Hash: "flaky", Title: "movie", Status: store.StatusDownloading,
	})
	live := []services.TorrentState{{Hash: "flaky", State: "downloading", Progress: 0.2}}

	// Miss, wait out more than a full window, reappear, then miss again: the
	// window restarts at the new disappearance, so the fresh miss does not
	// force an error.
	if _, _, err := r.Reconcile(ctx, "u1", nil); err != nil {
		t.Fatalf("pass failed: %v", err)
	}
	*clock = clock.Add(2 * orphanGrace)
	if _, _, err := r.Reconcile(ctx, "u1", live); err != nil {
		t.Fatalf("pass failed: %v", err)
	}
	views, _, err := r.Reconcile(ctx, "u1", nil)
	if err != nil {
		t.Fatalf("pass failed: %v", err)
	}
	if views[0].Status == store.StatusError {
		t.Error("grace window did not reset after the transfer reappeared")
	}
}

func TestReconcileRapidPassesStayInGrace(t *testing.T) {
	repo := newTestRepo(t)
	r := New(repo) // real clock: the passes below run within milliseconds
	ctx := context.Background()

	// Every list request triggers a pass, so a user who adds a download and
	// refreshes a few times before the transfer shows up in the client's
	// list must not see the fresh record flipped to error.
	d := insertDownload(t, repo, &store.Download{
		UserID: "u1", Hash: "justadded", Title: "movie", Status: store.StatusQueued, ETA: -1,
	})

	for i := 0; i < 5; i++ {
		views, orphans, err := r.Reconcile(ctx, "u1", nil)
		if err != nil {
			t.Fatalf("pass %d failed: %v", i, err)
		}
		if len(orphans) != 1 {
			t.Fatalf("pass %d: expected 1 orphan, got %d", i, len(orphans))
		}
		if views[0].Status != store.StatusQueued {
			t.Fatalf("pass %d flipped a fresh record to %q", i, views[0].Status)
		}
	}

	stored, err := repo.Get(ctx, d.ID)
	if err != nil {
		t.Fatalf("get download: %v", err)
	}
	if stored.Status != store.StatusQueued {
		t.Errorf("stored status = %q, want queued", stored.Status)
	}
}

func TestReconcileTerminalRecordsAreNotOrphans(t *testing.T) {
	repo := newTestRepo(t)
	r := New(repo)
	ctx := context.Background()

	tests := []struct {
		name   string
		status store.Status
	}{
		{"completed", store.StatusCompleted},
		{"errored", store.StatusError},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			d := insertDownload(t, repo, &store.Download{
				UserID: "u1", Hash: "term-" + tc.name, Title: tc.name, Status: tc.status,
			})

			for i := 0; i < 3; i++ {
				views, orphans, err := r.Reconcile(ctx, "u1", nil)
				if err != nil {
					t.Fatalf("pass %d failed: %v", i, err)
				}
				if len(orphans) != 0 {
					t.Fatalf("terminal record reported as orphan: %+v", orphans)
				}
				for _, v := range views {
					if v.ID == d.ID && v.Status != tc.status {
						t.Errorf("terminal status changed to %q", v.Status)
					}
				}
			}
		})
	}
}

func TestReconcileUnknownStateFallsBack(t *testing.T) {
	repo := newTestRepo(t)
	r := New(repo)
	ctx := context.Background()

	insertDownload(t, repo, &store.Download{
		UserID: "u1", Hash: "h1", Title: "movie", Status: store.StatusQueued,
	})

	views, _, err := r.Reconcile(ctx, "u1", []services.TorrentState{
		{Hash: "h1", State: "factoryNewState", Progress: 0.7},
	})
	if err != nil {
		t.Fatalf("Reconcile failed: %v", err)
	}
	if views[0].Status != store.StatusUnknown {
		t.Errorf("status = %q, want unknown", views[0].Status)
	}
	// Numeric fields still apply even when the state label is unrecognized.
	if views[0].Progress != 0.7 {
		t.Errorf("progress not applied: %v", views[0].Progress)
	}
}

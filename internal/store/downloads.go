// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

// Status is the closed download status vocabulary owned by Pandora Box.
// Upstream torrent-client states are mapped onto it during reconciliation and
// never leak past that boundary.
type Status string

const (
	StatusQueued      Status = "queued"
	StatusDownloading Status = "downloading"
	StatusPaused      Status = "paused"
	StatusCompleted   Status = "completed"
	StatusSeeding     Status = "seeding"
	StatusError       Status = "error"
	StatusUnknown     Status = "unknown"
)

// Download is the locally owned record of one torrent transfer. It belongs to
// exactly one user. Hash is the torrent info-hash, the shared identifier with
// the torrent client's live transfer list.
type Download struct {
	ID        string  `json:"id"`
	UserID    string  `json:"user_id"`
	Hash      string  `json:"hash"`
	Title     string  `json:"title"` // user intent: the title as searched/added
	Category  string  `json:"category,omitempty"`
	CatalogID int64   `json:"catalog_id,omitempty"` // associated metadata catalog id
	Status    Status  `json:"status"`
	Progress  float64 `json:"progress"` // 0.0 - 1.0
	Speed     int64   `json:"speed"`    // bytes/s, last observed download rate
	ETA       int64   `json:"eta"`      // seconds, -1 when unknown
	Size      int64   `json:"size"`     // bytes
	SavePath  string  `json:"save_path,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Key prefixes for the downloads collection. The user and hash prefixes are
// secondary indexes whose values are primary keys.
const (
	downloadKeyPrefix     = "downloads:"
	downloadUserKeyPrefix = "downloads_user:"
	downloadHashKeyPrefix = "downloads_hash:"
)

// DownloadRepo provides access to the downloads collection.
type DownloadRepo struct {
	store *Store
}

func downloadKeys(d *Download) (key, userIdx, hashIdx []byte) {
	key = []byte(downloadKeyPrefix + d.ID)
	userIdx = []byte(downloadUserKeyPrefix + d.UserID + ":" + d.ID)
	hashIdx = []byte(downloadHashKeyPrefix + d.UserID + ":" + d.Hash)
	return key, userIdx, hashIdx
}

// Insert persists a new download record. ID and timestamps are assigned here
// when unset.
func (r *DownloadRepo) Insert(ctx context.Context, d *Download) error {
	if d.UserID == "" {
		return fmt.Errorf("insert download: user id is required")
	}
	if d.Hash == "" {
		return fmt.Errorf("insert download: hash is required")
	}
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if d.CreatedAt.IsZero() {
		d.CreatedAt = now
	}
	d.UpdatedAt = now

	key, userIdx, hashIdx := downloadKeys(d)
	return r.store.putDoc(key, d, userIdx, hashIdx)
}

// Update overwrites the stored record. The write is a full idempotent
// overwrite: reconciliation calls it every pass whether or not anything
// changed, because consumers read this record as the source of truth between
// passes.
func (r *DownloadRepo) Update(ctx context.Context, d *Download) error {
	var existing Download
	if err := r.store.getDoc([]byte(downloadKeyPrefix+d.ID), &existing); err != nil {
		return err
	}
	d.UpdatedAt = time.Now().UTC()

	key, userIdx, hashIdx := downloadKeys(d)
	return r.store.putDoc(key, d, userIdx, hashIdx)
}

// Get returns one download by id.
func (r *DownloadRepo) Get(ctx context.Context, id string) (*Download, error) {
	var d Download
	if err := r.store.getDoc([]byte(downloadKeyPrefix+id), &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// GetByHash returns the user's download with the given info-hash. The lookup
// is scoped to one user: two users may each own a record for the same hash.
// The index value is a raw primary key, resolved inside the same transaction.
func (r *DownloadRepo) GetByHash(ctx context.Context, userID, hash string) (*Download, error) {
	idxKey := []byte(downloadHashKeyPrefix + userID + ":" + hash)

	var d Download
	err := r.store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(idxKey)
		if err != nil {
			return ErrNotFound
		}
		return item.Value(func(primaryKey []byte) error {
			inner, err := txn.Get(primaryKey)
			if err != nil {
				return ErrNotFound
			}
			return inner.Value(func(doc []byte) error {
				return json.Unmarshal(doc, &d)
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByUser returns every download owned by userID, the ownership filter for
// reconciliation and the user's list view.
func (r *DownloadRepo) ListByUser(ctx context.Context, userID string) ([]Download, error) {
	prefix := []byte(downloadUserKeyPrefix + userID + ":")

	var downloads []Download
	err := r.store.iteratePrefix(prefix, func(txn *badger.Txn, primaryKey []byte) error {
		item, err := txn.Get(primaryKey)
		if err != nil {
			// Index entry with a missing primary document; skip rather
			// than fail the listing.
			return nil
		}
		return item.Value(func(doc []byte) error {
			var d Download
			if err := json.Unmarshal(doc, &d); err != nil {
				return fmt.Errorf("unmarshal download: %w", err)
			}
			downloads = append(downloads, d)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return downloads, nil
}

// Delete removes the record and its index entries. Only an explicit user
// action reaches this; reconciliation never deletes.
func (r *DownloadRepo) Delete(ctx context.Context, id string) error {
	d, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	key, userIdx, hashIdx := downloadKeys(d)
	return r.store.deleteDoc(key, userIdx, hashIdx)
}

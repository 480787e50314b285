// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

// Package store persists Pandora Box's own records in BadgerDB as JSON
// documents under collection key prefixes. Upstream services remain the
// authority for live state; this store holds what the box owns: per-user
// download records and local user accounts.
package store

import (
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/atifkhan161/pandora-box-sub000/internal/logging"
)

// ErrNotFound is returned when a document does not exist in its collection.
var ErrNotFound = errors.New("store: document not found")

// Store wraps a Badger database and exposes the typed collections.
type Store struct {
	db *badger.DB

	Downloads *DownloadRepo
	Users     *UserRepo
}

// Options controls how the database is opened.
type Options struct {
	// Path is the data directory. Ignored when InMemory is set.
	Path string

	// InMemory opens an ephemeral database, used by tests.
	InMemory bool
}

// Open opens (creating if needed) the document store.
func Open(opts Options) (*Store, error) {
	badgerOpts := badger.DefaultOptions(opts.Path)
	if opts.InMemory {
		badgerOpts = badgerOpts.WithInMemory(true)
	}
	// Badger logs through its own interface; route it to the facade at a
	// quieter level.
	badgerOpts = badgerOpts.WithLogger(badgerLogger{})

	db, err := badger.Open(badgerOpts)
	if err != nil {
		return nil, fmt.Errorf("open badger at %q: %w", opts.Path, err)
	}

	s := &Store{db: db}
	s.Downloads = &DownloadRepo{store: s}
	s.Users = &UserRepo{store: s}
	return s, nil
}

// Close flushes and closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// putDoc marshals doc and writes it at key, together with any secondary index
// keys pointing back at it.
func (s *Store) putDoc(key []byte, doc interface{}, indexKeys ...[]byte) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal document: %w", err)
	}

	return s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set(key, data); err != nil {
			return fmt.Errorf("set document: %w", err)
		}
		for _, idx := range indexKeys {
			if err := txn.Set(idx, key); err != nil {
				return fmt.Errorf("set index: %w", err)
			}
		}
		return nil
	})
}

// getDoc reads the document at key into out.
func (s *Store) getDoc(key []byte, out interface{}) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get document: %w", err)
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
}

// getRaw copies the raw bytes stored at key into out. Used for secondary
// index entries, whose values are primary keys rather than JSON documents.
func (s *Store) getRaw(key []byte, out *[]byte) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(key)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("get raw: %w", err)
		}
		val, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		*out = val
		return nil
	})
}

// deleteDoc removes the document and its index keys. Deleting an absent
// document is not an error.
func (s *Store) deleteDoc(key []byte, indexKeys ...[]byte) error {
	return s.db.Update(func(txn *badger.Txn) error {
		for _, k := range append([][]byte{key}, indexKeys...) {
			if err := txn.Delete(k); err != nil && !errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("delete %q: %w", k, err)
			}
		}
		return nil
	})
}

// iteratePrefix calls fn with the raw value of every document under prefix.
// When the prefix is a secondary index its values are primary keys, which fn
// can resolve with a nested lookup inside the same transaction.
func (s *Store) iteratePrefix(prefix []byte, fn func(txn *badger.Txn, val []byte) error) error {
	return s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				return fn(txn, val)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
}

// badgerLogger adapts Badger's logger interface onto the logging facade.
// Badger is chatty at INFO during compaction, so its info output maps to
// debug level.
type badgerLogger struct{}

func (badgerLogger) Errorf(format string, args ...interface{}) {
	logging.Error().Msgf("badger: "+format, args...)
}

func (badgerLogger) Warningf(format string, args ...interface{}) {
	logging.Warn().Msgf("badger: "+format, args...)
}

func (badgerLogger) Infof(format string, args ...interface{}) {
	logging.Debug().Msgf("badger: "+format, args...)
}

func (badgerLogger) Debugf(format string, args ...interface{}) {
	logging.Debug().Msgf("badger: "+format, args...)
}

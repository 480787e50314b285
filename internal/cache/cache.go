// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

// Package cache provides the in-memory TTL cache that fronts every
// read-heavy upstream integration.
//
// Entries are addressed by (namespace, category, key) so each upstream can
// carry its own TTL policy: namespace names the service ("tmdb", "jackett"),
// category names the call ("trending", "search"), key identifies the request.
//
// Staleness is decided on the read path: an expired entry is reported as a
// miss and left in place for the next Set to overwrite. Callers treat every
// miss the same way, by re-fetching upstream and calling Set, so a stale read
// costs at most one redundant upstream fetch. Upstream errors are never
// cached.
package cache

import (
	"crypto/sha256"
	"fmt"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/atifkhan161/pandora-box-sub000/internal/metrics"
)

// Entry is one cached payload with its write time and lifetime.
type Entry struct {
	Payload   interface{}
	CreatedAt time.Time
	TTL       time.Duration
}

// Store is a concurrency-safe TTL cache. Concurrent Set calls to the same
// key are last-writer-wins; payloads for the same key are expected to be
// equivalent or fresher, so no compare-and-swap is needed.
type Store struct {
	mu      sync.RWMutex
	entries map[string]Entry

	// now is swappable for deterministic expiry tests.
	now func() time.Time
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		entries: make(map[string]Entry),
		now:     time.Now,
	}
}

// entryKey joins the three-part address into the map key. The null separator
// keeps "a","bc" distinct from "ab","c".
func entryKey(namespace, category, key string) string {
	return namespace + "\x00" + category + "\x00" + key
}

// Get returns the payload for (namespace, category, key) and whether it was a
// hit. A miss does not distinguish "never written" from "expired"; expired
// entries are simply ignored until the next Set overwrites them.
func (s *Store) Get(namespace, category, key string) (interface{}, bool) {
	s.mu.RLock()
	entry, exists := s.entries[entryKey(namespace, category, key)]
	s.mu.RUnlock()

	if !exists || s.now().Sub(entry.CreatedAt) >= entry.TTL {
		metrics.CacheMisses.WithLabelValues(namespace).Inc()
		return nil, false
	}

	metrics.CacheHits.WithLabelValues(namespace).Inc()
	return entry.Payload, true
}

// Set writes the payload with the given TTL, overwriting any previous entry
// for the same address. A non-positive TTL makes the entry immediately stale.
func (s *Store) Set(namespace, category, key string, payload interface{}, ttl time.Duration) {
	s.mu.Lock()
	s.entries[entryKey(namespace, category, key)] = Entry{
		Payload:   payload,
		CreatedAt: s.now(),
		TTL:       ttl,
	}
	metrics.CacheEntries.Set(float64(len(s.entries)))
	s.mu.Unlock()
}

// Delete removes a specific entry. No-op if absent; used for manual
// invalidation after a write that obsoletes the cached read.
func (s *Store) Delete(namespace, category, key string) {
	s.mu.Lock()
	delete(s.entries, entryKey(namespace, category, key))
	metrics.CacheEntries.Set(float64(len(s.entries)))
	s.mu.Unlock()
}

// Len returns the current entry count, stale entries included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// Sweep deletes entries that are already stale and returns how many were
// removed. It exists purely to bound memory in long-running processes; the
// read path never depends on it.
func (s *Store) Sweep() int {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, entry := range s.entries {
		if now.Sub(entry.CreatedAt) >= entry.TTL {
			delete(s.entries, key)
			removed++
		}
	}
	metrics.CacheEntries.Set(float64(len(s.entries)))
	return removed
}

// SweepLoop runs Sweep on the given interval until stop is closed.
func (s *Store) SweepLoop(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.Sweep()
		}
	}
}

// RequestKey derives a stable cache key from arbitrary request parameters.
func RequestKey(params interface{}) string {
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Sprintf("%v", params)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash[:16])
}

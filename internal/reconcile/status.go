// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package reconcile

import (
	"github.com/atifkhan161/pandora-box-sub000/internal/logging"
	"github.com/atifkhan161/pandora-box-sub000/internal/store"
)

// torrentStatusMap is the total mapping from the torrent client's native
// state vocabulary onto the closed status enum. Every state the WebUI API
// documents has an entry; anything else falls through to StatusUnknown so a
// client upgrade that adds states degrades to "unknown" instead of failing
// the pass.
var torrentStatusMap = map[string]store.Status{
	"downloading":        store.StatusDownloading,
	"stalledDL":          store.StatusDownloading,
	"metaDL":             store.StatusDownloading,
	"allocating":         store.StatusDownloading,
	"checkingDL":         store.StatusDownloading,
	"forcedDL":           store.StatusDownloading,
	"queuedDL":           store.StatusQueued,
	"pausedDL":           store.StatusPaused,
	"stoppedDL":          store.StatusPaused,
	"uploading":          store.StatusSeeding,
	"stalledUP":          store.StatusSeeding,
	"forcedUP":           store.StatusSeeding,
	"queuedUP":           store.StatusCompleted,
	"checkingUP":         store.StatusCompleted,
	"pausedUP":           store.StatusCompleted,
	"stoppedUP":          store.StatusCompleted,
	"checkingResumeData": store.StatusQueued,
	"moving":             store.StatusCompleted,
	"error":              store.StatusError,
	"missingFiles":       store.StatusError,
}

// MapTorrentState converts one native torrent-client state into the owned
// status vocabulary. Unrecognized states map to StatusUnknown and are logged
// once per pass at warn level by the caller's dedup, here at debug.
func MapTorrentState(native string) store.Status {
	if status, ok := torrentStatusMap[native]; ok {
		return status
	}
	logging.Warn().Str("state", native).Msg("unrecognized torrent state, mapping to unknown")
	return store.StatusUnknown
}

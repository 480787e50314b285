// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package reconcile

import (
	"context"
	"time"

	"github.com/atifkhan161/pandora-box-sub000/internal/logging"
	"github.com/atifkhan161/pandora-box-sub000/internal/services"
	"github.com/atifkhan161/pandora-box-sub000/internal/store"
)

// Notifier pushes updated views to whoever is listening for a user. The
// websocket hub implements it; the poller stays unaware of transports.
type Notifier interface {
	NotifyDownloads(userID string, views []MergedView) int
}

// TorrentLister is the slice of the torrent client the poller needs.
type TorrentLister interface {
	ListTorrents(ctx context.Context) ([]services.TorrentState, error)
}

// Poller drives reconciliation on a fixed interval: one live fetch per tick,
// then a per-user pass over every account. Pass failures are logged and the
// loop keeps ticking; a broken upstream must not take the poller down.
type Poller struct {
	torrents   TorrentLister
	reconciler *Reconciler
	users      *store.UserRepo
	notifier   Notifier
	interval   time.Duration
}

// NewPoller builds the poller. torrents may be nil when the torrent client is
// not configured; Run then idles until shutdown.
func NewPoller(torrents TorrentLister, reconciler *Reconciler, users *store.UserRepo, notifier Notifier, interval time.Duration) *Poller {
	return &Poller{
		torrents:   torrents,
		reconciler: reconciler,
		users:      users,
		notifier:   notifier,
		interval:   interval,
	}
}

// Run ticks until ctx is canceled. Each tick runs with its own detached
// timeout so a slow upstream bounds one pass, not the loop.
func (p *Poller) Run(ctx context.Context) {
	if p.torrents == nil {
		logging.Info().Msg("poller: torrent client not configured, reconciliation disabled")
		<-ctx.Done()
		return
	}

	logging.Info().Dur("interval", p.interval).Msg("poller: starting")
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Info().Msg("poller: stopping")
			return
		case <-ticker.C:
			passCtx, cancel := context.WithTimeout(context.Background(), p.interval*2)
			p.pass(passCtx)
			cancel()
		}
	}
}

// pass fetches the live list once and reconciles every user against it.
func (p *Poller) pass(ctx context.Context) {
	live, err := p.torrents.ListTorrents(ctx)
	if err != nil {
		logging.Err(err).Msg("poller: live transfer list fetch failed")
		return
	}

	users, err := p.users.List(ctx)
	if err != nil {
		logging.Err(err).Msg("poller: user listing failed")
		return
	}

	for _, u := range users {
		views, orphans, err := p.reconciler.Reconcile(ctx, u.ID, live)
		if err != nil {
			logging.Err(err).Str("user_id", u.ID).Msg("poller: reconcile pass failed")
			continue
		}
		if len(orphans) > 0 {
			logging.Debug().Str("user_id", u.ID).Int("orphans", len(orphans)).Msg("poller: orphaned records this pass")
		}
		if p.notifier != nil && len(views) > 0 {
			p.notifier.NotifyDownloads(u.ID, views)
		}
	}
}

// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/atifkhan161/pandora-box-sub000/internal/config"
)

// TorrentState is the live, authoritative view of one transfer as reported
// by the torrent client. It is ephemeral: fetched fresh on every
// reconciliation pass and never persisted.
type TorrentState struct {
	Hash     string  `json:"hash"`
	Name     string  `json:"name"`
	State    string  `json:"state"` // native vocabulary, mapped by the reconciler
	Progress float64 `json:"progress"`
	DlSpeed  int64   `json:"dlspeed"`
	ETA      int64   `json:"eta"`
	Size     int64   `json:"size"`
	SavePath string  `json:"save_path"`
	Category string  `json:"category"`
}

// QBittorrentClient is the torrent-client integration, built on the shared
// session client: qBittorrent's WebUI API authenticates with a login form
// that sets an SID cookie, which it expires server-side on its own schedule.
type QBittorrentClient struct {
	*SessionClient
}

// NewQBittorrentClient builds the client from config.
func NewQBittorrentClient(cfg config.SessionService) *QBittorrentClient {
	return &QBittorrentClient{
		SessionClient: NewSessionClient(
			"qbittorrent",
			strings.TrimRight(cfg.URL, "/"),
			cfg.Username,
			cfg.Password,
			cfg.SessionTTL,
			cfg.Timeout,
			qbittorrentLogin,
		),
	}
}

// qbittorrentLogin posts the WebUI login form and captures the SID cookie.
// qBittorrent answers 200 with body "Fails." on bad credentials, so the body
// is checked as well as the status.
func qbittorrentLogin(ctx context.Context, httpClient *http.Client, baseURL, username, password string) (Credential, error) {
	form := url.Values{}
	form.Set("username", username)
	form.Set("password", password)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/v2/auth/login", strings.NewReader(form.Encode()))
	if err != nil {
		return Credential{}, fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := httpClient.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Credential{}, fmt.Errorf("read login response: %w", err)
	}

	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "Ok." {
		return Credential{}, fmt.Errorf("login rejected: status %d, body %q", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	for _, cookie := range resp.Cookies() {
		if cookie.Name == "SID" {
			return Credential{Cookie: cookie}, nil
		}
	}
	return Credential{}, fmt.Errorf("login response missing SID cookie")
}

// ListTorrents fetches the full live transfer list. The list is
// process-wide: it may contain transfers belonging to other users, which the
// reconciler's ownership filter excludes per caller.
func (c *QBittorrentClient) ListTorrents(ctx context.Context) ([]TorrentState, error) {
	var torrents []TorrentState
	err := c.DoJSON(ctx, Request{
		Method: http.MethodGet,
		Path:   "/api/v2/torrents/info",
	}, &torrents)
	if err != nil {
		return nil, err
	}
	return torrents, nil
}

// AddMagnet submits a magnet link, optionally into a category.
func (c *QBittorrentClient) AddMagnet(ctx context.Context, magnet, category string) error {
	form := url.Values{}
	form.Set("urls", magnet)
	if category != "" {
		form.Set("category", category)
	}

	_, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/api/v2/torrents/add",
		Body:        []byte(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	})
	return err
}

// DeleteTorrent removes a transfer by hash, deleting downloaded files when
// deleteFiles is set.
func (c *QBittorrentClient) DeleteTorrent(ctx context.Context, hash string, deleteFiles bool) error {
	form := url.Values{}
	form.Set("hashes", hash)
	form.Set("deleteFiles", fmt.Sprintf("%t", deleteFiles))

	_, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/api/v2/torrents/delete",
		Body:        []byte(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	})
	return err
}

// PauseTorrent pauses one transfer by hash.
func (c *QBittorrentClient) PauseTorrent(ctx context.Context, hash string) error {
	form := url.Values{}
	form.Set("hashes", hash)

	_, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/api/v2/torrents/pause",
		Body:        []byte(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	})
	return err
}

// ResumeTorrent resumes one transfer by hash.
func (c *QBittorrentClient) ResumeTorrent(ctx context.Context, hash string) error {
	form := url.Values{}
	form.Set("hashes", hash)

	_, err := c.Do(ctx, Request{
		Method:      http.MethodPost,
		Path:        "/api/v2/torrents/resume",
		Body:        []byte(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	})
	return err
}

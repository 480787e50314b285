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
	"strings"

	"github.com/goccy/go-json"

	"github.com/atifkhan161/pandora-box-sub000/internal/config"
)

// StorageUsage reports the file browser's disk usage for the download root.
type StorageUsage struct {
	Used  int64 `json:"used"`
	Total int64 `json:"total"`
}

// FileBrowserClient is the file browser integration. Its API issues a JWT
// from a login endpoint, returned as a raw token body, and invalidates it
// server-side on restart, the session client's re-login path covers both.
type FileBrowserClient struct {
	*SessionClient
}

// NewFileBrowserClient builds the client from config.
func NewFileBrowserClient(cfg config.SessionService) *FileBrowserClient {
	return &FileBrowserClient{
		SessionClient: NewSessionClient(
			"filebrowser",
			strings.TrimRight(cfg.URL, "/"),
			cfg.Username,
			cfg.Password,
			cfg.SessionTTL,
			cfg.Timeout,
			filebrowserLogin,
		),
	}
}

func filebrowserLogin(ctx context.Context, httpClient *http.Client, baseURL, username, password string) (Credential, error) {
	payload, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return Credential{}, fmt.Errorf("marshal login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/login", strings.NewReader(string(payload)))
	if err != nil {
		return Credential{}, fmt.Errorf("create login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return Credential{}, fmt.Errorf("login request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Credential{}, fmt.Errorf("login rejected: status %d", resp.StatusCode)
	}

	token, err := io.ReadAll(resp.Body)
	if err != nil {
		return Credential{}, fmt.Errorf("read login response: %w", err)
	}
	if len(token) == 0 {
		return Credential{}, fmt.Errorf("login response missing token")
	}
	return Credential{Bearer: strings.TrimSpace(string(token))}, nil
}

// Usage returns disk usage of the download root.
func (c *FileBrowserClient) Usage(ctx context.Context) (*StorageUsage, error) {
	var usage StorageUsage
	err := c.DoJSON(ctx, Request{
		Method: http.MethodGet,
		Path:   "/api/usage/",
	}, &usage)
	if err != nil {
		return nil, err
	}
	return &usage, nil
}

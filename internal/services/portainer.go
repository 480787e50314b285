// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goccy/go-json"

	"github.com/atifkhan161/pandora-box-sub000/internal/config"
)

// Container is one orchestrator-managed container, trimmed to the fields the
// dashboard shows.
type Container struct {
	ID     string   `json:"Id"`
	Names  []string `json:"Names"`
	Image  string   `json:"Image"`
	State  string   `json:"State"`
	Status string   `json:"Status"`
}

// PortainerClient is the container orchestrator integration. Portainer's API
// authenticates with a login endpoint returning a JWT that expires
// server-side, so it rides the shared session client.
type PortainerClient struct {
	*SessionClient
}

// NewPortainerClient builds the client from config.
func NewPortainerClient(cfg config.SessionService) *PortainerClient {
	return &PortainerClient{
		SessionClient: NewSessionClient(
			"portainer",
			strings.TrimRight(cfg.URL, "/"),
			cfg.Username,
			cfg.Password,
			cfg.SessionTTL,
			cfg.Timeout,
			portainerLogin,
		),
	}
}

func portainerLogin(ctx context.Context, httpClient *http.Client, baseURL, username, password string) (Credential, error) {
	payload, err := json.Marshal(map[string]string{
		"username": username,
		"password": password,
	})
	if err != nil {
		return Credential{}, fmt.Errorf("marshal login payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/auth", strings.NewReader(string(payload)))
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

	var body struct {
		JWT string `json:"jwt"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return Credential{}, fmt.Errorf("decode login response: %w", err)
	}
	if body.JWT == "" {
		return Credential{}, fmt.Errorf("login response missing jwt")
	}
	return Credential{Bearer: body.JWT}, nil
}

// ListContainers returns the containers of one endpoint (environment).
func (c *PortainerClient) ListContainers(ctx context.Context, endpointID int) ([]Container, error) {
	query := url.Values{}
	query.Set("all", "true")

	var containers []Container
	err := c.DoJSON(ctx, Request{
		Method: http.MethodGet,
		Path:   fmt.Sprintf("/api/endpoints/%d/docker/containers/json", endpointID),
		Query:  query,
	}, &containers)
	if err != nil {
		return nil, err
	}
	return containers, nil
}

// RestartContainer restarts one container by id.
func (c *PortainerClient) RestartContainer(ctx context.Context, endpointID int, containerID string) error {
	_, err := c.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   fmt.Sprintf("/api/endpoints/%d/docker/containers/%s/restart", endpointID, containerID),
	})
	return err
}

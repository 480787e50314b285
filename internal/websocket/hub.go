// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

// Package websocket pushes live download state to connected browsers. The
// hub partitions clients by user: a broadcast addresses exactly one user's
// connections and is invisible to everyone else's.
package websocket

import (
	"context"
	"sort"
	"sync"

	"github.com/atifkhan161/pandora-box-sub000/internal/logging"
	"github.com/atifkhan161/pandora-box-sub000/internal/metrics"
	"github.com/atifkhan161/pandora-box-sub000/internal/reconcile"
)

// Message types pushed to clients.
const (
	MessageTypeDownloads = "downloads"
	MessageTypePing      = "ping"
	MessageTypePong      = "pong"
)

// Message is one frame on the wire.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// Hub tracks active clients per user and fans messages out to them.
// Registration runs through channels serviced by Run; broadcasts are
// synchronous so callers learn how many connections actually took the frame.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]bool // user id -> connections

	Register   chan *Client
	Unregister chan *Client

	// done is closed once Run returns, so pending unregisters fall through
	// instead of blocking on a channel nobody services anymore.
	done chan struct{}
}

// NewHub creates an empty hub. Run must be started for registration to work.
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
	}
}

// Run services client lifecycle events until ctx is canceled, then closes
// every remaining connection and returns ctx.Err().
func (h *Hub) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			closed := h.closeAll()
			close(h.done)
			logging.Info().Int("clients_closed", closed).Msg("websocket hub stopped")
			return ctx.Err()

		case client := <-h.Register:
			h.add(client)

		case client := <-h.Unregister:
			h.remove(client)
		}
	}
}

func (h *Hub) add(client *Client) {
	h.mu.Lock()
	conns := h.clients[client.userID]
	if conns == nil {
		conns = make(map[*Client]bool)
		h.clients[client.userID] = conns
	}
	conns[client] = true
	total := h.totalLocked()
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(total))
	logging.Info().Str("user_id", client.userID).Int("total_clients", total).Msg("websocket client connected")
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	conns, ok := h.clients[client.userID]
	if ok {
		if _, registered := conns[client]; registered {
			delete(conns, client)
			close(client.send)
		}
		if len(conns) == 0 {
			delete(h.clients, client.userID)
		}
	}
	total := h.totalLocked()
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(total))
	logging.Info().Str("user_id", client.userID).Int("total_clients", total).Msg("websocket client disconnected")
}

// totalLocked counts connections across all users. Callers hold h.mu.
func (h *Hub) totalLocked() int {
	total := 0
	for _, conns := range h.clients {
		total += len(conns)
	}
	return total
}

// Broadcast delivers msg to every connection of one user and returns how
// many connections accepted it. Sends never block: a connection whose buffer
// is full is dropped from the hub mid-broadcast, its pumps notice the closed
// channel and tear the socket down. Connections of other users are never
// touched. Iteration is in client-id order so delivery is reproducible.
func (h *Hub) Broadcast(userID string, msg Message) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.clients[userID]
	if len(conns) == 0 {
		return 0
	}

	ordered := make([]*Client, 0, len(conns))
	for client := range conns {
		ordered = append(ordered, client)
	}
	sort.Slice(ordered, func(i, j int) bool {
		return ordered[i].id < ordered[j].id
	})

	delivered := 0
	for _, client := range ordered {
		select {
		case client.send <- msg:
			delivered++
		default:
			delete(conns, client)
			close(client.send)
			metrics.WebSocketDrops.Inc()
			logging.Warn().
				Str("user_id", userID).
				Uint64("client_id", client.id).
				Msg("websocket send buffer full, dropping client")
		}
	}
	if len(conns) == 0 {
		delete(h.clients, userID)
	}
	metrics.WebSocketClients.Set(float64(h.totalLocked()))
	return delivered
}

// unregister hands a client back to the lifecycle loop. After shutdown the
// loop is gone and closeAll already disconnected everyone, so the send falls
// through rather than blocking a read pump forever.
func (h *Hub) unregister(c *Client) {
	select {
	case h.Unregister <- c:
	case <-h.done:
	}
}

// NotifyDownloads pushes the reconciled download views to one user's
// connections. Satisfies the poller's notifier.
func (h *Hub) NotifyDownloads(userID string, views []reconcile.MergedView) int {
	return h.Broadcast(userID, Message{
		Type: MessageTypeDownloads,
		Data: views,
	})
}

// ClientCount returns the number of connections for one user, or the total
// when userID is empty.
func (h *Hub) ClientCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if userID == "" {
		return h.totalLocked()
	}
	return len(h.clients[userID])
}

// closeAll disconnects everything, returning the number of closed clients.
func (h *Hub) closeAll() int {
	h.mu.Lock()
	defer h.mu.Unlock()

	closed := 0
	for userID, conns := range h.clients {
		for client := range conns {
			close(client.send)
			closed++
		}
		delete(h.clients, userID)
	}
	metrics.WebSocketClients.Set(0)
	return closed
}

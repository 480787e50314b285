// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package api

import (
	"net/http"

	gorilla "github.com/gorilla/websocket"

	"github.com/atifkhan161/pandora-box-sub000/internal/auth"
	"github.com/atifkhan161/pandora-box-sub000/internal/logging"
	"github.com/atifkhan161/pandora-box-sub000/internal/websocket"
)

// handleWebSocket upgrades the connection and registers it under the
// authenticated user, binding the push stream to that user for the life of
// the socket.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		respondError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	upgrader := gorilla.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkWebSocketOrigin,
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := websocket.NewClient(s.hub, conn, claims.UserID)
	s.hub.Register <- client
	client.Start()
}

// checkWebSocketOrigin applies the CORS origin list to the upgrade request.
// Same-origin requests (no Origin header) and a wildcard configuration pass.
func (s *Server) checkWebSocketOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	for _, allowed := range s.cfg.Security.CORSOrigins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return false
}

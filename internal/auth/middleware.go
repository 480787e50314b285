// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/goccy/go-json"
)

type contextKey string

const claimsContextKey contextKey = "auth_claims"

// tokenCookieName is the HTTP-only cookie alternative to the Authorization
// header, used by the browser UI and the websocket upgrade (which cannot set
// headers from JavaScript).
const tokenCookieName = "pb_token"

// Middleware returns a handler wrapper that rejects requests without a valid
// token. The token is read from the Authorization header, the pb_token
// cookie, or (websocket upgrades only) a token query parameter, in that
// order.
func (m *JWTManager) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := extractToken(r)
		if token == "" {
			unauthorized(w, "missing token")
			return
		}

		claims, err := m.ValidateToken(token)
		if err != nil {
			unauthorized(w, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), claimsContextKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ClaimsFromContext returns the authenticated identity set by Middleware.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}

func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
			return header[7:]
		}
	}
	if cookie, err := r.Cookie(tokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	if isWebSocketUpgrade(r) {
		return r.URL.Query().Get("token")
	}
	return ""
}

func isWebSocketUpgrade(r *http.Request) bool {
	return strings.EqualFold(r.Header.Get("Upgrade"), "websocket")
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

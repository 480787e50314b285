// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

package api

import (
	"net/http"

	"github.com/atifkhan161/pandora-box-sub000/internal/auth"
	"github.com/atifkhan161/pandora-box-sub000/internal/logging"
)

type loginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type loginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// handleLogin checks credentials against the local account store and issues
// a token. The failure message is identical for an unknown user and a wrong
// password.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := s.validate.Struct(&req); err != nil {
		respondError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	user, err := s.store.Users.GetByUsername(r.Context(), req.Username)
	if err != nil || !auth.CheckPassword(user.PasswordHash, req.Password) {
		logging.Warn().Str("username", req.Username).Msg("login failed")
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, err := s.jwt.GenerateToken(user.ID, user.Username, user.Role)
	if err != nil {
		logging.Err(err).Msg("token generation failed")
		respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	logging.Info().Str("username", user.Username).Msg("login succeeded")
	respondJSON(w, http.StatusOK, loginResponse{
		Token:    token,
		Username: user.Username,
		Role:     user.Role,
	})
}

// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

// Package api is the HTTP surface of the box: authentication, per-user
// download management backed by live reconciliation, indexer search, the
// metadata catalog, container management, system status and the websocket
// push endpoint.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/atifkhan161/pandora-box-sub000/internal/auth"
	"github.com/atifkhan161/pandora-box-sub000/internal/config"
	"github.com/atifkhan161/pandora-box-sub000/internal/reconcile"
	"github.com/atifkhan161/pandora-box-sub000/internal/services"
	"github.com/atifkhan161/pandora-box-sub000/internal/store"
	"github.com/atifkhan161/pandora-box-sub000/internal/websocket"
)

// Server holds the wired dependencies behind the HTTP handlers.
type Server struct {
	cfg        *config.Config
	store      *store.Store
	registry   *services.Registry
	reconciler *reconcile.Reconciler
	hub        *websocket.Hub
	jwt        *auth.JWTManager
	validate   *validator.Validate
}

// NewServer wires the handler set. Nothing is started here; Routes returns
// the handler tree and the caller owns the http.Server.
func NewServer(cfg *config.Config, st *store.Store, registry *services.Registry, reconciler *reconcile.Reconciler, hub *websocket.Hub, jwt *auth.JWTManager) *Server {
	return &Server{
		cfg:        cfg,
		store:      st,
		registry:   registry,
		reconciler: reconciler,
		hub:        hub,
		jwt:        jwt,
		validate:   validator.New(),
	}
}

// Routes builds the router. Auth endpoints carry a tight login rate limit;
// everything else under /api/v1 requires a valid token.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.Security.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1/auth", func(r chi.Router) {
		// Brute-force guard keyed by client IP, deliberately tighter than
		// the general API budget.
		r.With(httprate.LimitByIP(10, s.cfg.Security.RateLimitWindow)).Post("/login", s.handleLogin)
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.LimitByIP(s.cfg.Security.RateLimitReqs, s.cfg.Security.RateLimitWindow))
		r.Use(s.jwt.Middleware)

		r.Get("/ws", s.handleWebSocket)

		r.Route("/downloads", func(r chi.Router) {
			r.Get("/", s.handleListDownloads)
			r.Post("/", s.handleAddDownload)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", s.handleDeleteDownload)
				r.Post("/pause", s.handlePauseDownload)
				r.Post("/resume", s.handleResumeDownload)
			})
		})

		r.Get("/search", s.handleSearch)

		r.Route("/catalog", func(r chi.Router) {
			r.Get("/trending", s.handleCatalogTrending)
			r.Get("/popular", s.handleCatalogPopular)
			r.Get("/search", s.handleCatalogSearch)
		})

		r.Route("/containers", func(r chi.Router) {
			r.Get("/", s.handleListContainers)
			r.Post("/{id}/restart", s.handleRestartContainer)
		})

		r.Get("/system/status", s.handleSystemStatus)
	})

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

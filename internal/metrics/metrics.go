// Pandora Box - Self-Hosted Media Aggregation Server
// Copyright 2026 Atif Khan (atifkhan161)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/atifkhan161/pandora-box

// Package metrics registers the Prometheus collectors shared across the
// server: upstream call outcomes, cache efficiency, reconciliation passes,
// websocket fan-out and circuit breaker state.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Upstream service metrics

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pandora_upstream_request_duration_seconds",
			Help:    "Duration of upstream service requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "outcome"}, // outcome: "success", "auth_error", "upstream_error"
	)

	UpstreamRelogins = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pandora_upstream_relogins_total",
			Help: "Total number of automatic re-logins after an expired or rejected session",
		},
		[]string{"service"},
	)

	// Cache metrics

	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pandora_cache_hits_total",
			Help: "Total number of TTL cache hits",
		},
		[]string{"namespace"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pandora_cache_misses_total",
			Help: "Total number of TTL cache misses (absent or expired)",
		},
		[]string{"namespace"},
	)

	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pandora_cache_entries",
			Help: "Current number of cache entries, including not-yet-swept stale ones",
		},
	)

	// Reconciliation metrics

	ReconcilePasses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pandora_reconcile_passes_total",
			Help: "Total number of reconciliation passes",
		},
		[]string{"service", "outcome"},
	)

	ReconcileOrphans = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pandora_reconcile_orphans",
			Help: "Local records with no matching upstream transfer after the last pass",
		},
	)

	// WebSocket metrics

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pandora_websocket_clients",
			Help: "Current number of connected websocket clients",
		},
	)

	WebSocketDrops = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pandora_websocket_dropped_messages_total",
			Help: "Messages dropped because a client send buffer was full or closed",
		},
	)

	// Circuit breaker state: 0 = closed, 1 = half-open, 2 = open

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pandora_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)
)

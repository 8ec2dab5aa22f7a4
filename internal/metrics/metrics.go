// Package metrics defines the Prometheus instruments exposed by the server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts counts login attempts by final outcome
	// (complete, failed, abandoned, cancelled).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightdeck_auth_attempts_total",
			Help: "Login attempts by outcome",
		},
		[]string{"outcome"},
	)

	// TokenExchanges counts code-for-token exchanges by status.
	TokenExchanges = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightdeck_token_exchanges_total",
			Help: "Authorization code exchanges by status",
		},
		[]string{"status"},
	)

	// ProfileFallbacks counts profile fetches that fell back to the proxy.
	ProfileFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "flightdeck_profile_fallbacks_total",
			Help: "Profile fetches relayed through the proxy",
		},
	)

	// RefreshCycles counts background refresh cycles by mode (loud, silent)
	// and status (ok, error, skipped).
	RefreshCycles = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "flightdeck_refresh_cycles_total",
			Help: "Background refresh cycles by mode and status",
		},
		[]string{"mode", "status"},
	)

	// FeedFetchDuration observes how long a traffic feed fetch takes.
	FeedFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "flightdeck_feed_fetch_duration_seconds",
			Help:    "Traffic feed fetch latency",
			Buckets: prometheus.DefBuckets,
		},
	)

	// ActiveSessions tracks sessions currently held in the store.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "flightdeck_active_sessions",
			Help: "Sessions currently active",
		},
	)
)

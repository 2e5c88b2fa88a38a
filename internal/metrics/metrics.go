package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the session client
type Metrics struct {
	// Login metrics
	LoginAttempts *prometheus.CounterVec
	LoginDuration prometheus.Histogram

	// Session lifecycle metrics
	Logouts       *prometheus.CounterVec
	Restores      *prometheus.CounterVec
	Refreshes     *prometheus.CounterVec
	Warnings      prometheus.Counter
	Authenticated prometheus.Gauge
	Remaining     prometheus.Gauge

	// Signals published by HTTP callers
	AuthFailureSignals *prometheus.CounterVec

	// Error metrics (by error code from structured errors)
	Errors *prometheus.CounterVec
}

// NewMetrics creates a new Metrics instance with all metrics registered
func NewMetrics(registry prometheus.Registerer) *Metrics {
	factory := promauto.With(registry)

	return &Metrics{
		LoginAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sciencepoint_login_attempts_total",
				Help: "Total number of login attempts by result",
			},
			[]string{"result"},
		),
		LoginDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "sciencepoint_login_duration_seconds",
				Help:    "Login round trip duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),

		Logouts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sciencepoint_logouts_total",
				Help: "Total number of logouts by reason",
			},
			[]string{"reason"},
		),
		Restores: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sciencepoint_session_restores_total",
				Help: "Total number of startup restores by outcome",
			},
			[]string{"outcome"},
		),
		Refreshes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sciencepoint_session_refreshes_total",
				Help: "Total number of session refreshes by result",
			},
			[]string{"result"},
		),
		Warnings: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "sciencepoint_expiry_warnings_total",
				Help: "Total number of expiry warnings shown",
			},
		),
		Authenticated: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sciencepoint_session_authenticated",
				Help: "1 while a session is authenticated, 0 otherwise",
			},
		),
		Remaining: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "sciencepoint_session_remaining_seconds",
				Help: "Seconds until the current credential expires",
			},
		),

		AuthFailureSignals: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sciencepoint_auth_failure_signals_total",
				Help: "Total number of authorization failures reported by HTTP callers",
			},
			[]string{"status"},
		),

		Errors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sciencepoint_errors_total",
				Help: "Total number of errors by error code",
			},
			[]string{"error_code"},
		),
	}
}

// Nop returns metrics registered on a private registry. Useful when the
// caller does not export metrics.
func Nop() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

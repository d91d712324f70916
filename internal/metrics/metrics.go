package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Alert lifecycle metrics
	AlertsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_alerts_created_total",
			Help: "Total number of alerts created",
		},
		[]string{"source_type"},
	)

	AlertsEscalated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_alerts_escalated_total",
			Help: "Total number of alerts escalated",
		},
		[]string{"source_type"},
	)

	AlertsAutoClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_alerts_auto_closed_total",
			Help: "Total number of alerts auto-closed",
		},
		[]string{"source_type"},
	)

	AlertsResolved = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_alerts_resolved_total",
			Help: "Total number of alerts manually resolved",
		},
		[]string{"source_type"},
	)

	// Reconciler metrics
	ReconcilerPassDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fleetwatch_reconciler_pass_duration_seconds",
			Help:    "Duration of reconciler passes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"pass"},
	)

	ReconcilerPassSkips = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_reconciler_pass_skips_total",
			Help: "Total number of reconciler passes skipped because the prior run was still executing",
		},
		[]string{"pass"},
	)

	ReconcilerAlertErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_reconciler_alert_errors_total",
			Help: "Total number of per-alert failures during reconciler passes",
		},
		[]string{"pass"},
	)

	// Store metrics
	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_store_errors_total",
			Help: "Total number of store operations that failed and degraded to a safe default",
		},
		[]string{"op"},
	)

	// Rate limiting metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fleetwatch_ratelimit_hits_total",
			Help: "Total number of requests rejected by rate limiting",
		},
		[]string{"scope"},
	)
)

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Poll cycle metrics
	PollsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playpulse_polls_total",
			Help: "Total number of per-source poll attempts",
		},
		[]string{"source", "outcome"},
	)

	PollCycleDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "playpulse_poll_cycle_duration_seconds",
			Help:    "Wall-clock duration of one full poll cycle",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Ingest metrics
	EventsAppendedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playpulse_events_appended_total",
			Help: "Total number of normalized events appended to the log",
		},
	)

	EventsSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playpulse_events_suppressed_total",
			Help: "Total number of observations suppressed as still-paused repeats",
		},
	)

	EventsDiscardedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playpulse_events_discarded_total",
			Help: "Total number of observations discarded for non-session states",
		},
	)

	// Failure tracking metrics
	SourceFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "playpulse_source_failures_total",
			Help: "Total number of per-source poll failures",
		},
		[]string{"source", "kind"},
	)

	ConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "playpulse_consecutive_failures",
			Help: "Current consecutive failure count per source",
		},
		[]string{"source"},
	)

	NotificationsSentTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "playpulse_notifications_sent_total",
			Help: "Total number of failure notifications sent",
		},
	)

	// Session reconstruction metrics
	SessionRebuildDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "playpulse_session_rebuild_duration_seconds",
			Help:    "Duration of full session table rebuilds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	SessionsCount = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "playpulse_sessions_count",
			Help: "Number of sessions in the current session table",
		},
	)
)

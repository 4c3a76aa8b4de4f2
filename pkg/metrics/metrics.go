// Package metrics provides Prometheus metrics for the Clover service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedFetchDuration tracks feed assembly duration in seconds
	FeedFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "feed",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of feed snapshot assembly in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
	)

	// ReceiptsCreated tracks receipt edges materialized during feed reads
	ReceiptsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "feed",
			Name:      "receipts_created_total",
			Help:      "Total number of sticker receipt edges created on read",
		},
		[]string{"source"},
	)

	// PollAttempts tracks long-poll attempts by outcome
	PollAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "poll",
			Name:      "attempts_total",
			Help:      "Total number of new-activity poll attempts by outcome",
		},
		[]string{"outcome"},
	)

	// ContentCreated tracks content creation by kind
	ContentCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "content",
			Name:      "created_total",
			Help:      "Total number of content nodes created by kind",
		},
		[]string{"kind"},
	)

	// ContentExpired tracks content expired by the sweeper
	ContentExpired = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "sweeper",
			Name:      "expired_total",
			Help:      "Total number of content nodes expired by the sweeper",
		},
		[]string{"kind"},
	)

	// SweepDuration tracks sweeper run duration
	SweepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "sweeper",
			Name:      "run_duration_seconds",
			Help:      "Duration of sweeper runs in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"kind"},
	)

	// KnocksTotal tracks knock lifecycle operations by outcome
	KnocksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "graph",
			Name:      "knocks_total",
			Help:      "Total number of knock operations by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// GraphQueryDuration tracks graph query duration
	GraphQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "clover",
			Subsystem: "graph",
			Name:      "query_duration_seconds",
			Help:      "Duration of graph queries in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		},
		[]string{"operation"},
	)

	// KafkaMessagesPublished tracks social events published
	KafkaMessagesPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "clover",
			Subsystem: "kafka",
			Name:      "messages_published_total",
			Help:      "Total number of social events published to Kafka",
		},
		[]string{"event_type", "status"},
	)
)

// RecordSweep records one sweeper run
func RecordSweep(kind string, expired int, durationSeconds float64) {
	ContentExpired.WithLabelValues(kind).Add(float64(expired))
	SweepDuration.WithLabelValues(kind).Observe(durationSeconds)
}

// RecordKnock records a knock operation
func RecordKnock(action, outcome string) {
	KnocksTotal.WithLabelValues(action, outcome).Inc()
}

// RecordPublish records a social event publish
func RecordPublish(eventType, status string) {
	KafkaMessagesPublished.WithLabelValues(eventType, status).Inc()
}

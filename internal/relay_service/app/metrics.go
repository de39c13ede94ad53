package app

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "webhook_events_total",
			Help:      "Total number of webhook events processed, by kind and outcome.",
		},
		// outcome: "stored", "duplicate", "filtered_sender", "filtered_empty",
		// "deleted", "fallback_deleted", "unmatched", "ack_applied",
		// "ack_unmatched", "dropped", "error"
		[]string{"kind", "outcome"},
	)

	publishTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "relay",
			Name:      "publish_total",
			Help:      "Total number of outbound publish attempts, by outcome.",
		},
		[]string{"outcome"}, // "success", "duplicate", "rejected", "gateway_error", "store_error"
	)

	eventProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "relay",
			Name:      "event_processing_duration_seconds",
			Help:      "Duration of webhook event reconciliation.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"kind"},
	)
)

// ObserveDroppedEvent records a webhook event discarded before
// reconciliation, such as an unknown event kind filtered at the intake.
func ObserveDroppedEvent(kind string) {
	webhookEventsTotal.WithLabelValues(kind, "dropped").Inc()
}

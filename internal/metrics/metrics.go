package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label used for accepted decisions; rejections use their reason kind.
const OutcomeAccepted = "accepted"

var (
	decisions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "decisions_total",
		Help:      "Attendance engine decisions by operation and outcome.",
	}, []string{"operation", "outcome"})

	matchDistance = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "attendance",
		Name:      "biometric_match_distance",
		Help:      "Euclidean distance of accepted biometric matches.",
		Buckets:   []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6},
	})

	identityMismatches = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "identity_mismatch_total",
		Help:      "Marking attempts whose face matched a different enrolled student.",
	})

	excusedRecords = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "cancellation_excused_records_total",
		Help:      "Attendance records moved to excused by class cancellations.",
	})

	queueEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "attendance",
		Name:      "queue_events_total",
		Help:      "Queue events handled by the worker.",
	}, []string{"type", "result"})
)

// ObserveDecision counts one engine decision.
func ObserveDecision(operation, outcome string) {
	decisions.WithLabelValues(operation, outcome).Inc()
}

// ObserveMatchDistance records the distance of an accepted match.
func ObserveMatchDistance(d float64) {
	matchDistance.Observe(d)
}

// IdentityMismatch counts a potential impersonation attempt.
func IdentityMismatch() {
	identityMismatches.Inc()
}

// RecordsExcused adds n records excused by a cancellation cascade.
func RecordsExcused(n int64) {
	if n > 0 {
		excusedRecords.Add(float64(n))
	}
}

// QueueEvent counts a worker-handled event.
func QueueEvent(eventType, result string) {
	queueEvents.WithLabelValues(eventType, result).Inc()
}

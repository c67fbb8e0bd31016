package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	deliveredCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "outbox",
		Name:      "events_delivered_total",
		Help:      "Number of roster events successfully published to Kafka.",
	})

	failedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "outbox",
		Name:      "events_failed_total",
		Help:      "Number of roster events that failed to publish and were routed to the DLQ.",
	})

	batchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "signup_service",
		Subsystem: "outbox",
		Name:      "batch_duration_seconds",
		Help:      "Time spent claiming and delivering outbox batches.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})

	dlqCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "outbox",
		Name:      "events_dlq_total",
		Help:      "Number of roster events routed to the dead-letter queue, labeled by topic.",
	}, []string{"topic"})

	pendingGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "signup_service",
		Subsystem: "outbox",
		Name:      "pending_events",
		Help:      "Roster events waiting in the in-memory outbox.",
	})
)

func init() {
	prometheus.MustRegister(deliveredCounter, failedCounter, batchDuration, dlqCounter, pendingGauge)
}

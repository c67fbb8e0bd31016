package outbox

import "github.com/prometheus/client_golang/prometheus"

var (
	dlqRequeuedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "dlq",
		Name:      "messages_requeued_total",
		Help:      "Number of DLQ entries reinserted into the outbox.",
	}, []string{"topic", "event_type"})

	dlqQuarantinedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "dlq",
		Name:      "messages_quarantined_total",
		Help:      "Number of DLQ entries quarantined after exhausting retries.",
	}, []string{"topic", "event_type"})

	dlqRetryCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "dlq",
		Name:      "retry_scheduled_total",
		Help:      "Number of times a DLQ entry was scheduled for a future retry.",
	}, []string{"topic", "event_type"})

	dlqBacklogGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "signup_service",
		Subsystem: "dlq",
		Name:      "queued_messages",
		Help:      "Current number of entries remaining in the DLQ.",
	})

	dlqQuarantineGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "signup_service",
		Subsystem: "dlq",
		Name:      "quarantined_messages",
		Help:      "Current number of quarantined entries retained in the DLQ.",
	})
)

func init() {
	prometheus.MustRegister(dlqRequeuedCounter, dlqQuarantinedCounter, dlqRetryCounter, dlqBacklogGauge, dlqQuarantineGauge)
}

func recordDLQRequeued(entry DLQEntry) {
	dlqRequeuedCounter.WithLabelValues(entry.Message.Topic, entry.Message.EventType).Inc()
}

func recordDLQQuarantined(entry DLQEntry) {
	dlqQuarantinedCounter.WithLabelValues(entry.Message.Topic, entry.Message.EventType).Inc()
}

func recordDLQRetry(entry DLQEntry) {
	dlqRetryCounter.WithLabelValues(entry.Message.Topic, entry.Message.EventType).Inc()
}

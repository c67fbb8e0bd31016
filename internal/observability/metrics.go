package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	signupCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "roster",
		Name:      "signups_total",
		Help:      "Number of successful signups per activity.",
	}, []string{"activity"})

	unregisterCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "roster",
		Name:      "unregistrations_total",
		Help:      "Number of successful unregistrations per activity.",
	}, []string{"activity"})

	rejectedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "signup_service",
		Subsystem: "roster",
		Name:      "rejected_total",
		Help:      "Roster operations rejected by a precondition, labeled by operation and reason.",
	}, []string{"operation", "reason"})

	participantsGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "signup_service",
		Subsystem: "roster",
		Name:      "participants",
		Help:      "Current number of participants registered per activity.",
	}, []string{"activity"})

	auditPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "signup_service",
		Subsystem: "audit",
		Name:      "last_event_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent roster event written to the audit log.",
	})
)

func init() {
	prometheus.MustRegister(signupCounter, unregisterCounter, rejectedCounter, participantsGauge, auditPersistGauge)
}

// RecordSignup counts a successful signup.
func RecordSignup(activity string) {
	signupCounter.WithLabelValues(activity).Inc()
}

// RecordUnregister counts a successful unregistration.
func RecordUnregister(activity string) {
	unregisterCounter.WithLabelValues(activity).Inc()
}

// RecordRejected counts a rejected roster operation.
func RecordRejected(operation, reason string) {
	rejectedCounter.WithLabelValues(operation, reason).Inc()
}

// SetParticipants publishes the current roster size of an activity.
func SetParticipants(activity string, count int) {
	participantsGauge.WithLabelValues(activity).Set(float64(count))
}

// RecordEventPersisted updates the audit log watermark gauge.
func RecordEventPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	auditPersistGauge.Set(float64(ts.Unix()))
}

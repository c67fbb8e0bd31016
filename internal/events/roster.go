// Package events defines the roster event payloads published to Kafka.
package events

import "time"

// ParticipantSignedUp is emitted after an email joins an activity roster.
type ParticipantSignedUp struct {
	EventID    string    `json:"event_id"`
	Activity   string    `json:"activity"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// ParticipantUnregistered is emitted after an email leaves an activity roster.
type ParticipantUnregistered struct {
	EventID    string    `json:"event_id"`
	Activity   string    `json:"activity"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

// RosterEnvelope is the shape shared by every roster payload, used by
// consumers that do not care which event type they hold.
type RosterEnvelope struct {
	EventID    string    `json:"event_id"`
	Activity   string    `json:"activity"`
	Email      string    `json:"email"`
	OccurredAt time.Time `json:"occurred_at"`
}

package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"example.com/signup/internal/domain"
	"example.com/signup/internal/events"
)

// ErrOutboxFull is returned when the store has reached its capacity.
var ErrOutboxFull = errors.New("outbox is full")

// RosterTopic carries every roster event.
const RosterTopic = "activity_signups"

// DefaultCapacity bounds the number of undelivered messages held in memory.
const DefaultCapacity = 10000

// Message is a pending roster event awaiting delivery.
type Message struct {
	EventID       string
	EventType     string
	Topic         string
	SchemaSubject string
	PartitionKey  string
	Payload       json.RawMessage
	// Attempts counts how many times the message came back from the DLQ.
	Attempts int
}

// MemoryStore is the in-process outbox. Roster events are recorded here by
// the domain service and drained by the Dispatcher.
type MemoryStore struct {
	mu       sync.Mutex
	pending  []Message
	capacity int
}

// NewMemoryStore constructs a MemoryStore. A non-positive capacity selects DefaultCapacity.
func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &MemoryStore{capacity: capacity}
}

// Record converts a roster event into an outbox message and queues it.
func (s *MemoryStore) Record(_ context.Context, event domain.RosterEvent) error {
	msg, err := newMessage(event)
	if err != nil {
		return err
	}
	return s.Enqueue(msg)
}

// Enqueue appends a message, failing when the store is at capacity.
func (s *MemoryStore) Enqueue(msg Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.pending) >= s.capacity {
		return ErrOutboxFull
	}
	s.pending = append(s.pending, msg)
	pendingGauge.Set(float64(len(s.pending)))
	return nil
}

// Claim removes and returns up to limit messages in FIFO order.
func (s *MemoryStore) Claim(limit int) []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || len(s.pending) == 0 {
		return nil
	}
	if limit > len(s.pending) {
		limit = len(s.pending)
	}

	out := make([]Message, limit)
	copy(out, s.pending[:limit])
	s.pending = append(s.pending[:0], s.pending[limit:]...)
	pendingGauge.Set(float64(len(s.pending)))
	return out
}

// Len reports the number of undelivered messages.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

func newMessage(event domain.RosterEvent) (Message, error) {
	meta, ok := eventCatalog[event.Type]
	if !ok {
		return Message{}, fmt.Errorf("unknown event type: %s", event.Type)
	}

	var payload interface{}
	switch event.Type {
	case domain.EventParticipantSignedUp:
		payload = events.ParticipantSignedUp{
			EventID:    event.ID,
			Activity:   event.Activity,
			Email:      event.Email,
			OccurredAt: event.OccurredAt,
		}
	case domain.EventParticipantUnregistered:
		payload = events.ParticipantUnregistered{
			EventID:    event.ID,
			Activity:   event.Activity,
			Email:      event.Email,
			OccurredAt: event.OccurredAt,
		}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Message{}, err
	}

	return Message{
		EventID:       event.ID,
		EventType:     event.Type,
		Topic:         meta.Topic,
		SchemaSubject: meta.SchemaSubject,
		PartitionKey:  meta.PartitionKeyFn(event),
		Payload:       body,
	}, nil
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	Schema         string
	PartitionKeyFn func(domain.RosterEvent) string
}

// Both event types share a topic keyed by email so a participant's
// signup and unregister land on the same partition in order.
var eventCatalog = map[string]EventMetadata{
	domain.EventParticipantSignedUp: {
		Topic:          RosterTopic,
		SchemaSubject:  RosterTopic + "-value",
		Schema:         events.RosterEventSchema,
		PartitionKeyFn: func(e domain.RosterEvent) string { return e.Email },
	},
	domain.EventParticipantUnregistered: {
		Topic:          RosterTopic,
		SchemaSubject:  RosterTopic + "-value",
		Schema:         events.RosterEventSchema,
		PartitionKeyFn: func(e domain.RosterEvent) string { return e.Email },
	},
}

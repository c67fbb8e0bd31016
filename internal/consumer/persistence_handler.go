package consumer

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"example.com/signup/internal/domain"
	"example.com/signup/internal/events"
	"example.com/signup/internal/persistence"
)

type entryAppender interface {
	Append(ctx context.Context, entry persistence.AuditEntry) (bool, error)
}

// PersistenceHandler writes consumed roster events into the audit log.
type PersistenceHandler struct {
	log    entryAppender
	logger *zap.Logger
}

// NewPersistenceHandler constructs a handler backed by the provided event log.
func NewPersistenceHandler(log entryAppender, logger *zap.Logger) *PersistenceHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PersistenceHandler{log: log, logger: logger}
}

// Handle stores the event in the roster_event_log table.
func (h *PersistenceHandler) Handle(ctx context.Context, msg Message) error {
	switch msg.EventType {
	case domain.EventParticipantSignedUp, domain.EventParticipantUnregistered:
	default:
		return fmt.Errorf("%w: unsupported event_type %q", ErrMalformedEvent, msg.EventType)
	}

	if err := events.ValidateRoster(msg.Payload); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	var envelope events.RosterEnvelope
	if err := json.Unmarshal(msg.Payload, &envelope); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}

	inserted, err := h.log.Append(ctx, persistence.AuditEntry{
		EventID:    envelope.EventID,
		EventType:  msg.EventType,
		Activity:   envelope.Activity,
		Email:      envelope.Email,
		OccurredAt: envelope.OccurredAt,
	})
	if err != nil {
		return err
	}
	if !inserted {
		h.logger.Debug("duplicate roster event ignored", zap.String("event_id", envelope.EventID))
	}
	return nil
}

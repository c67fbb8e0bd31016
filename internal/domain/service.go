// Package domain defines the roster rules for the signup service.
package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"example.com/signup/internal/observability"
)

// Roster event types emitted after a membership change.
const (
	EventParticipantSignedUp     = "participant.signed_up"
	EventParticipantUnregistered = "participant.unregistered"
)

// RosterEvent describes a committed membership change.
type RosterEvent struct {
	ID         string
	Type       string
	Activity   string
	Email      string
	OccurredAt time.Time
}

// EventRecorder captures roster events for asynchronous delivery.
type EventRecorder interface {
	Record(ctx context.Context, event RosterEvent) error
}

type discardRecorder struct{}

func (discardRecorder) Record(context.Context, RosterEvent) error { return nil }

// Option configures optional Service collaborators.
type Option func(*Service)

// WithRecorder sets the recorder that receives roster events.
func WithRecorder(recorder EventRecorder) Option {
	return func(s *Service) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// WithLogger overrides the service logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Service orchestrates roster changes on a Directory.
type Service struct {
	directory *Directory
	recorder  EventRecorder
	logger    *zap.Logger
	now       func() time.Time
}

// NewService constructs a Service.
func NewService(directory *Directory, opts ...Option) *Service {
	s := &Service{
		directory: directory,
		recorder:  discardRecorder{},
		logger:    zap.NewNop(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, activity := range directory.List() {
		observability.SetParticipants(activity.Name, len(activity.Participants))
	}
	return s
}

// ListActivities returns every activity with its roster.
func (s *Service) ListActivities(context.Context) []Activity {
	return s.directory.List()
}

// GetActivity returns a single activity.
func (s *Service) GetActivity(_ context.Context, name string) (Activity, error) {
	return s.directory.Get(name)
}

// Signup registers email for the named activity and returns a confirmation message.
func (s *Service) Signup(ctx context.Context, activity, email string) (string, error) {
	count, err := s.directory.Signup(activity, email)
	if err != nil {
		observability.RecordRejected("signup", rejectionReason(err))
		fields := []zap.Field{zap.String("activity", activity), zap.String("email", email), zap.Error(err)}
		if current, ok := s.directory.ActivityOf(email); ok {
			fields = append(fields, zap.String("registered_in", current))
		}
		s.logger.Info("signup rejected", fields...)
		return "", err
	}

	observability.RecordSignup(activity)
	observability.SetParticipants(activity, count)
	s.logger.Info("participant signed up", zap.String("activity", activity), zap.String("email", email), zap.Int("participants", count))
	s.record(ctx, EventParticipantSignedUp, activity, email)

	return fmt.Sprintf("Signed up %s for %s", email, activity), nil
}

// Unregister removes email from the named activity and returns a confirmation message.
func (s *Service) Unregister(ctx context.Context, activity, email string) (string, error) {
	count, err := s.directory.Unregister(activity, email)
	if err != nil {
		observability.RecordRejected("unregister", rejectionReason(err))
		s.logger.Info("unregister rejected", zap.String("activity", activity), zap.String("email", email), zap.Error(err))
		return "", err
	}

	observability.RecordUnregister(activity)
	observability.SetParticipants(activity, count)
	s.logger.Info("participant unregistered", zap.String("activity", activity), zap.String("email", email), zap.Int("participants", count))
	s.record(ctx, EventParticipantUnregistered, activity, email)

	return fmt.Sprintf("Unregistered %s from %s", email, activity), nil
}

// record hands the event to the recorder. The roster change is already
// committed, so a failure here is only logged.
func (s *Service) record(ctx context.Context, eventType, activity, email string) {
	event := RosterEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Activity:   activity,
		Email:      email,
		OccurredAt: s.now(),
	}
	if err := s.recorder.Record(ctx, event); err != nil {
		s.logger.Error("failed to record roster event",
			zap.String("event_type", eventType),
			zap.String("activity", activity),
			zap.Error(err),
		)
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, ErrActivityNotFound):
		return "activity_not_found"
	case errors.Is(err, ErrParticipantNotFound):
		return "participant_not_found"
	case errors.Is(err, ErrAlreadyRegistered):
		return "already_registered"
	default:
		return "other"
	}
}

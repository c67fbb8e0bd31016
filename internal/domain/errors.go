package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is the kind shared by every lookup failure in the directory.
	ErrNotFound = errors.New("not found")
	// ErrActivityNotFound is returned when the activity name is unknown.
	ErrActivityNotFound = fmt.Errorf("activity %w", ErrNotFound)
	// ErrParticipantNotFound is returned when the email is not on the activity's roster.
	ErrParticipantNotFound = fmt.Errorf("participant %w", ErrNotFound)
	// ErrAlreadyRegistered is returned when the email is already on any roster.
	ErrAlreadyRegistered = errors.New("participant already registered")
	// ErrInvalidCatalog is returned when seed data breaks a roster invariant.
	ErrInvalidCatalog = errors.New("invalid activity catalog")
)

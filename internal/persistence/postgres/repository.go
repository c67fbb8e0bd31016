// Package postgres stores the roster audit log in Postgres.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/signup/internal/observability"
	"example.com/signup/internal/persistence"
)

// MaxPageSize bounds a single history page.
const MaxPageSize = 100

var errMissingEventID = errors.New("audit entry requires an event id")

// EventLog provides Postgres-backed persistence for roster events.
type EventLog struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewEventLog constructs an EventLog.
func NewEventLog(pool *pgxpool.Pool) *EventLog {
	return &EventLog{pool: pool, now: func() time.Time { return time.Now().UTC() }}
}

// Append inserts an entry. Redelivered events with a known event_id are
// ignored and reported as not inserted.
func (l *EventLog) Append(ctx context.Context, entry persistence.AuditEntry) (bool, error) {
	if entry.EventID == "" {
		return false, errMissingEventID
	}

	const insert = `INSERT INTO roster_event_log (event_id, event_type, activity, email, occurred_at, recorded_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        ON CONFLICT (event_id) DO NOTHING`

	tag, err := l.pool.Exec(ctx, insert,
		entry.EventID,
		entry.EventType,
		entry.Activity,
		entry.Email,
		entry.OccurredAt.UTC(),
		l.now(),
	)
	if err != nil {
		return false, err
	}

	inserted := tag.RowsAffected() == 1
	if inserted {
		observability.RecordEventPersisted(entry.OccurredAt)
	}
	return inserted, nil
}

// ListByActivity returns the newest entries for an activity first, resuming
// after cursor when one is supplied.
func (l *EventLog) ListByActivity(ctx context.Context, activity string, cursor *persistence.Cursor, limit int) ([]persistence.AuditEntry, *persistence.Cursor, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	args := []interface{}{activity, limit}
	query := `SELECT event_id, event_type, activity, email, occurred_at, recorded_at
        FROM roster_event_log WHERE activity=$1`

	if cursor != nil {
		query += ` AND (occurred_at, event_id) < ($3, $4)`
		args = append(args, cursor.OccurredAt, cursor.EventID)
	}

	query += ` ORDER BY occurred_at DESC, event_id DESC LIMIT $2`

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]persistence.AuditEntry, 0, limit)
	for rows.Next() {
		var entry persistence.AuditEntry
		if err := rows.Scan(&entry.EventID, &entry.EventType, &entry.Activity, &entry.Email, &entry.OccurredAt, &entry.RecordedAt); err != nil {
			return nil, nil, err
		}
		results = append(results, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}

	var next *persistence.Cursor
	if len(results) == limit {
		next = persistence.CursorAfter(results[len(results)-1])
	}
	return results, next, nil
}

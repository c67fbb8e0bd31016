package outbox

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrDLQFull is returned when the dead-letter queue cannot accept more entries.
var ErrDLQFull = errors.New("dead-letter queue is full")

// DLQEntry is a message that failed delivery, with its retry bookkeeping.
type DLQEntry struct {
	ID               int64
	Message          Message
	Reason           string
	RetryCount       int
	CreatedAt        time.Time
	NextRetryAt      time.Time
	QuarantinedAt    *time.Time
	QuarantineReason string
}

// DLQ keeps failed outbox messages for the DLQManager to retry or quarantine.
// Only entries awaiting retry count against capacity. Quarantined entries are
// kept in a separate list of the same size that drops its oldest entry when full.
type DLQ struct {
	mu          sync.Mutex
	entries     []*DLQEntry
	quarantined []*DLQEntry
	nextID      int64
	capacity    int
	baseDelay   time.Duration
	now         func() time.Time
}

// NewDLQ constructs a DLQ. baseDelay drives the exponential retry schedule.
func NewDLQ(capacity int, baseDelay time.Duration) *DLQ {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if baseDelay <= 0 {
		baseDelay = time.Minute
	}
	return &DLQ{
		capacity:  capacity,
		baseDelay: baseDelay,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Write records a failed outbox message alongside the supplied reason.
func (q *DLQ) Write(_ context.Context, msg Message, reason string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.entries) >= q.capacity {
		return ErrDLQFull
	}

	now := q.now()
	q.nextID++
	q.entries = append(q.entries, &DLQEntry{
		ID:          q.nextID,
		Message:     msg,
		Reason:      reason,
		RetryCount:  msg.Attempts,
		CreatedAt:   now,
		NextRetryAt: now.Add(backoffDelay(q.baseDelay, msg.Attempts)),
	})
	q.updateBacklog()
	return nil
}

// Due returns up to limit unquarantined entries whose retry time has passed, oldest first.
func (q *DLQ) Due(limit int) []DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.now()
	out := make([]DLQEntry, 0)
	for _, entry := range q.entries {
		if len(out) >= limit {
			break
		}
		if entry.NextRetryAt.After(now) {
			continue
		}
		out = append(out, *entry)
	}
	return out
}

// Remove drops an entry once it has been requeued.
func (q *DLQ) Remove(id int64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.take(id)
	q.updateBacklog()
}

// Quarantine moves an entry out of the retry set for good.
func (q *DLQ) Quarantine(id int64, reason string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if entry := q.take(id); entry != nil {
		now := q.now()
		entry.QuarantinedAt = &now
		entry.QuarantineReason = reason
		if len(q.quarantined) >= q.capacity {
			q.quarantined = q.quarantined[1:]
		}
		q.quarantined = append(q.quarantined, entry)
	}
	q.updateBacklog()
}

// Reschedule bumps the retry count and pushes the next attempt out with exponential backoff.
func (q *DLQ) Reschedule(id int64, reason string) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if entry := q.find(id); entry != nil {
		entry.RetryCount++
		entry.Reason = reason
		entry.NextRetryAt = q.now().Add(backoffDelay(q.baseDelay, entry.RetryCount))
	}
}

// Backlog reports the number of entries still eligible for retry.
func (q *DLQ) Backlog() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Quarantined returns copies of the retained quarantined entries, oldest first.
func (q *DLQ) Quarantined() []DLQEntry {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]DLQEntry, 0, len(q.quarantined))
	for _, entry := range q.quarantined {
		out = append(out, *entry)
	}
	return out
}

func (q *DLQ) find(id int64) *DLQEntry {
	for _, entry := range q.entries {
		if entry.ID == id {
			return entry
		}
	}
	return nil
}

// take removes an entry from the retry set and returns it.
func (q *DLQ) take(id int64) *DLQEntry {
	for i, entry := range q.entries {
		if entry.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return entry
		}
	}
	return nil
}

func (q *DLQ) updateBacklog() {
	dlqBacklogGauge.Set(float64(len(q.entries)))
	dlqQuarantineGauge.Set(float64(len(q.quarantined)))
}

// backoffDelay calculates exponential backoff capped at one hour. Attempt
// zero is due immediately.
func backoffDelay(base time.Duration, attempt int) time.Duration {
	if attempt <= 0 {
		return 0
	}
	if attempt > 12 {
		return time.Hour
	}
	delay := time.Duration(1<<uint(attempt-1)) * base
	if delay > time.Hour {
		delay = time.Hour
	}
	return delay
}

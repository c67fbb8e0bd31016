package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type messageRequeuer interface {
	Enqueue(msg Message) error
}

// DLQManager handles retrying failed outbox messages and quarantining exhausted entries.
type DLQManager struct {
	dlq        *DLQ
	outbox     messageRequeuer
	maxRetries int
	logger     *zap.Logger
}

// NewDLQManager constructs a DLQManager with the provided queues and retry configuration.
func NewDLQManager(dlq *DLQ, outbox messageRequeuer, maxRetries int, logger *zap.Logger) *DLQManager {
	if maxRetries <= 0 {
		maxRetries = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DLQManager{dlq: dlq, outbox: outbox, maxRetries: maxRetries, logger: logger}
}

// Start runs RunOnce every interval until ctx is cancelled.
func (m *DLQManager) Start(ctx context.Context, interval time.Duration, batchSize int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			processed, err := m.RunOnce(ctx, batchSize)
			if err != nil {
				m.logger.Warn("dlq manager error", zap.Error(err))
			} else if processed > 0 {
				m.logger.Info("dlq manager requeued entries", zap.Int("count", processed))
			}
		}
	}
}

// RunOnce processes a batch of due DLQ entries and returns the count of
// successfully re-queued messages.
func (m *DLQManager) RunOnce(ctx context.Context, batchSize int) (int, error) {
	var err error
	processed := 0

	for _, entry := range m.dlq.Due(batchSize) {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return processed, errors.Join(err, ctxErr)
		}
		requeued, procErr := m.handleEntry(entry)
		if procErr != nil {
			err = errors.Join(err, procErr)
			continue
		}
		if requeued {
			processed++
		}
	}
	return processed, err
}

// handleEntry applies retry/quarantine logic for a single DLQ entry and
// reports whether the message went back into the outbox.
func (m *DLQManager) handleEntry(entry DLQEntry) (bool, error) {
	if entry.RetryCount >= m.maxRetries {
		m.dlq.Quarantine(entry.ID, "retry limit reached")
		recordDLQQuarantined(entry)
		m.logger.Warn("roster event quarantined",
			zap.String("event_id", entry.Message.EventID),
			zap.Int("retries", entry.RetryCount),
			zap.String("reason", entry.Reason),
		)
		return false, nil
	}

	msg := entry.Message
	msg.Attempts = entry.RetryCount + 1
	if err := m.outbox.Enqueue(msg); err != nil {
		m.dlq.Reschedule(entry.ID, err.Error())
		recordDLQRetry(entry)
		return false, fmt.Errorf("requeue dlq entry %d: %w", entry.ID, err)
	}

	m.dlq.Remove(entry.ID)
	recordDLQRequeued(entry)
	return true, nil
}

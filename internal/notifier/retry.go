package notifier

import (
	"context"
	"time"

	"github.com/google/uuid"

	"sprintboard_backend/internal/logger"
)

// RetryScheduler drains the outbox: every entry is retried through the
// gateway, successes are removed, failures keep accumulating a retry
// count until the ceiling, at which point the entry is dropped and
// escalated as a system_error notification.
type RetryScheduler struct {
	gateway Gateway
	outbox  *Outbox
	emitter *Emitter

	maxRetries int
}

func NewRetryScheduler(gateway Gateway, outbox *Outbox, emitter *Emitter, maxRetries int) *RetryScheduler {
	if maxRetries <= 0 {
		maxRetries = MaxRetries
	}
	return &RetryScheduler{
		gateway:    gateway,
		outbox:     outbox,
		emitter:    emitter,
		maxRetries: maxRetries,
	}
}

// QueueFailed records a creation that could not be delivered. The
// entry is stamped with an idempotency key so the server can
// deduplicate if a retry succeeds without the client observing it.
func (s *RetryScheduler) QueueFailed(req CreateRequest) error {
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.NewString()
	}
	return s.outbox.Append(req)
}

// RunOnce performs one drain pass. Failures of the drain itself are
// escalated as a critical_system_error and reported to the caller;
// they must never crash the process.
func (s *RetryScheduler) RunOnce(ctx context.Context) error {
	entries, err := s.outbox.Load()
	if err != nil {
		s.emitter.EmitCriticalSystemError(ctx, err.Error())
		return err
	}

	if len(entries) == 0 {
		return nil
	}

	logger.Info("draining failed-notification queue", "pending", len(entries))

	var stillFailed []FailedNotification
	var recovered []string
	now := time.Now()

	for i := range entries {
		entry := entries[i]

		// Entries already at the ceiling are dropped up front: no more
		// delivery attempts, just the escalation.
		if entry.RetryCount >= s.maxRetries {
			s.escalate(ctx, &entry)
			continue
		}

		created, err := s.gateway.Create(ctx, entry.Request)
		if err == nil {
			recovered = append(recovered, created.ID)
			continue
		}

		entry.RetryCount++
		entry.Timestamp = now

		if entry.RetryCount >= s.maxRetries {
			s.escalate(ctx, &entry)
			continue
		}

		logger.Warn("notification redelivery failed",
			"type", entry.Request.Type,
			"retry_count", entry.RetryCount,
			"error", err.Error(),
		)
		stillFailed = append(stillFailed, entry)
	}

	if err := s.outbox.Replace(stillFailed); err != nil {
		s.emitter.EmitCriticalSystemError(ctx, err.Error())
		return err
	}

	if len(recovered) > 0 {
		logger.Info("recovered queued notifications", "count", len(recovered))
		s.emitter.EmitSystemRecovery(ctx, recovered)
	}

	return nil
}

func (s *RetryScheduler) escalate(ctx context.Context, entry *FailedNotification) {
	logger.Error("dropping notification after retry ceiling",
		"type", entry.Request.Type,
		"user_id", entry.Request.UserID,
		"retry_count", entry.RetryCount,
	)
	s.emitter.EmitSystemError(ctx,
		"notification_delivery",
		"La notificación no pudo entregarse y fue descartada",
		[]string{entry.Request.IdempotencyKey},
	)
}

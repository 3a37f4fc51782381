package workers

import (
	"context"
	"time"

	"sprintboard_backend/internal/logger"
	"sprintboard_backend/internal/notifier"
)

// OutboxWorker periodically drains the failed-notification outbox.
type OutboxWorker struct {
	scheduler *notifier.RetryScheduler
	interval  time.Duration
}

func NewOutboxWorker(scheduler *notifier.RetryScheduler, interval time.Duration) *OutboxWorker {
	if interval <= 0 {
		interval = time.Minute
	}
	return &OutboxWorker{
		scheduler: scheduler,
		interval:  interval,
	}
}

// Start launches the drain loop in the background.
func (w *OutboxWorker) Start(ctx context.Context) {
	go w.drainLoop(ctx)
}

func (w *OutboxWorker) drainLoop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Outbox worker stopped")
			return
		case <-ticker.C:
			err := w.scheduler.RunOnce(ctx)
			logger.WorkerLog("outbox", "drain", err)
		}
	}
}

// CleanupWorker removes old read notifications from the database so
// the table does not grow without bound.
type CleanupWorker struct {
	cleanup       func(days int) error
	interval      time.Duration
	retentionDays int
}

func NewCleanupWorker(cleanup func(days int) error, interval time.Duration, retentionDays int) *CleanupWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if retentionDays <= 0 {
		retentionDays = 90
	}
	return &CleanupWorker{
		cleanup:       cleanup,
		interval:      interval,
		retentionDays: retentionDays,
	}
}

func (w *CleanupWorker) Start(ctx context.Context) {
	go w.cleanupLoop(ctx)
}

func (w *CleanupWorker) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("Cleanup worker stopped")
			return
		case <-ticker.C:
			err := w.cleanup(w.retentionDays)
			logger.WorkerLog("cleanup", "delete_old_notifications", err)
		}
	}
}

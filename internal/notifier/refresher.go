package notifier

import (
	"context"
	"sync"
	"time"

	"sprintboard_backend/internal/logger"
)

// Refresher re-fetches the store on a fixed period. It is an explicit
// background task with its own lifecycle: Start launches the loop,
// cancelling the context stops it. No backoff, no jitter.
type Refresher struct {
	store    *Store
	interval time.Duration
	filters  ListFilters

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewRefresher(store *Store, interval time.Duration) *Refresher {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &Refresher{
		store:    store,
		interval: interval,
	}
}

// Start fetches immediately, then again every interval until the
// context is cancelled or Stop is called. Calling Start twice replaces
// the previous loop. Start and Stop are safe to call from multiple
// goroutines.
func (r *Refresher) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.stopLocked()

	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})

	go r.run(ctx, r.done)
}

// Stop halts the refresh loop and waits for it to exit.
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked()
}

// stopLocked is called with r.mu held. The loop never takes the lock,
// so waiting on done here cannot deadlock.
func (r *Refresher) stopLocked() {
	if r.cancel == nil {
		return
	}
	r.cancel()
	<-r.done
	r.cancel = nil
	r.done = nil
}

func (r *Refresher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	if err := r.store.Fetch(ctx, r.filters); err != nil {
		logger.Warn("initial notification refresh failed", "error", err.Error())
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("notification refresher stopped")
			return
		case <-ticker.C:
			if err := r.store.Fetch(ctx, r.filters); err != nil {
				logger.Warn("notification refresh failed", "error", err.Error())
			}
		}
	}
}

package notifier

import (
	"context"
	"time"

	"sprintboard_backend/internal/logger"
)

// Client bundles the pipeline for one user: store, outbox, retry
// scheduler, emitter and refresher. Platform services deliver
// notifications through Notify and never deal with queueing
// themselves.
type Client struct {
	Store     *Store
	Outbox    *Outbox
	Scheduler *RetryScheduler
	Emitter   *Emitter
	Refresher *Refresher
}

// Config for a notification client.
type Config struct {
	UserID          string
	BaseURL         string
	OutboxPath      string
	RefreshInterval time.Duration
	HTTPTimeout     time.Duration
	MaxRetries      int
	Token           TokenProvider
}

func NewClient(cfg Config) *Client {
	gateway := NewGatewayClient(cfg.BaseURL, cfg.HTTPTimeout, cfg.Token)
	return NewClientWithGateway(cfg, gateway)
}

// NewClientWithGateway allows substituting the transport, which tests
// use to run the full pipeline against a fake service.
func NewClientWithGateway(cfg Config, gateway Gateway) *Client {
	store := NewStore(cfg.UserID, gateway)
	outbox := NewOutbox(cfg.OutboxPath)
	emitter := NewEmitter(gateway, cfg.UserID)
	scheduler := NewRetryScheduler(gateway, outbox, emitter, cfg.MaxRetries)
	refresher := NewRefresher(store, cfg.RefreshInterval)

	return &Client{
		Store:     store,
		Outbox:    outbox,
		Scheduler: scheduler,
		Emitter:   emitter,
		Refresher: refresher,
	}
}

// Notify delivers a notification; on failure the request lands in the
// outbox for redelivery and the error is returned to the caller.
func (c *Client) Notify(ctx context.Context, req CreateRequest) (*Notification, error) {
	created, err := c.Store.Create(ctx, req)
	if err == nil {
		return created, nil
	}

	if queueErr := c.Scheduler.QueueFailed(req); queueErr != nil {
		logger.Error("failed to queue undelivered notification",
			"type", req.Type,
			"error", queueErr.Error(),
		)
	}

	return nil, err
}

// Refresh re-fetches the notification list on demand and then drains
// the outbox, mirroring what a manual refresh does.
func (c *Client) Refresh(ctx context.Context, filters ListFilters) error {
	if err := c.Store.Fetch(ctx, filters); err != nil {
		return err
	}
	return c.Scheduler.RunOnce(ctx)
}

package notifier

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPipeline(t *testing.T, gateway *fakeGateway) (*RetryScheduler, *Outbox) {
	t.Helper()
	outbox := tempOutbox(t)
	emitter := NewEmitter(gateway, "u1")
	scheduler := NewRetryScheduler(gateway, outbox, emitter, MaxRetries)
	return scheduler, outbox
}

func TestRunOnceEmptyQueueMakesNoCalls(t *testing.T) {
	gateway := seededGateway()
	scheduler, _ := newTestPipeline(t, gateway)

	require.NoError(t, scheduler.RunOnce(context.Background()))
	assert.Zero(t, gateway.createCalls)
}

func TestQueueFailedMintsIdempotencyKey(t *testing.T) {
	gateway := seededGateway()
	scheduler, outbox := newTestPipeline(t, gateway)

	require.NoError(t, scheduler.QueueFailed(CreateRequest{
		UserID: "u1",
		Type:   TypeTaskAssigned,
		Title:  "t",
	}))

	entries, err := outbox.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.NotEmpty(t, entries[0].Request.IdempotencyKey)
}

func TestSuccessfulRetryRemovesEntryAndEmitsRecovery(t *testing.T) {
	gateway := seededGateway()
	scheduler, outbox := newTestPipeline(t, gateway)
	ctx := context.Background()

	require.NoError(t, scheduler.QueueFailed(CreateRequest{
		UserID: "u1", Type: TypeTaskAssigned, Title: "t",
	}))

	require.NoError(t, scheduler.RunOnce(ctx))

	entries, err := outbox.Load()
	require.NoError(t, err)
	assert.Empty(t, entries, "delivered entry must leave the queue")

	recoveries := gateway.createdOfType(TypeSystemRecovery)
	require.Len(t, recoveries, 1)
	assert.Equal(t, "u1", recoveries[0].UserID)

	// A second drain finds nothing; the entry must not reappear
	callsBefore := gateway.createCalls
	require.NoError(t, scheduler.RunOnce(ctx))
	assert.Equal(t, callsBefore, gateway.createCalls)
}

func TestRetryCountIncrementsAcrossDrains(t *testing.T) {
	gateway := seededGateway()
	gateway.failTypes = map[string]bool{TypeTaskAssigned: true}
	scheduler, outbox := newTestPipeline(t, gateway)
	ctx := context.Background()

	require.NoError(t, scheduler.QueueFailed(CreateRequest{
		UserID: "u1", Type: TypeTaskAssigned, Title: "t",
	}))

	require.NoError(t, scheduler.RunOnce(ctx))

	entries, err := outbox.Load()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, 1, entries[0].RetryCount)
}

func TestThreeFailedDrainsDropAndEscalateOnce(t *testing.T) {
	gateway := seededGateway()
	gateway.failTypes = map[string]bool{TypeTaskAssigned: true}
	scheduler, outbox := newTestPipeline(t, gateway)
	ctx := context.Background()

	require.NoError(t, scheduler.QueueFailed(CreateRequest{
		UserID: "u1", Type: TypeTaskAssigned, Title: "t",
	}))

	for i := 0; i < MaxRetries; i++ {
		require.NoError(t, scheduler.RunOnce(ctx))
	}

	entries, err := outbox.Load()
	require.NoError(t, err)
	assert.Empty(t, entries, "exhausted entry must be dropped")

	escalations := gateway.createdOfType(TypeSystemError)
	require.Len(t, escalations, 1, "exactly one system_error per dropped entry")
	assert.Equal(t, "u1", escalations[0].UserID)
	assert.Equal(t, "notification_delivery", escalations[0].Data["error_type"])

	// Further drains stay quiet
	require.NoError(t, scheduler.RunOnce(ctx))
	assert.Len(t, gateway.createdOfType(TypeSystemError), 1)
}

func TestEscalationFailureIsNotRequeued(t *testing.T) {
	gateway := seededGateway()
	// Everything fails, including the system_error escalation itself
	gateway.failCreate = true
	scheduler, outbox := newTestPipeline(t, gateway)
	ctx := context.Background()

	require.NoError(t, scheduler.QueueFailed(CreateRequest{
		UserID: "u1", Type: TypeTaskAssigned, Title: "t",
	}))

	for i := 0; i < MaxRetries+2; i++ {
		require.NoError(t, scheduler.RunOnce(ctx))
	}

	// The loop-breaker: a failed escalation is dropped, never queued
	entries, err := outbox.Load()
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestNotifyQueuesOnDeliveryFailure(t *testing.T) {
	gateway := seededGateway()
	gateway.failTypes = map[string]bool{TypeTaskAssigned: true}

	client := NewClientWithGateway(Config{
		UserID:     "u1",
		OutboxPath: tempOutbox(t).path,
		MaxRetries: MaxRetries,
	}, gateway)

	_, err := client.Notify(context.Background(), CreateRequest{
		UserID: "u1", Type: TypeTaskAssigned, Title: "t",
	})
	require.Error(t, err)

	entries, loadErr := client.Outbox.Load()
	require.NoError(t, loadErr)
	require.Len(t, entries, 1)
	assert.Equal(t, 0, entries[0].RetryCount)

	// Once the service recovers, Refresh drains the queue
	gateway.failTypes = nil
	require.NoError(t, client.Refresh(context.Background(), ListFilters{}))

	entries, loadErr = client.Outbox.Load()
	require.NoError(t, loadErr)
	assert.Empty(t, entries)
	assert.Len(t, gateway.createdOfType(TypeSystemRecovery), 1)
}

package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeGateway is an in-memory Gateway for store and scheduler tests.
type fakeGateway struct {
	mu            sync.Mutex
	notifications []Notification
	nextID        int

	failCreate     bool
	failTypes      map[string]bool
	failMarkAsRead bool
	failDelete     bool
	createCalls    int
	created        []CreateRequest
}

func (f *fakeGateway) createdOfType(eventType string) []CreateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []CreateRequest
	for _, req := range f.created {
		if req.Type == eventType {
			out = append(out, req)
		}
	}
	return out
}

func (f *fakeGateway) List(ctx context.Context, userID string, filters ListFilters) ([]Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Notification, len(f.notifications))
	copy(out, f.notifications)
	return out, nil
}

func (f *fakeGateway) Create(ctx context.Context, req CreateRequest) (*Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createCalls++
	if f.failCreate || f.failTypes[req.Type] {
		return nil, errors.New("service unavailable")
	}
	f.created = append(f.created, req)
	f.nextID++
	n := Notification{
		ID:        "fake-" + string(rune('a'+f.nextID)),
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		Data:      req.Data,
		CreatedAt: time.Now(),
	}
	f.notifications = append([]Notification{n}, f.notifications...)
	return &n, nil
}

func (f *fakeGateway) MarkAsRead(ctx context.Context, id string) (*Notification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failMarkAsRead {
		return nil, errors.New("service unavailable")
	}
	now := time.Now()
	for i := range f.notifications {
		if f.notifications[i].ID == id {
			f.notifications[i].Read = true
			f.notifications[i].ReadAt = &now
			n := f.notifications[i]
			return &n, nil
		}
	}
	return &Notification{ID: id, Read: true, ReadAt: &now}, nil
}

func (f *fakeGateway) MarkAllAsRead(ctx context.Context, projectID string) error {
	return nil
}

func (f *fakeGateway) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDelete {
		return errors.New("service unavailable")
	}
	for i := range f.notifications {
		if f.notifications[i].ID == id {
			f.notifications = append(f.notifications[:i], f.notifications[i+1:]...)
			break
		}
	}
	return nil
}

func seededGateway(entries ...Notification) *fakeGateway {
	return &fakeGateway{notifications: entries}
}

func assertStatsInvariant(t *testing.T, store *Store) {
	t.Helper()
	list := store.Notifications()
	stats := store.Stats()

	unread := 0
	for _, n := range list {
		if !n.Read {
			unread++
		}
	}
	assert.Equal(t, len(list), stats.Total, "stats.Total must equal list length")
	assert.Equal(t, unread, stats.Unread, "stats.Unread must equal unread count")
}

func TestFetchRecomputesStats(t *testing.T) {
	gateway := seededGateway(
		Notification{ID: "1", UserID: "u1", ProjectID: "p1", Type: TypeTaskAssigned},
		Notification{ID: "2", UserID: "u1", ProjectID: "p1", Type: TypeTaskAssigned, Read: true},
		Notification{ID: "3", UserID: "u1", Type: TypeOKRUpdate},
	)
	store := NewStore("u1", gateway)

	require.NoError(t, store.Fetch(context.Background(), ListFilters{}))

	stats := store.Stats()
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 2, stats.Unread)
	assert.Equal(t, 2, stats.ByType[TypeTaskAssigned])
	assert.Equal(t, 1, stats.ByType[TypeOKRUpdate])
	assert.Equal(t, 2, stats.ByProject["p1"])
	assertStatsInvariant(t, store)
}

func TestMarkAsReadIsIdempotent(t *testing.T) {
	gateway := seededGateway(
		Notification{ID: "1", UserID: "u1", Type: TypeTaskAssigned},
	)
	store := NewStore("u1", gateway)
	ctx := context.Background()
	require.NoError(t, store.Fetch(ctx, ListFilters{}))
	require.Equal(t, 1, store.Stats().Unread)

	require.NoError(t, store.MarkAsRead(ctx, "1"))
	assert.Equal(t, 0, store.Stats().Unread)

	// Second call must not drive unread negative
	require.NoError(t, store.MarkAsRead(ctx, "1"))
	assert.Equal(t, 0, store.Stats().Unread)
	assertStatsInvariant(t, store)
}

func TestMarkAsReadFailureLeavesStateUntouched(t *testing.T) {
	gateway := seededGateway(
		Notification{ID: "1", UserID: "u1", Type: TypeTaskAssigned},
	)
	store := NewStore("u1", gateway)
	ctx := context.Background()
	require.NoError(t, store.Fetch(ctx, ListFilters{}))

	gateway.failMarkAsRead = true
	require.Error(t, store.MarkAsRead(ctx, "1"))
	assert.Equal(t, 1, store.Stats().Unread)
	assert.False(t, store.Notifications()[0].Read)
}

func TestMarkAllAsReadScopedToProject(t *testing.T) {
	gateway := seededGateway(
		Notification{ID: "1", UserID: "u1", ProjectID: "p1", Type: TypeTaskAssigned},
		Notification{ID: "2", UserID: "u1", ProjectID: "p2", Type: TypeTaskAssigned},
		Notification{ID: "3", UserID: "u1", ProjectID: "p1", Type: TypeOKRUpdate, Read: true},
	)
	store := NewStore("u1", gateway)
	ctx := context.Background()
	require.NoError(t, store.Fetch(ctx, ListFilters{}))

	require.NoError(t, store.MarkAllAsRead(ctx, "p1"))

	stats := store.Stats()
	assert.Equal(t, 1, stats.Unread, "only the p2 notification stays unread")
	for _, n := range store.Notifications() {
		if n.ProjectID == "p1" {
			assert.True(t, n.Read)
		}
	}
	assertStatsInvariant(t, store)
}

func TestDeleteAdjustsCounts(t *testing.T) {
	gateway := seededGateway(
		Notification{ID: "1", UserID: "u1", Type: TypeTaskAssigned},
		Notification{ID: "2", UserID: "u1", Type: TypeTaskAssigned, Read: true},
	)
	store := NewStore("u1", gateway)
	ctx := context.Background()
	require.NoError(t, store.Fetch(ctx, ListFilters{}))

	require.NoError(t, store.Delete(ctx, "1"))
	stats := store.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 0, stats.Unread)
	assertStatsInvariant(t, store)
}

func TestCreatePrependsAndCounts(t *testing.T) {
	gateway := seededGateway()
	store := NewStore("u1", gateway)
	ctx := context.Background()
	require.NoError(t, store.Fetch(ctx, ListFilters{}))

	created, err := store.Create(ctx, CreateRequest{
		UserID: "u1",
		Type:   TypeTaskAssigned,
		Title:  "t",
	})
	require.NoError(t, err)

	list := store.Notifications()
	require.Len(t, list, 1)
	assert.Equal(t, created.ID, list[0].ID)
	assert.Equal(t, 1, store.Stats().Total)
	assert.Equal(t, 1, store.Stats().Unread)
	assertStatsInvariant(t, store)
}

func TestCreateFailurePropagatesWithoutStateChange(t *testing.T) {
	gateway := seededGateway()
	gateway.failCreate = true
	store := NewStore("u1", gateway)
	ctx := context.Background()

	_, err := store.Create(ctx, CreateRequest{UserID: "u1", Type: TypeTaskAssigned, Title: "t"})
	require.Error(t, err)
	assert.Equal(t, 0, store.Stats().Total)
}

// gatedGateway holds each List call until the test releases it, so the
// order in which in-flight responses land can be controlled.
type gatedGateway struct {
	fakeGateway
	listCalls chan chan []Notification
}

func (g *gatedGateway) List(ctx context.Context, userID string, filters ListFilters) ([]Notification, error) {
	reply := make(chan []Notification)
	g.listCalls <- reply
	return <-reply, nil
}

func TestConcurrentFetchesLastAppliedWins(t *testing.T) {
	gateway := &gatedGateway{listCalls: make(chan chan []Notification, 2)}
	store := NewStore("u1", gateway)

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Fetch(context.Background(), ListFilters{}))
		}()
	}

	firstReply := <-gateway.listCalls
	secondReply := <-gateway.listCalls

	// One in-flight request resolves early and is applied...
	secondReply <- []Notification{
		{ID: "early", UserID: "u1", Type: TypeTaskAssigned},
	}
	require.Eventually(t, func() bool {
		list := store.Notifications()
		return len(list) == 1 && list[0].ID == "early"
	}, time.Second, time.Millisecond)

	// ...then the other lands. Whichever response is applied last
	// replaces the whole list, stats included.
	firstReply <- []Notification{
		{ID: "late-1", UserID: "u1", Type: TypeOKRUpdate},
		{ID: "late-2", UserID: "u1", Type: TypeOKRUpdate, Read: true},
	}
	wg.Wait()

	list := store.Notifications()
	require.Len(t, list, 2)
	assert.Equal(t, "late-1", list[0].ID)
	assert.Equal(t, 2, store.Stats().Total)
	assert.Equal(t, 1, store.Stats().Unread)
	assertStatsInvariant(t, store)
}

package notifier

import (
	"context"
	"sync"

	"sprintboard_backend/internal/logger"
)

// Store owns the canonical in-memory notification list for one user
// and the stats derived from it. All mutations are network-first: the
// local state only changes after the service acknowledged the call, so
// a failed call leaves the list untouched.
type Store struct {
	mu      sync.Mutex
	userID  string
	gateway Gateway

	notifications []Notification
	stats         Stats
	lastErr       error
}

func NewStore(userID string, gateway Gateway) *Store {
	return &Store{
		userID:        userID,
		gateway:       gateway,
		notifications: []Notification{},
		stats:         computeStats(nil),
	}
}

// Notifications returns a copy of the current list, newest first.
func (s *Store) Notifications() []Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Notification, len(s.notifications))
	copy(out, s.notifications)
	return out
}

// Stats returns the stats derived from the current list.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return cloneStats(s.stats)
}

// Err returns the error recorded by the most recent fetch, nil after a
// successful one.
func (s *Store) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// Fetch replaces the full list with the service's current view and
// recomputes stats from scratch. Concurrent fetches are not sequenced:
// whichever response is applied last wins.
func (s *Store) Fetch(ctx context.Context, filters ListFilters) error {
	notifications, err := s.gateway.List(ctx, s.userID, filters)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.lastErr = err
		logger.Warn("no se pudieron cargar las notificaciones", "user_id", s.userID, "error", err.Error())
		return err
	}

	s.lastErr = nil
	s.notifications = notifications
	s.stats = computeStats(notifications)
	return nil
}

// Create delivers a notification and, on success, prepends it to the
// list. On failure the error propagates; queuing for retry is the
// caller's responsibility.
func (s *Store) Create(ctx context.Context, req CreateRequest) (*Notification, error) {
	created, err := s.gateway.Create(ctx, req)
	if err != nil {
		logger.Warn("no se pudo crear la notificación", "user_id", req.UserID, "type", req.Type, "error", err.Error())
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.notifications = append([]Notification{*created}, s.notifications...)
	s.stats = computeStats(s.notifications)
	return created, nil
}

// MarkAsRead marks one notification read, network call first. Marking
// an already-read entry is a no-op for the stats.
func (s *Store) MarkAsRead(ctx context.Context, id string) error {
	updated, err := s.gateway.MarkAsRead(ctx, id)
	if err != nil {
		logger.Warn("no se pudo marcar la notificación como leída", "id", id, "error", err.Error())
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		if s.notifications[i].ID != id {
			continue
		}
		s.notifications[i].Read = true
		if updated.ReadAt != nil {
			s.notifications[i].ReadAt = updated.ReadAt
		}
		break
	}

	s.stats = computeStats(s.notifications)
	return nil
}

// MarkAllAsRead marks every currently-unread notification read,
// optionally scoped to one project. One call is issued per entry, in
// parallel; if any fails the whole operation reports the first error,
// but entries whose calls succeeded are still applied locally.
func (s *Store) MarkAllAsRead(ctx context.Context, projectID string) error {
	s.mu.Lock()
	var targets []string
	for i := range s.notifications {
		if s.notifications[i].Read {
			continue
		}
		if projectID != "" && s.notifications[i].ProjectID != projectID {
			continue
		}
		targets = append(targets, s.notifications[i].ID)
	}
	s.mu.Unlock()

	if len(targets) == 0 {
		return nil
	}

	var wg sync.WaitGroup
	succeeded := make([]bool, len(targets))
	errs := make([]error, len(targets))

	for i, id := range targets {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			if _, err := s.gateway.MarkAsRead(ctx, id); err != nil {
				errs[i] = err
				return
			}
			succeeded[i] = true
		}(i, id)
	}
	wg.Wait()

	s.mu.Lock()
	for i, id := range targets {
		if !succeeded[i] {
			continue
		}
		for j := range s.notifications {
			if s.notifications[j].ID == id {
				s.notifications[j].Read = true
				break
			}
		}
	}
	s.stats = computeStats(s.notifications)
	s.mu.Unlock()

	for _, err := range errs {
		if err != nil {
			logger.Warn("no se pudieron marcar todas las notificaciones como leídas", "error", err.Error())
			return err
		}
	}
	return nil
}

// Delete removes a notification, network call first.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.gateway.Delete(ctx, id); err != nil {
		logger.Warn("no se pudo eliminar la notificación", "id", id, "error", err.Error())
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.notifications {
		if s.notifications[i].ID == id {
			s.notifications = append(s.notifications[:i], s.notifications[i+1:]...)
			break
		}
	}

	s.stats = computeStats(s.notifications)
	return nil
}

// computeStats rebuilds the derived stats from scratch. Keeping this
// as one pure function is what makes the list/stats invariant hold
// after every mutation.
func computeStats(notifications []Notification) Stats {
	stats := Stats{
		Total:     len(notifications),
		ByType:    map[string]int{},
		ByProject: map[string]int{},
	}

	for i := range notifications {
		n := &notifications[i]
		if !n.Read {
			stats.Unread++
		}
		stats.ByType[n.Type]++
		if n.ProjectID != "" {
			stats.ByProject[n.ProjectID]++
		}
	}

	return stats
}

func cloneStats(stats Stats) Stats {
	out := Stats{
		Total:     stats.Total,
		Unread:    stats.Unread,
		ByType:    make(map[string]int, len(stats.ByType)),
		ByProject: make(map[string]int, len(stats.ByProject)),
	}
	for k, v := range stats.ByType {
		out.ByType[k] = v
	}
	for k, v := range stats.ByProject {
		out.ByProject[k] = v
	}
	return out
}

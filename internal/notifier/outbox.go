package notifier

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"sprintboard_backend/internal/logger"
)

// Outbox is the durable holding area for notification creations that
// could not be delivered. Entries survive process restarts; the backing
// file is replaced atomically (write to temp file, then rename) so a
// crash mid-save never leaves a truncated queue behind.
type Outbox struct {
	mu   sync.Mutex
	path string
}

func NewOutbox(path string) *Outbox {
	return &Outbox{path: path}
}

// Load returns the queued entries. A missing file means an empty
// queue; a malformed file is tolerated the same way, since the queue
// is best-effort redelivery, not a ledger.
func (o *Outbox) Load() ([]FailedNotification, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.load()
}

// Append adds a failed creation with retryCount zero.
func (o *Outbox) Append(req CreateRequest) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	entries, err := o.load()
	if err != nil {
		return err
	}

	entries = append(entries, FailedNotification{
		Request:    req,
		Timestamp:  time.Now(),
		RetryCount: 0,
	})

	return o.save(entries)
}

// Replace overwrites the queue with the given entries. The retry
// scheduler uses this to persist the still-failed remainder of a
// drain.
func (o *Outbox) Replace(entries []FailedNotification) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.save(entries)
}

// Len reports the number of queued entries.
func (o *Outbox) Len() (int, error) {
	entries, err := o.Load()
	if err != nil {
		return 0, err
	}
	return len(entries), nil
}

func (o *Outbox) load() ([]FailedNotification, error) {
	data, err := os.ReadFile(o.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []FailedNotification{}, nil
		}
		return nil, fmt.Errorf("failed to read outbox %s: %w", o.path, err)
	}

	var entries []FailedNotification
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.Warn("outbox file is malformed, starting over", "path", o.path, "error", err.Error())
		return []FailedNotification{}, nil
	}
	if entries == nil {
		entries = []FailedNotification{}
	}

	return entries, nil
}

func (o *Outbox) save(entries []FailedNotification) error {
	if entries == nil {
		entries = []FailedNotification{}
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode outbox: %w", err)
	}

	dir := filepath.Dir(o.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create outbox directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".outbox-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp outbox file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write outbox: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close outbox temp file: %w", err)
	}

	if err := os.Rename(tmpName, o.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace outbox file: %w", err)
	}

	return nil
}

// Package notifier is the client side of the notification pipeline:
// an in-memory store with derived stats, a gateway client against the
// notification service, a file-backed queue of failed deliveries and a
// scheduler that drains it.
package notifier

import (
	"time"
)

// Notification event types, mirroring the server-side catalogue.
const (
	TypeTaskAssigned    = "task_assigned"
	TypeTaskCompleted   = "task_completed"
	TypeTaskComment     = "task_comment"
	TypeOKRUpdate       = "okr_update"
	TypeSprintStarted   = "sprint_started"
	TypeSprintCompleted = "sprint_completed"
	TypeMemberAdded     = "member_added"

	TypeSystemError         = "system_error"
	TypeSystemRecovery      = "system_recovery"
	TypeCriticalSystemError = "critical_system_error"
)

// MaxRetries is the delivery retry ceiling. An entry that fails this
// many drains is dropped from the queue and escalated instead.
const MaxRetries = 3

// Notification is the canonical client-side representation. The wire
// form is normalized on read: the id arrives as string or number and
// the data payload as a JSON-encoded string.
type Notification struct {
	ID        string                 `json:"id"`
	UserID    string                 `json:"user_id"`
	ProjectID string                 `json:"project_id,omitempty"`
	Type      string                 `json:"type"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Data      map[string]interface{} `json:"data,omitempty"`
	Read      bool                   `json:"read"`
	CreatedAt time.Time              `json:"created_at"`
	ReadAt    *time.Time             `json:"read_at,omitempty"`

	// Delivery bookkeeping, maintained client-side only
	DeliveryStatus string     `json:"delivery_status,omitempty"`
	RetryCount     int        `json:"retry_count,omitempty"`
	LastRetryAt    *time.Time `json:"last_retry_at,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
}

// Stats is derived from the in-memory list, never fetched.
type Stats struct {
	Total     int            `json:"total"`
	Unread    int            `json:"unread"`
	ByType    map[string]int `json:"by_type"`
	ByProject map[string]int `json:"by_project"`
}

// CreateRequest is one notification creation command. IdempotencyKey
// is minted client-side so the server can deduplicate redelivered
// creates.
type CreateRequest struct {
	UserID         string                 `json:"user_id"`
	ProjectID      string                 `json:"project_id,omitempty"`
	Type           string                 `json:"type"`
	Title          string                 `json:"title"`
	Message        string                 `json:"message"`
	Data           map[string]interface{} `json:"-"`
	IdempotencyKey string                 `json:"idempotency_key,omitempty"`
}

// FailedNotification is one entry of the failed-delivery queue.
type FailedNotification struct {
	Request    CreateRequest `json:"request"`
	Timestamp  time.Time     `json:"timestamp"`
	RetryCount int           `json:"retry_count"`
}

// ListFilters narrows a notification listing.
type ListFilters struct {
	ProjectID  string
	Type       string
	UnreadOnly bool
	DateFrom   time.Time
	DateTo     time.Time
}

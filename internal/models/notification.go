package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification event types emitted by the platform.
const (
	NotificationTaskAssigned    = "task_assigned"
	NotificationTaskCompleted   = "task_completed"
	NotificationTaskComment     = "task_comment"
	NotificationOKRUpdate       = "okr_update"
	NotificationSprintStarted   = "sprint_started"
	NotificationSprintCompleted = "sprint_completed"
	NotificationMemberAdded     = "member_added"

	// Self-diagnostic notifications produced by the delivery pipeline
	// itself. They are never queued for retry.
	NotificationSystemError         = "system_error"
	NotificationSystemRecovery      = "system_recovery"
	NotificationCriticalSystemError = "critical_system_error"
)

type Notification struct {
	BaseModel
	UserID    string `gorm:"not null;index"`
	ProjectID string `gorm:"index"` // empty for system-wide notifications
	Type      string `gorm:"not null;index"`
	Title     string `gorm:"not null"`
	Message   string
	Data      datatypes.JSON `gorm:"type:jsonb"` // {"task_id": "...", "sprint_id": "..."}
	IsRead    bool           `gorm:"default:false;index"`
	ReadAt    *time.Time

	// Client-minted key used to deduplicate redelivered creates. Nullable
	// so rows without a key never collide on the unique index.
	IdempotencyKey *string `gorm:"type:uuid;uniqueIndex"`
}

var validNotificationTypes = map[string]struct{}{
	NotificationTaskAssigned:        {},
	NotificationTaskCompleted:       {},
	NotificationTaskComment:         {},
	NotificationOKRUpdate:           {},
	NotificationSprintStarted:       {},
	NotificationSprintCompleted:     {},
	NotificationMemberAdded:         {},
	NotificationSystemError:         {},
	NotificationSystemRecovery:      {},
	NotificationCriticalSystemError: {},
}

// IsValidType reports whether t is one of the platform's event types.
func IsValidType(t string) bool {
	_, ok := validNotificationTypes[t]
	return ok
}

// IsSystemType reports whether t is one of the pipeline's own
// self-diagnostic types.
func IsSystemType(t string) bool {
	switch t {
	case NotificationSystemError, NotificationSystemRecovery, NotificationCriticalSystemError:
		return true
	}
	return false
}

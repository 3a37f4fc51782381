package dto

import "time"

// ---------------- Requests ----------------

// CreateNotificationRequest is the wire form of a new notification.
// Data is a JSON-encoded object string ("{\"task_id\":\"...\"}"), not a
// nested object. Clients encode before sending and decode after
// receiving.
type CreateNotificationRequest struct {
	UserID         string `json:"user_id" validate:"required"`
	ProjectID      string `json:"project_id" validate:"omitempty"`
	Type           string `json:"type" validate:"required,notification_type"`
	Title          string `json:"title" validate:"required,max=100"`
	Message        string `json:"message" validate:"omitempty,max=1000"`
	Data           string `json:"data" validate:"omitempty,json_object"`
	IdempotencyKey string `json:"idempotency_key" validate:"omitempty,uuid4"`
}

type CreateBulkNotificationsRequest struct {
	// 'dive' validates each element in the slice
	Notifications []*CreateNotificationRequest `json:"notifications" validate:"required,min=1,dive"`
}

type MarkAllReadRequest struct {
	ProjectID string `json:"project_id" validate:"omitempty"`
}

// ---------------- Responses ----------------

type NotificationResponse struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	ProjectID string     `json:"project_id,omitempty"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Data      string     `json:"data,omitempty"` // JSON-encoded object string
	IsRead    bool       `json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
}

type NotificationListResponse struct {
	Notifications []*NotificationResponse `json:"notifications"`
	Total         int64                   `json:"total"`
	Page          int                     `json:"page"`
	PageSize      int                     `json:"page_size"`
	TotalPages    int                     `json:"total_pages"`
}

// ListNotificationsQuery carries the filter query params of a listing
// request. Pagination and the date range are parsed separately.
type ListNotificationsQuery struct {
	UnreadOnly bool   `form:"unread_only"`
	Type       string `form:"type" validate:"omitempty,notification_type"`
	ProjectID  string `form:"project_id"`
}

// ---------------- Criteria ----------------

// NotificationCriteria narrows a user's notification listing.
type NotificationCriteria struct {
	UnreadOnly bool
	Type       string
	ProjectID  string
	DateFrom   time.Time
	DateTo     time.Time
	Page       int
	PageSize   int
}

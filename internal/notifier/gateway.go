package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"sprintboard_backend/internal/logger"
	"sprintboard_backend/pkg/apperrors"
)

// Gateway is the delivery boundary the store and scheduler depend on.
type Gateway interface {
	List(ctx context.Context, userID string, filters ListFilters) ([]Notification, error)
	Create(ctx context.Context, req CreateRequest) (*Notification, error)
	MarkAsRead(ctx context.Context, id string) (*Notification, error)
	MarkAllAsRead(ctx context.Context, projectID string) error
	Delete(ctx context.Context, id string) error
}

// TokenProvider supplies the bearer token attached to each request.
// Returning an empty string omits the Authorization header.
type TokenProvider func() string

// GatewayClient talks to the notification service over REST and
// normalizes its response shapes into canonical Notifications.
type GatewayClient struct {
	baseURL    string
	httpClient *http.Client
	token      TokenProvider
}

func NewGatewayClient(baseURL string, timeout time.Duration, token TokenProvider) *GatewayClient {
	if token == nil {
		token = func() string { return "" }
	}
	return &GatewayClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		token:      token,
	}
}

// wireNotification tolerates the shapes the service has been observed
// to produce: numeric or string ids, data as a JSON-encoded string,
// and a missing created_at.
type wireNotification struct {
	ID        json.RawMessage `json:"id"`
	UserID    string          `json:"user_id"`
	ProjectID string          `json:"project_id"`
	Type      string          `json:"type"`
	Title     string          `json:"title"`
	Message   string          `json:"message"`
	Data      string          `json:"data"`
	IsRead    bool            `json:"is_read"`
	ReadAt    *time.Time      `json:"read_at"`
	CreatedAt *time.Time      `json:"created_at"`
}

type wireListResponse struct {
	Notifications []wireNotification `json:"notifications"`
}

type wireCreateRequest struct {
	UserID         string `json:"user_id"`
	ProjectID      string `json:"project_id,omitempty"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	Data           string `json:"data,omitempty"`
	IdempotencyKey string `json:"idempotency_key,omitempty"`
}

// List fetches the caller's notifications. Connection failures and 404
// resolve to an empty slice: both mean "no data yet", not an error.
func (g *GatewayClient) List(ctx context.Context, userID string, filters ListFilters) ([]Notification, error) {
	if userID == "" {
		return []Notification{}, nil
	}

	query := url.Values{}
	if filters.ProjectID != "" {
		query.Set("project_id", filters.ProjectID)
	}
	if filters.Type != "" {
		query.Set("type", filters.Type)
	}
	if filters.UnreadOnly {
		query.Set("unread_only", "true")
	}
	if !filters.DateFrom.IsZero() {
		query.Set("date_from", filters.DateFrom.Format(time.RFC3339))
	}
	if !filters.DateTo.IsZero() {
		query.Set("date_to", filters.DateTo.Format(time.RFC3339))
	}

	endpoint := g.baseURL + "/api/v1/notifications"
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	body, err := g.do(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		if isSuppressible(err) {
			logger.Debug("notification list suppressed", "error", err.Error())
			return []Notification{}, nil
		}
		return nil, err
	}

	var wire wireListResponse
	if err := json.Unmarshal(body, &wire.Notifications); err != nil {
		// Envelope form {"notifications": [...]} rather than a bare array
		if err := json.Unmarshal(body, &wire); err != nil {
			return nil, fmt.Errorf("failed to decode notification list: %w", err)
		}
	}

	notifications := make([]Notification, 0, len(wire.Notifications))
	for i := range wire.Notifications {
		notifications = append(notifications, normalize(&wire.Notifications[i]))
	}
	return notifications, nil
}

// Create delivers one notification. Failures propagate to the caller,
// which owns the decision to queue for retry.
func (g *GatewayClient) Create(ctx context.Context, req CreateRequest) (*Notification, error) {
	wireReq := wireCreateRequest{
		UserID:         req.UserID,
		ProjectID:      req.ProjectID,
		Type:           req.Type,
		Title:          req.Title,
		Message:        req.Message,
		IdempotencyKey: req.IdempotencyKey,
	}

	// The data payload travels as a JSON-encoded string
	if req.Data != nil {
		raw, err := json.Marshal(req.Data)
		if err != nil {
			return nil, fmt.Errorf("failed to encode notification data: %w", err)
		}
		wireReq.Data = string(raw)
	}

	payload, err := json.Marshal(wireReq)
	if err != nil {
		return nil, err
	}

	body, err := g.do(ctx, http.MethodPost, g.baseURL+"/api/v1/notifications", payload)
	if err != nil {
		return nil, apperrors.ErrDeliveryFailed(err)
	}

	var wire wireNotification
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, apperrors.ErrDeliveryFailed(fmt.Errorf("failed to decode created notification: %w", err))
	}

	notification := normalize(&wire)
	return &notification, nil
}

func (g *GatewayClient) MarkAsRead(ctx context.Context, id string) (*Notification, error) {
	endpoint := fmt.Sprintf("%s/api/v1/notifications/%s/read", g.baseURL, url.PathEscape(id))

	body, err := g.do(ctx, http.MethodPut, endpoint, nil)
	if err != nil {
		return nil, err
	}

	var wire wireNotification
	if err := json.Unmarshal(body, &wire); err != nil {
		// Some deployments answer with a plain message; synthesize the
		// state the operation guarantees
		now := time.Now()
		return &Notification{ID: id, Read: true, ReadAt: &now}, nil
	}

	notification := normalize(&wire)
	notification.Read = true
	if notification.ReadAt == nil {
		now := time.Now()
		notification.ReadAt = &now
	}
	return &notification, nil
}

// MarkAllAsRead is idempotent against "nothing to mark": 404 and
// connection failures are swallowed.
func (g *GatewayClient) MarkAllAsRead(ctx context.Context, projectID string) error {
	var payload []byte
	if projectID != "" {
		var err error
		payload, err = json.Marshal(map[string]string{"project_id": projectID})
		if err != nil {
			return err
		}
	}

	_, err := g.do(ctx, http.MethodPut, g.baseURL+"/api/v1/notifications/mark-all-read", payload)
	if err != nil && !isSuppressible(err) {
		return err
	}
	return nil
}

func (g *GatewayClient) Delete(ctx context.Context, id string) error {
	endpoint := fmt.Sprintf("%s/api/v1/notifications/%s", g.baseURL, url.PathEscape(id))
	_, err := g.do(ctx, http.MethodDelete, endpoint, nil)
	return err
}

// do performs one request and returns the response body. Non-2xx
// statuses become *httpError carrying the backend's message when one
// is parseable.
func (g *GatewayClient) do(ctx context.Context, method, endpoint string, payload []byte) ([]byte, error) {
	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reqBody)
	if err != nil {
		return nil, err
	}

	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := g.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := g.httpClient.Do(req)
	if err != nil {
		return nil, &connError{err: err}
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &connError{err: err}
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, &httpError{status: res.StatusCode, message: extractErrorMessage(body)}
	}

	return body, nil
}

// normalize converts a wire notification into the canonical form: id
// coerced to string, data decoded from its JSON-string transport form
// (empty map when absent or malformed), created_at defaulted to now.
func normalize(wire *wireNotification) Notification {
	n := Notification{
		ID:        coerceID(wire.ID),
		UserID:    wire.UserID,
		ProjectID: wire.ProjectID,
		Type:      wire.Type,
		Title:     wire.Title,
		Message:   wire.Message,
		Read:      wire.IsRead,
		ReadAt:    wire.ReadAt,
	}

	n.Data = map[string]interface{}{}
	if wire.Data != "" {
		var decoded map[string]interface{}
		if err := json.Unmarshal([]byte(wire.Data), &decoded); err == nil && decoded != nil {
			n.Data = decoded
		}
	}

	if wire.CreatedAt != nil {
		n.CreatedAt = *wire.CreatedAt
	} else {
		n.CreatedAt = time.Now()
	}

	return n
}

// coerceID accepts a JSON string or number and yields a string.
func coerceID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}

	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return strconv.FormatFloat(f, 'f', -1, 64)
	}

	return string(raw)
}

func extractErrorMessage(body []byte) string {
	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil {
		if envelope.Error.Message != "" {
			return envelope.Error.Message
		}
		if envelope.Message != "" {
			return envelope.Message
		}
	}
	return string(body)
}

// httpError is a non-2xx response.
type httpError struct {
	status  int
	message string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("notification service returned %d: %s", e.status, e.message)
}

// connError is a transport-level failure (DNS, refused connection,
// timeout, interrupted body).
type connError struct {
	err error
}

func (e *connError) Error() string {
	return "notification service unreachable: " + e.err.Error()
}

func (e *connError) Unwrap() error {
	return e.err
}

// isSuppressible reports whether an error should be treated as "no
// data yet" on the read-mostly paths: connection failures and 404.
func isSuppressible(err error) bool {
	var ce *connError
	if errors.As(err, &ce) {
		return true
	}
	var he *httpError
	if errors.As(err, &he) {
		return he.status == http.StatusNotFound
	}
	return false
}

// IsNotFound reports whether err is an HTTP 404 from the service.
func IsNotFound(err error) bool {
	var he *httpError
	return errors.As(err, &he) && he.status == http.StatusNotFound
}

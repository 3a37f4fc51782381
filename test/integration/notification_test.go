package integration_test

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintboard_backend/internal/notifier"
	"sprintboard_backend/test/helpers"
)

type notificationPayload struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	ProjectID string `json:"project_id"`
	Type      string `json:"type"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Data      string `json:"data"`
	IsRead    bool   `json:"is_read"`
}

type listPayload struct {
	Notifications []notificationPayload `json:"notifications"`
	Total         int64                 `json:"total"`
}

func createNotification(t *testing.T, ts *helpers.TestServer, token string, body map[string]interface{}) notificationPayload {
	t.Helper()
	res, resBody := ts.SendRequest(t, http.MethodPost, "/api/v1/notifications", token, body)
	require.Equal(t, http.StatusCreated, res.StatusCode, "create failed: "+resBody)

	var created notificationPayload
	require.NoError(t, json.Unmarshal([]byte(resBody), &created))
	require.NotEmpty(t, created.ID)
	return created
}

func TestCreateAndListNotifications(t *testing.T) {
	ts := GetTestServer(t)
	ts.ClearTables()
	userID, token := helpers.NewTestUser(t)

	created := createNotification(t, ts, token, map[string]interface{}{
		"user_id": userID,
		"type":    "task_assigned",
		"title":   "Nueva tarea asignada",
		"message": "Ana te asignó la tarea 'Definir API'",
		"data":    `{"task_id":"T-1"}`,
	})
	assert.Equal(t, "task_assigned", created.Type)
	assert.False(t, created.IsRead)

	res, body := ts.SendRequest(t, http.MethodGet, "/api/v1/notifications", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var list listPayload
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, created.ID, list.Notifications[0].ID)
	assert.JSONEq(t, `{"task_id":"T-1"}`, list.Notifications[0].Data)
}

func TestCreateRejectsUnknownType(t *testing.T) {
	ts := GetTestServer(t)
	ts.ClearTables()
	userID, token := helpers.NewTestUser(t)

	res, _ := ts.SendRequest(t, http.MethodPost, "/api/v1/notifications", token, map[string]interface{}{
		"user_id": userID,
		"type":    "carrier_pigeon",
		"title":   "x",
	})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestCreateDeduplicatesOnIdempotencyKey(t *testing.T) {
	ts := GetTestServer(t)
	ts.ClearTables()
	userID, token := helpers.NewTestUser(t)

	key := uuid.NewString()
	body := map[string]interface{}{
		"user_id":         userID,
		"type":            "task_assigned",
		"title":           "Nueva tarea asignada",
		"idempotency_key": key,
	}

	first := createNotification(t, ts, token, body)
	second := createNotification(t, ts, token, body)
	assert.Equal(t, first.ID, second.ID, "redelivered create must return the original row")

	res, listBody := ts.SendRequest(t, http.MethodGet, "/api/v1/notifications", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var list listPayload
	require.NoError(t, json.Unmarshal([]byte(listBody), &list))
	assert.Len(t, list.Notifications, 1)
}

func TestMarkAsReadIsIdempotentAndScoped(t *testing.T) {
	ts := GetTestServer(t)
	ts.ClearTables()
	userID, token := helpers.NewTestUser(t)
	_, strangerToken := helpers.NewTestUser(t)

	created := createNotification(t, ts, token, map[string]interface{}{
		"user_id": userID,
		"type":    "okr_update",
		"title":   "Progreso de OKR actualizado",
	})

	// A stranger sees 404, not 403
	res, _ := ts.SendRequest(t, http.MethodPut, "/api/v1/notifications/"+created.ID+"/read", strangerToken, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, _ = ts.SendRequest(t, http.MethodPut, "/api/v1/notifications/"+created.ID+"/read", token, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	// Second call is a no-op, not an error
	res, _ = ts.SendRequest(t, http.MethodPut, "/api/v1/notifications/"+created.ID+"/read", token, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, body := ts.SendRequest(t, http.MethodGet, "/api/v1/notifications/unread-count", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var count struct {
		UnreadCount int64 `json:"unread_count"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &count))
	assert.Zero(t, count.UnreadCount)
}

func TestMarkAllReadScopedToProject(t *testing.T) {
	ts := GetTestServer(t)
	ts.ClearTables()
	userID, token := helpers.NewTestUser(t)

	createNotification(t, ts, token, map[string]interface{}{
		"user_id": userID, "project_id": "p1", "type": "task_assigned", "title": "a",
	})
	createNotification(t, ts, token, map[string]interface{}{
		"user_id": userID, "project_id": "p2", "type": "task_assigned", "title": "b",
	})

	res, _ := ts.SendRequest(t, http.MethodPut, "/api/v1/notifications/mark-all-read", token, map[string]interface{}{
		"project_id": "p1",
	})
	require.Equal(t, http.StatusOK, res.StatusCode)

	res, body := ts.SendRequest(t, http.MethodGet, "/api/v1/notifications?unread_only=true", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	var list listPayload
	require.NoError(t, json.Unmarshal([]byte(body), &list))
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, "p2", list.Notifications[0].ProjectID)
}

func TestDeleteNotification(t *testing.T) {
	ts := GetTestServer(t)
	ts.ClearTables()
	userID, token := helpers.NewTestUser(t)

	created := createNotification(t, ts, token, map[string]interface{}{
		"user_id": userID, "type": "member_added", "title": "Agregado a un proyecto",
	})

	res, _ := ts.SendRequest(t, http.MethodDelete, "/api/v1/notifications/"+created.ID, token, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, _ = ts.SendRequest(t, http.MethodDelete, "/api/v1/notifications/"+created.ID, token, nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestStatsEndpoint(t *testing.T) {
	ts := GetTestServer(t)
	ts.ClearTables()
	userID, token := helpers.NewTestUser(t)

	createNotification(t, ts, token, map[string]interface{}{
		"user_id": userID, "project_id": "p1", "type": "task_assigned", "title": "a",
	})
	createNotification(t, ts, token, map[string]interface{}{
		"user_id": userID, "project_id": "p1", "type": "sprint_started", "title": "b",
	})

	res, body := ts.SendRequest(t, http.MethodGet, "/api/v1/notifications/stats", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var stats struct {
		Total     int64            `json:"total_notifications"`
		Unread    int64            `json:"unread_count"`
		ByType    map[string]int64 `json:"by_type"`
		ByProject map[string]int64 `json:"by_project"`
	}
	require.NoError(t, json.Unmarshal([]byte(body), &stats))
	assert.Equal(t, int64(2), stats.Total)
	assert.Equal(t, int64(2), stats.Unread)
	assert.Equal(t, int64(1), stats.ByType["task_assigned"])
	assert.Equal(t, int64(2), stats.ByProject["p1"])
}

func TestListRejectsUnknownTypeFilter(t *testing.T) {
	ts := GetTestServer(t)
	ts.ClearTables()
	_, token := helpers.NewTestUser(t)

	res, _ := ts.SendRequest(t, http.MethodGet, "/api/v1/notifications?type=carrier_pigeon", token, nil)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestBulkCreateRequiresServiceRole(t *testing.T) {
	ts := GetTestServer(t)
	ts.ClearTables()
	memberID, memberToken := helpers.NewTestUser(t)
	_, serviceToken := helpers.NewTestServiceAccount(t)

	payload := map[string]interface{}{
		"notifications": []map[string]interface{}{
			{"user_id": memberID, "type": "sprint_started", "title": "Sprint iniciado"},
		},
	}

	res, _ := ts.SendRequest(t, http.MethodPost, "/api/v1/notifications/bulk", memberToken, payload)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res, body := ts.SendRequest(t, http.MethodPost, "/api/v1/notifications/bulk", serviceToken, payload)
	require.Equal(t, http.StatusCreated, res.StatusCode, body)

	res, listBody := ts.SendRequest(t, http.MethodGet, "/api/v1/notifications", memberToken, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var list listPayload
	require.NoError(t, json.Unmarshal([]byte(listBody), &list))
	assert.Len(t, list.Notifications, 1)
}

func TestRequestsWithoutTokenAreRejected(t *testing.T) {
	ts := GetTestServer(t)

	res, _ := ts.SendRequest(t, http.MethodGet, "/api/v1/notifications", "", nil)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
}

// TestNotifierRoundTrip runs the client pipeline against the real
// service: a data payload written through the gateway must decode back
// to a deep-equal object after a fetch.
func TestNotifierRoundTrip(t *testing.T) {
	ts := GetTestServer(t)
	ts.ClearTables()
	userID, token := helpers.NewTestUser(t)

	gateway := notifier.NewGatewayClient(ts.Server.URL, 5*time.Second, func() string { return token })
	store := notifier.NewStore(userID, gateway)
	ctx := context.Background()

	_, err := store.Create(ctx, notifier.CreateRequest{
		UserID: userID,
		Type:   notifier.TypeTaskAssigned,
		Title:  "Nueva tarea asignada",
		Data:   map[string]interface{}{"foo": "bar"},
	})
	require.NoError(t, err)

	require.NoError(t, store.Fetch(ctx, notifier.ListFilters{}))

	list := store.Notifications()
	require.Len(t, list, 1)
	assert.Equal(t, map[string]interface{}{"foo": "bar"}, list[0].Data)

	stats := store.Stats()
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.Unread)
}

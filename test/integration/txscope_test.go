package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sprintboard_backend/internal/models"
	"sprintboard_backend/pkg/contextkeys"
	"sprintboard_backend/test/helpers"
)

// TestRequestScopedTransactionIsIsolated drives a request through the
// router with a transaction injected into the request context. The
// write must land inside that transaction only: invisible to requests
// served from the pool, gone after rollback.
func TestRequestScopedTransactionIsIsolated(t *testing.T) {
	ts := GetTestServer(t)
	ts.ClearTables()
	userID, token := helpers.NewTestUser(t)

	tx := ts.DB.Begin()
	require.NoError(t, tx.Error)
	defer tx.Rollback()

	body, err := json.Marshal(map[string]interface{}{
		"user_id": userID,
		"type":    "task_assigned",
		"title":   "Nueva tarea asignada",
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/notifications", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req = req.WithContext(context.WithValue(req.Context(), contextkeys.DBContextKey, tx))

	rec := httptest.NewRecorder()
	ts.Router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	// Visible inside the transaction
	var count int64
	require.NoError(t, tx.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	// Invisible to a request served from the pool
	res, listBody := ts.SendRequest(t, http.MethodGet, "/api/v1/notifications", token, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	var list listPayload
	require.NoError(t, json.Unmarshal([]byte(listBody), &list))
	assert.Empty(t, list.Notifications)

	// And gone entirely after rollback
	require.NoError(t, tx.Rollback().Error)
	require.NoError(t, ts.DB.Model(&models.Notification{}).Where("user_id = ?", userID).Count(&count).Error)
	assert.Zero(t, count)
}

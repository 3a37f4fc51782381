package helpers

import (
	"testing"

	"github.com/google/uuid"

	"sprintboard_backend/internal/auth"
)

// NewTestUser mints a fresh user id and a valid access token for it.
// Authentication lives in the platform gateway, so tests sign their
// own tokens with the shared test secret.
func NewTestUser(t *testing.T) (userID, token string) {
	t.Helper()

	userID = uuid.NewString()
	token, err := auth.GenerateToken(userID, "member")
	if err != nil {
		t.Fatalf("Failed to issue test token: %v", err)
	}
	return userID, token
}

// NewTestServiceAccount mints a token carrying the service role that
// platform backends use for bulk fan-out.
func NewTestServiceAccount(t *testing.T) (userID, token string) {
	t.Helper()

	userID = uuid.NewString()
	token, err := auth.GenerateToken(userID, "service")
	if err != nil {
		t.Fatalf("Failed to issue service token: %v", err)
	}
	return userID, token
}

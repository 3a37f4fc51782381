package apperrors

import (
	"net/http"
)

// Factories and predefined values for domain errors.

// ErrNotFound converts a repository "record not found" into a 404 AppError.
func ErrNotFound(err error) *AppError {
	return Wrap(err, CodeNotFound, "resource", "Resource not found", http.StatusNotFound)
}

// ErrAlreadyExists converts a uniqueness violation into a 409 AppError.
func ErrAlreadyExists(err error) *AppError {
	return Wrap(err, CodeAlreadyExists, "resource", "Resource already exists", http.StatusConflict)
}

// ErrConflict is the generic 409 factory.
func ErrConflict(err error, domain, message string) *AppError {
	return Wrap(err, CodeConflict, domain, message, http.StatusConflict)
}

// ErrInvalidOperation is the factory for invalid operations (400).
func ErrInvalidOperation(domain, message string) *AppError {
	return New(CodeInvalidOperation, domain, message, http.StatusBadRequest)
}

// --- Notifications ---

// ErrNotificationNotFound is returned when a notification does not exist
// or belongs to another user (never reveal which).
var ErrNotificationNotFound = New(
	CodeNotFound,
	"notification",
	"Notification not found",
	http.StatusNotFound,
)

// ErrInvalidNotificationType is returned for an unknown notification type.
var ErrInvalidNotificationType = New(
	CodeValidationFailed,
	"notification",
	"Invalid notification type",
	http.StatusBadRequest,
)

// ErrInvalidNotificationData is returned when the data payload is not
// a valid JSON document.
var ErrInvalidNotificationData = New(
	CodeValidationFailed,
	"notification",
	"Notification data must be a valid JSON object",
	http.StatusBadRequest,
)

// ErrDeliveryFailed wraps a gateway error when a notification could not
// be delivered to the notification service.
func ErrDeliveryFailed(err error) *AppError {
	return Wrap(err, CodeDeliveryFailed, "notification", "Notification delivery failed", http.StatusBadGateway)
}

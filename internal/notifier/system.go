package notifier

import (
	"context"
	"fmt"
	"time"

	"sprintboard_backend/internal/logger"
)

// Emitter synthesizes the pipeline's own notifications (errors,
// recoveries) and feeds them through the same create path as
// user-facing ones.
//
// Loop-breaker: a failure to deliver a system notification is logged
// and dropped, never queued for retry. Without this, a dead service
// would grow the outbox with escalations about its own escalations.
type Emitter struct {
	gateway Gateway
	userID  string
}

func NewEmitter(gateway Gateway, userID string) *Emitter {
	return &Emitter{gateway: gateway, userID: userID}
}

// EmitSystemError reports a delivery failure to the user.
func (e *Emitter) EmitSystemError(ctx context.Context, errorType, errorMessage string, affectedResources []string) {
	data := map[string]interface{}{
		"error_type":    errorType,
		"error_message": errorMessage,
	}
	if len(affectedResources) > 0 {
		data["affected_resources"] = affectedResources
	}

	e.emit(ctx, CreateRequest{
		UserID:  e.userID,
		Type:    TypeSystemError,
		Title:   "Error del sistema",
		Message: "No se pudo entregar una notificación después de varios intentos",
		Data:    data,
	})
}

// EmitSystemRecovery reports that queued notifications were finally
// delivered.
func (e *Emitter) EmitSystemRecovery(ctx context.Context, recoveredIDs []string) {
	e.emit(ctx, CreateRequest{
		UserID:  e.userID,
		Type:    TypeSystemRecovery,
		Title:   "Sistema recuperado",
		Message: fmt.Sprintf("Se entregaron %d notificaciones pendientes", len(recoveredIDs)),
		Data: map[string]interface{}{
			"recovered_count": len(recoveredIDs),
			"recovered_ids":   recoveredIDs,
			"recovered_at":    time.Now().Format(time.RFC3339),
		},
	})
}

// EmitCriticalSystemError reports that the retry machinery itself
// broke (e.g. the outbox file could not be read).
func (e *Emitter) EmitCriticalSystemError(ctx context.Context, errorMessage string) {
	e.emit(ctx, CreateRequest{
		UserID:  e.userID,
		Type:    TypeCriticalSystemError,
		Title:   "Error crítico del sistema",
		Message: "El sistema de reintento de notificaciones falló",
		Data: map[string]interface{}{
			"error_type":    "retry_pipeline",
			"error_message": errorMessage,
		},
	})
}

func (e *Emitter) emit(ctx context.Context, req CreateRequest) {
	if _, err := e.gateway.Create(ctx, req); err != nil {
		// Log and drop. System notifications never re-enter the queue.
		logger.Error("failed to deliver system notification",
			"type", req.Type,
			"user_id", req.UserID,
			"error", err.Error(),
		)
	}
}

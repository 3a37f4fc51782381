package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"sprintboard_backend/internal/models"
	"sprintboard_backend/internal/repositories"
	"sprintboard_backend/internal/services/dto"
	"sprintboard_backend/pkg/apperrors"
)

// mapRepoError translates repository sentinel errors into AppErrors
// that carry the right HTTP status.
func mapRepoError(err error) error {
	switch {
	case errors.Is(err, repositories.ErrNotificationNotFound):
		return apperrors.ErrNotificationNotFound
	case errors.Is(err, repositories.ErrInvalidNotificationData):
		return apperrors.ErrInvalidNotificationData
	}
	return err
}

// NotificationService methods take the *gorm.DB to run against, so a
// handler can hand over its request-scoped connection (pool or
// transaction) untouched.
type NotificationService interface {
	// Notification operations
	CreateNotification(db *gorm.DB, req *dto.CreateNotificationRequest) (*dto.NotificationResponse, error)
	CreateBulkNotifications(db *gorm.DB, req *dto.CreateBulkNotificationsRequest) error
	GetNotification(db *gorm.DB, notificationID string) (*dto.NotificationResponse, error)
	GetUserNotifications(db *gorm.DB, userID string, criteria dto.NotificationCriteria) (*dto.NotificationListResponse, error)
	MarkAsRead(db *gorm.DB, userID, notificationID string) error
	MarkAllAsRead(db *gorm.DB, userID, projectID string) error
	DeleteNotification(db *gorm.DB, userID, notificationID string) error
	DeleteUserNotifications(db *gorm.DB, userID string) error
	CleanOldNotifications(db *gorm.DB, days int) error

	// Notification stats
	GetUserNotificationStats(db *gorm.DB, userID string) (*repositories.NotificationStats, error)
	GetUnreadCount(db *gorm.DB, userID string) (int64, error)

	// Factory methods for platform events
	NotifyTaskAssigned(db *gorm.DB, userID, projectID, taskID, taskTitle, assignerName string) error
	NotifyTaskCompleted(db *gorm.DB, userID, projectID, taskID, taskTitle, completerName string) error
	NotifyTaskComment(db *gorm.DB, userID, projectID, taskID, taskTitle, authorName string) error
	NotifyOKRUpdate(db *gorm.DB, userID, projectID, okrID, objective string, progress int) error
	NotifySprintStarted(db *gorm.DB, userIDs []string, projectID, sprintID, sprintName string) error
	NotifySprintCompleted(db *gorm.DB, userIDs []string, projectID, sprintID, sprintName string) error
	NotifyMemberAdded(db *gorm.DB, userID, projectID, projectName, inviterName string) error
}

type notificationService struct {
	notificationRepo repositories.NotificationRepository
}

func NewNotificationService(notificationRepo repositories.NotificationRepository) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
	}
}

// ---------------- Notification operations ----------------

func (s *notificationService) CreateNotification(db *gorm.DB, req *dto.CreateNotificationRequest) (*dto.NotificationResponse, error) {
	notification, err := s.buildNotification(req)
	if err != nil {
		return nil, err
	}

	if err := s.notificationRepo.CreateNotification(db, notification); err != nil {
		return nil, err
	}

	return s.buildNotificationResponse(notification), nil
}

func (s *notificationService) CreateBulkNotifications(db *gorm.DB, req *dto.CreateBulkNotificationsRequest) error {
	var notifications []*models.Notification

	for _, notificationReq := range req.Notifications {
		notification, err := s.buildNotification(notificationReq)
		if err != nil {
			return err
		}
		notifications = append(notifications, notification)
	}

	return s.notificationRepo.CreateBulkNotifications(db, notifications)
}

func (s *notificationService) GetNotification(db *gorm.DB, notificationID string) (*dto.NotificationResponse, error) {
	notification, err := s.notificationRepo.FindNotificationByID(db, notificationID)
	if err != nil {
		return nil, mapRepoError(err)
	}
	return s.buildNotificationResponse(notification), nil
}

func (s *notificationService) GetUserNotifications(db *gorm.DB, userID string, criteria dto.NotificationCriteria) (*dto.NotificationListResponse, error) {
	repoCriteria := repositories.NotificationCriteria{
		UnreadOnly: criteria.UnreadOnly,
		Type:       criteria.Type,
		ProjectID:  criteria.ProjectID,
		DateFrom:   criteria.DateFrom,
		DateTo:     criteria.DateTo,
		Page:       criteria.Page,
		PageSize:   criteria.PageSize,
	}

	notifications, total, err := s.notificationRepo.FindUserNotifications(db, userID, repoCriteria)
	if err != nil {
		return nil, err
	}

	notificationResponses := make([]*dto.NotificationResponse, 0, len(notifications))
	for i := range notifications {
		notificationResponses = append(notificationResponses, s.buildNotificationResponse(&notifications[i]))
	}

	return &dto.NotificationListResponse{
		Notifications: notificationResponses,
		Total:         total,
		Page:          criteria.Page,
		PageSize:      criteria.PageSize,
		TotalPages:    calculateTotalPages(total, criteria.PageSize),
	}, nil
}

func (s *notificationService) MarkAsRead(db *gorm.DB, userID, notificationID string) error {
	notification, err := s.notificationRepo.FindNotificationByID(db, notificationID)
	if err != nil {
		return mapRepoError(err)
	}
	// Foreign notifications look exactly like missing ones to the caller
	if notification.UserID != userID {
		return apperrors.ErrNotificationNotFound
	}
	// Marking an already-read notification again is a no-op, not an error
	if notification.IsRead {
		return nil
	}
	if err := s.notificationRepo.MarkAsRead(db, notificationID); err != nil {
		return mapRepoError(err)
	}
	return nil
}

func (s *notificationService) MarkAllAsRead(db *gorm.DB, userID, projectID string) error {
	return s.notificationRepo.MarkAllAsRead(db, userID, projectID)
}

func (s *notificationService) DeleteNotification(db *gorm.DB, userID, notificationID string) error {
	notification, err := s.notificationRepo.FindNotificationByID(db, notificationID)
	if err != nil {
		return mapRepoError(err)
	}
	if notification.UserID != userID {
		return apperrors.ErrNotificationNotFound
	}
	if err := s.notificationRepo.DeleteNotification(db, notificationID); err != nil {
		return mapRepoError(err)
	}
	return nil
}

func (s *notificationService) DeleteUserNotifications(db *gorm.DB, userID string) error {
	return s.notificationRepo.DeleteUserNotifications(db, userID)
}

func (s *notificationService) CleanOldNotifications(db *gorm.DB, days int) error {
	return s.notificationRepo.CleanOldNotifications(db, days)
}

// ---------------- Notification stats ----------------

func (s *notificationService) GetUserNotificationStats(db *gorm.DB, userID string) (*repositories.NotificationStats, error) {
	return s.notificationRepo.GetUserNotificationStats(db, userID)
}

func (s *notificationService) GetUnreadCount(db *gorm.DB, userID string) (int64, error) {
	return s.notificationRepo.GetUnreadCount(db, userID)
}

// ---------------- Factory methods ----------------

func (s *notificationService) NotifyTaskAssigned(db *gorm.DB, userID, projectID, taskID, taskTitle, assignerName string) error {
	return s.createEvent(db, userID, projectID, models.NotificationTaskAssigned,
		"Nueva tarea asignada",
		fmt.Sprintf("%s te asignó la tarea '%s'", assignerName, taskTitle),
		map[string]interface{}{"task_id": taskID},
	)
}

func (s *notificationService) NotifyTaskCompleted(db *gorm.DB, userID, projectID, taskID, taskTitle, completerName string) error {
	return s.createEvent(db, userID, projectID, models.NotificationTaskCompleted,
		"Tarea completada",
		fmt.Sprintf("%s completó la tarea '%s'", completerName, taskTitle),
		map[string]interface{}{"task_id": taskID},
	)
}

func (s *notificationService) NotifyTaskComment(db *gorm.DB, userID, projectID, taskID, taskTitle, authorName string) error {
	return s.createEvent(db, userID, projectID, models.NotificationTaskComment,
		"Nuevo comentario",
		fmt.Sprintf("%s comentó en la tarea '%s'", authorName, taskTitle),
		map[string]interface{}{"task_id": taskID},
	)
}

func (s *notificationService) NotifyOKRUpdate(db *gorm.DB, userID, projectID, okrID, objective string, progress int) error {
	return s.createEvent(db, userID, projectID, models.NotificationOKRUpdate,
		"Progreso de OKR actualizado",
		fmt.Sprintf("El objetivo '%s' alcanzó un %d%% de progreso", objective, progress),
		map[string]interface{}{"okr_id": okrID, "progress": progress},
	)
}

func (s *notificationService) NotifySprintStarted(db *gorm.DB, userIDs []string, projectID, sprintID, sprintName string) error {
	return s.createEventForAll(db, userIDs, projectID, models.NotificationSprintStarted,
		"Sprint iniciado",
		fmt.Sprintf("El sprint '%s' ha comenzado", sprintName),
		map[string]interface{}{"sprint_id": sprintID},
	)
}

func (s *notificationService) NotifySprintCompleted(db *gorm.DB, userIDs []string, projectID, sprintID, sprintName string) error {
	return s.createEventForAll(db, userIDs, projectID, models.NotificationSprintCompleted,
		"Sprint finalizado",
		fmt.Sprintf("El sprint '%s' ha finalizado", sprintName),
		map[string]interface{}{"sprint_id": sprintID},
	)
}

func (s *notificationService) NotifyMemberAdded(db *gorm.DB, userID, projectID, projectName, inviterName string) error {
	return s.createEvent(db, userID, projectID, models.NotificationMemberAdded,
		"Agregado a un proyecto",
		fmt.Sprintf("%s te agregó al proyecto '%s'", inviterName, projectName),
		nil,
	)
}

// ---------------- Helpers ----------------

func (s *notificationService) createEvent(db *gorm.DB, userID, projectID, eventType, title, message string, data map[string]interface{}) error {
	notification := &models.Notification{
		UserID:    userID,
		ProjectID: projectID,
		Type:      eventType,
		Title:     title,
		Message:   message,
	}

	if data != nil {
		jsonData, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal notification data: %w", err)
		}
		notification.Data = datatypes.JSON(jsonData)
	}

	return s.notificationRepo.CreateNotification(db, notification)
}

func (s *notificationService) createEventForAll(db *gorm.DB, userIDs []string, projectID, eventType, title, message string, data map[string]interface{}) error {
	var jsonData datatypes.JSON
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return fmt.Errorf("failed to marshal notification data: %w", err)
		}
		jsonData = datatypes.JSON(raw)
	}

	notifications := make([]*models.Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		notifications = append(notifications, &models.Notification{
			UserID:    userID,
			ProjectID: projectID,
			Type:      eventType,
			Title:     title,
			Message:   message,
			Data:      jsonData,
		})
	}

	return s.notificationRepo.CreateBulkNotifications(db, notifications)
}

func (s *notificationService) buildNotification(req *dto.CreateNotificationRequest) (*models.Notification, error) {
	// Callers that skip the HTTP validator still get the type checked
	if !models.IsValidType(req.Type) {
		return nil, apperrors.ErrInvalidNotificationType
	}

	notification := &models.Notification{
		UserID:    req.UserID,
		ProjectID: req.ProjectID,
		Type:      req.Type,
		Title:     req.Title,
		Message:   req.Message,
		IsRead:    false,
	}

	// Data arrives as a JSON-encoded object string
	if req.Data != "" {
		if !json.Valid([]byte(req.Data)) {
			return nil, apperrors.ErrInvalidNotificationData
		}
		notification.Data = datatypes.JSON(req.Data)
	}

	if req.IdempotencyKey != "" {
		key := req.IdempotencyKey
		notification.IdempotencyKey = &key
	}

	return notification, nil
}

func (s *notificationService) buildNotificationResponse(notification *models.Notification) *dto.NotificationResponse {
	response := &dto.NotificationResponse{
		ID:        notification.ID,
		UserID:    notification.UserID,
		ProjectID: notification.ProjectID,
		Type:      notification.Type,
		Title:     notification.Title,
		Message:   notification.Message,
		IsRead:    notification.IsRead,
		ReadAt:    notification.ReadAt,
		CreatedAt: notification.CreatedAt,
		UpdatedAt: notification.UpdatedAt,
	}

	if len(notification.Data) > 0 {
		response.Data = string(notification.Data)
	}

	return response
}

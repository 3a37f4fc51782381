package repositories

import (
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"sprintboard_backend/internal/models"
)

var (
	ErrNotificationNotFound    = errors.New("notification not found")
	ErrInvalidNotificationData = errors.New("invalid notification data")
)

// NotificationRepository is stateless: every method receives the *gorm.DB
// to run against, so callers can pass the pool or a request-scoped
// transaction.
type NotificationRepository interface {
	// Notification operations
	CreateNotification(db *gorm.DB, notification *models.Notification) error
	CreateBulkNotifications(db *gorm.DB, notifications []*models.Notification) error
	FindNotificationByID(db *gorm.DB, id string) (*models.Notification, error)
	FindByIdempotencyKey(db *gorm.DB, key string) (*models.Notification, error)
	FindUserNotifications(db *gorm.DB, userID string, criteria NotificationCriteria) ([]models.Notification, int64, error)
	MarkAsRead(db *gorm.DB, notificationID string) error
	MarkAllAsRead(db *gorm.DB, userID, projectID string) error
	DeleteNotification(db *gorm.DB, id string) error
	DeleteUserNotifications(db *gorm.DB, userID string) error

	// Notification stats
	GetUserNotificationStats(db *gorm.DB, userID string) (*NotificationStats, error)
	GetUnreadCount(db *gorm.DB, userID string) (int64, error)

	// Maintenance
	CleanOldNotifications(db *gorm.DB, days int) error
}

type NotificationRepositoryImpl struct{}

// Search criteria for notifications
type NotificationCriteria struct {
	UnreadOnly bool      `form:"unread_only"`
	Type       string    `form:"type"`
	ProjectID  string    `form:"project_id"`
	DateFrom   time.Time `form:"date_from"`
	DateTo     time.Time `form:"date_to"`
	Page       int       `form:"page" binding:"min=0"`
	PageSize   int       `form:"page_size" binding:"min=0,max=100"`
}

// Notification statistics
type NotificationStats struct {
	TotalNotifications int64            `json:"total_notifications"`
	UnreadCount        int64            `json:"unread_count"`
	ReadCount          int64            `json:"read_count"`
	ByType             map[string]int64 `json:"by_type"`
	ByProject          map[string]int64 `json:"by_project"`
	TodayCount         int64            `json:"today_count"`
}

func NewNotificationRepository() NotificationRepository {
	return &NotificationRepositoryImpl{}
}

// Notification operations

// CreateNotification inserts a notification. When the notification
// carries an idempotency key and a row with the same key already
// exists, the insert is a no-op and the existing row is loaded back
// into the argument.
func (r *NotificationRepositoryImpl) CreateNotification(db *gorm.DB, notification *models.Notification) error {
	if err := r.validateNotification(notification); err != nil {
		return err
	}

	if notification.IdempotencyKey == nil {
		return db.Create(notification).Error
	}

	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "idempotency_key"}},
		DoNothing: true,
	}).Create(notification)
	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		existing, err := r.FindByIdempotencyKey(db, *notification.IdempotencyKey)
		if err != nil {
			return err
		}
		*notification = *existing
	}

	return nil
}

func (r *NotificationRepositoryImpl) CreateBulkNotifications(db *gorm.DB, notifications []*models.Notification) error {
	if len(notifications) == 0 {
		return nil
	}

	for _, notification := range notifications {
		if err := r.validateNotification(notification); err != nil {
			return err
		}
	}

	return db.CreateInBatches(notifications, 100).Error
}

func (r *NotificationRepositoryImpl) FindNotificationByID(db *gorm.DB, id string) (*models.Notification, error) {
	var notification models.Notification
	err := db.First(&notification, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return &notification, nil
}

func (r *NotificationRepositoryImpl) FindByIdempotencyKey(db *gorm.DB, key string) (*models.Notification, error) {
	var notification models.Notification
	err := db.First(&notification, "idempotency_key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return &notification, nil
}

func (r *NotificationRepositoryImpl) FindUserNotifications(db *gorm.DB, userID string, criteria NotificationCriteria) ([]models.Notification, int64, error) {
	var notifications []models.Notification
	query := db.Where("user_id = ?", userID)

	// Apply filters
	if criteria.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}

	if criteria.Type != "" {
		query = query.Where("type = ?", criteria.Type)
	}

	if criteria.ProjectID != "" {
		query = query.Where("project_id = ?", criteria.ProjectID)
	}

	if !criteria.DateFrom.IsZero() {
		query = query.Where("created_at >= ?", criteria.DateFrom)
	}

	if !criteria.DateTo.IsZero() {
		query = query.Where("created_at <= ?", criteria.DateTo)
	}

	// Get total count
	var total int64
	if err := query.Model(&models.Notification{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	// Newest first; pagination is optional
	query = query.Order("created_at DESC")
	if criteria.PageSize > 0 {
		page := criteria.Page
		if page < 1 {
			page = 1
		}
		query = query.Limit(criteria.PageSize).Offset((page - 1) * criteria.PageSize)
	}

	err := query.Find(&notifications).Error

	return notifications, total, err
}

func (r *NotificationRepositoryImpl) MarkAsRead(db *gorm.DB, notificationID string) error {
	result := db.Model(&models.Notification{}).Where("id = ?", notificationID).Updates(map[string]interface{}{
		"is_read": true,
		"read_at": time.Now(),
	})

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

// MarkAllAsRead marks every unread notification of a user as read,
// optionally scoped to a single project.
func (r *NotificationRepositoryImpl) MarkAllAsRead(db *gorm.DB, userID, projectID string) error {
	query := db.Model(&models.Notification{}).Where("user_id = ? AND is_read = ?", userID, false)

	if projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}

	result := query.Updates(map[string]interface{}{
		"is_read": true,
		"read_at": time.Now(),
	})

	return result.Error
}

func (r *NotificationRepositoryImpl) DeleteNotification(db *gorm.DB, id string) error {
	result := db.Where("id = ?", id).Delete(&models.Notification{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrNotificationNotFound
	}
	return nil
}

func (r *NotificationRepositoryImpl) DeleteUserNotifications(db *gorm.DB, userID string) error {
	return db.Where("user_id = ?", userID).Delete(&models.Notification{}).Error
}

// Notification stats

func (r *NotificationRepositoryImpl) GetUserNotificationStats(db *gorm.DB, userID string) (*NotificationStats, error) {
	var stats NotificationStats
	now := time.Now()
	todayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	// Total notifications
	if err := db.Model(&models.Notification{}).Where("user_id = ?", userID).
		Count(&stats.TotalNotifications).Error; err != nil {
		return nil, err
	}

	// Unread count
	if err := db.Model(&models.Notification{}).Where("user_id = ? AND is_read = ?", userID, false).
		Count(&stats.UnreadCount).Error; err != nil {
		return nil, err
	}

	// Read count
	stats.ReadCount = stats.TotalNotifications - stats.UnreadCount

	// Today count
	if err := db.Model(&models.Notification{}).Where("user_id = ? AND created_at >= ?", userID, todayStart).
		Count(&stats.TodayCount).Error; err != nil {
		return nil, err
	}

	// Count by type
	stats.ByType = make(map[string]int64)
	var typeStats []struct {
		Type  string
		Count int64
	}

	err := db.Model(&models.Notification{}).Where("user_id = ?", userID).
		Select("type, COUNT(*) as count").
		Group("type").Scan(&typeStats).Error

	if err != nil {
		return nil, err
	}

	for _, ts := range typeStats {
		stats.ByType[ts.Type] = ts.Count
	}

	// Count by project (system-wide rows have an empty project_id and
	// are skipped here)
	stats.ByProject = make(map[string]int64)
	var projectStats []struct {
		ProjectID string
		Count     int64
	}

	err = db.Model(&models.Notification{}).
		Where("user_id = ? AND project_id <> ''", userID).
		Select("project_id, COUNT(*) as count").
		Group("project_id").Scan(&projectStats).Error

	if err != nil {
		return nil, err
	}

	for _, ps := range projectStats {
		stats.ByProject[ps.ProjectID] = ps.Count
	}

	return &stats, nil
}

func (r *NotificationRepositoryImpl) GetUnreadCount(db *gorm.DB, userID string) (int64, error) {
	var count int64
	err := db.Model(&models.Notification{}).Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// Maintenance

func (r *NotificationRepositoryImpl) CleanOldNotifications(db *gorm.DB, days int) error {
	cutoffDate := time.Now().AddDate(0, 0, -days)
	return db.Where("is_read = ? AND created_at < ?", true, cutoffDate).
		Delete(&models.Notification{}).Error
}

// Helper methods

func (r *NotificationRepositoryImpl) validateNotification(notification *models.Notification) error {
	if notification.UserID == "" {
		return errors.New("user ID is required")
	}

	if notification.Type == "" {
		return errors.New("notification type is required")
	}

	if notification.Title == "" {
		return errors.New("notification title is required")
	}

	// Validate JSON data if present
	if len(notification.Data) > 0 {
		if !json.Valid(notification.Data) {
			return ErrInvalidNotificationData
		}
	}

	return nil
}

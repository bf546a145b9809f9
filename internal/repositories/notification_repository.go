package repositories

import (
	"errors"
	"time"

	"flulance/internal/models"

	"gorm.io/gorm"
)

var ErrNotificationNotFound = errors.New("notification not found")

type NotificationRepository interface {
	CreateNotification(db *gorm.DB, notification *models.Notification) error
	FindUserNotification(db *gorm.DB, userID, id string) (*models.Notification, error)
	FindUserNotifications(db *gorm.DB, userID string, criteria NotificationCriteria) ([]models.Notification, int64, error)
	GetUnreadCount(db *gorm.DB, userID string) (int64, error)
	MarkAsRead(db *gorm.DB, userID, id string, now time.Time) error
	MarkAllAsRead(db *gorm.DB, userID string, now time.Time) (int64, error)

	FindUndelivered(db *gorm.DB, limit int) ([]models.Notification, error)
	MarkDelivered(db *gorm.DB, ids []string, now time.Time) error
}

type NotificationCriteria struct {
	UnreadOnly bool
	Pagination
}

type NotificationRepositoryImpl struct{}

func NewNotificationRepository() NotificationRepository {
	return &NotificationRepositoryImpl{}
}

func (r *NotificationRepositoryImpl) CreateNotification(db *gorm.DB, notification *models.Notification) error {
	return db.Create(notification).Error
}

func (r *NotificationRepositoryImpl) FindUserNotification(db *gorm.DB, userID, id string) (*models.Notification, error) {
	var notification models.Notification
	err := db.Where("id = ? AND user_id = ?", id, userID).First(&notification).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotificationNotFound
		}
		return nil, err
	}
	return &notification, nil
}

// FindUserNotifications returns the user's notifications newest first.
func (r *NotificationRepositoryImpl) FindUserNotifications(db *gorm.DB, userID string, criteria NotificationCriteria) ([]models.Notification, int64, error) {
	query := db.Model(&models.Notification{}).Where("user_id = ?", userID)
	if criteria.UnreadOnly {
		query = query.Where("is_read = ?", false)
	}
	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var notifications []models.Notification
	err := query.Order("created_at DESC, id DESC").
		Offset(criteria.offset()).
		Limit(criteria.limit()).
		Find(&notifications).Error
	return notifications, total, err
}

func (r *NotificationRepositoryImpl) GetUnreadCount(db *gorm.DB, userID string) (int64, error) {
	var count int64
	err := db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	return count, err
}

// MarkAsRead is idempotent for the owner; a foreign or missing id is not found.
func (r *NotificationRepositoryImpl) MarkAsRead(db *gorm.DB, userID, id string, now time.Time) error {
	if _, err := r.FindUserNotification(db, userID, id); err != nil {
		return err
	}
	return db.Model(&models.Notification{}).
		Where("id = ? AND user_id = ? AND is_read = ?", id, userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now}).Error
}

func (r *NotificationRepositoryImpl) MarkAllAsRead(db *gorm.DB, userID string, now time.Time) (int64, error) {
	result := db.Model(&models.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	return result.RowsAffected, result.Error
}

// FindUndelivered returns the oldest notifications not yet handed to external senders.
func (r *NotificationRepositoryImpl) FindUndelivered(db *gorm.DB, limit int) ([]models.Notification, error) {
	var notifications []models.Notification
	err := db.Where("delivered_at IS NULL").
		Order("created_at ASC, id ASC").
		Limit(limit).
		Find(&notifications).Error
	return notifications, err
}

func (r *NotificationRepositoryImpl) MarkDelivered(db *gorm.DB, ids []string, now time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return db.Model(&models.Notification{}).
		Where("id IN ?", ids).
		Update("delivered_at", now).Error
}

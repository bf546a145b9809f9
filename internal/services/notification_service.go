package services

import (
	"encoding/json"
	"errors"
	"fmt"

	"flulance/internal/clock"
	"flulance/internal/models"
	"flulance/internal/repositories"
	"flulance/internal/services/dto"
	"flulance/pkg/apperrors"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// EmitParams describes one notification. Data is stored as JSON and carries
// the ids of the entities involved.
type EmitParams struct {
	UserID string
	Type   models.NotificationType
	Title  string
	Body   string
	Link   string
	Data   map[string]string
}

type NotificationService interface {
	// Emit appends a notification. Internal only: there is no HTTP route for
	// it. Pass the caller's transaction so it commits or rolls back together
	// with the state change it describes.
	Emit(db *gorm.DB, p EmitParams) (*models.Notification, error)

	GetUserNotifications(db *gorm.DB, userID string, criteria dto.NotificationCriteria) (*dto.NotificationListResponse, error)
	GetUnreadCount(db *gorm.DB, userID string) (int64, error)
	MarkAsRead(db *gorm.DB, userID, notificationID string) (*dto.NotificationResponse, error)
	MarkAllAsRead(db *gorm.DB, userID string) (int64, error)
}

type notificationService struct {
	notificationRepo repositories.NotificationRepository
	clock            clock.Clock
}

func NewNotificationService(notificationRepo repositories.NotificationRepository, clk clock.Clock) NotificationService {
	return &notificationService{
		notificationRepo: notificationRepo,
		clock:            clk,
	}
}

func (s *notificationService) Emit(db *gorm.DB, p EmitParams) (*models.Notification, error) {
	if p.UserID == "" || p.Type == "" || p.Title == "" {
		return nil, errors.New("notification requires user, type and title")
	}

	n := &models.Notification{
		UserID: p.UserID,
		Type:   p.Type,
		Title:  p.Title,
		Body:   p.Body,
	}
	if p.Link != "" {
		link := p.Link
		n.Link = &link
	}
	if len(p.Data) > 0 {
		raw, err := json.Marshal(p.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal notification data: %w", err)
		}
		n.Data = datatypes.JSON(raw)
	}
	now := s.clock.Now()
	n.CreatedAt = now
	n.UpdatedAt = now

	if err := s.notificationRepo.CreateNotification(db, n); err != nil {
		return nil, fmt.Errorf("create notification: %w", err)
	}
	return n, nil
}

func (s *notificationService) GetUserNotifications(db *gorm.DB, userID string, criteria dto.NotificationCriteria) (*dto.NotificationListResponse, error) {
	page, pageSize := normalizePage(criteria.Page, criteria.PageSize)

	items, total, err := s.notificationRepo.FindUserNotifications(db, userID, repositories.NotificationCriteria{
		UnreadOnly: criteria.UnreadOnly,
		Pagination: repositories.Pagination{Page: page, PageSize: pageSize},
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	resp := &dto.NotificationListResponse{
		Notifications: make([]*dto.NotificationResponse, 0, len(items)),
		Total:         total,
		Page:          page,
		PageSize:      pageSize,
	}
	for i := range items {
		resp.Notifications = append(resp.Notifications, buildNotificationResponse(&items[i]))
	}
	return resp, nil
}

func (s *notificationService) GetUnreadCount(db *gorm.DB, userID string) (int64, error) {
	count, err := s.notificationRepo.GetUnreadCount(db, userID)
	if err != nil {
		return 0, apperrors.InternalError(err)
	}
	return count, nil
}

// MarkAsRead is idempotent; ids of other users look exactly like missing ids.
func (s *notificationService) MarkAsRead(db *gorm.DB, userID, notificationID string) (*dto.NotificationResponse, error) {
	err := s.notificationRepo.MarkAsRead(db, userID, notificationID, s.clock.Now())
	if err != nil {
		if errors.Is(err, repositories.ErrNotificationNotFound) {
			return nil, apperrors.ErrNotificationNotFound
		}
		return nil, apperrors.InternalError(err)
	}

	n, err := s.notificationRepo.FindUserNotification(db, userID, notificationID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	return buildNotificationResponse(n), nil
}

func (s *notificationService) MarkAllAsRead(db *gorm.DB, userID string) (int64, error) {
	updated, err := s.notificationRepo.MarkAllAsRead(db, userID, s.clock.Now())
	if err != nil {
		return 0, apperrors.InternalError(err)
	}
	return updated, nil
}

func buildNotificationResponse(n *models.Notification) *dto.NotificationResponse {
	resp := &dto.NotificationResponse{
		ID:        n.ID,
		Type:      n.Type,
		Title:     n.Title,
		Body:      n.Body,
		Link:      n.Link,
		IsRead:    n.IsRead,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
	if len(n.Data) > 0 {
		resp.Data = json.RawMessage(n.Data)
	}
	return resp
}

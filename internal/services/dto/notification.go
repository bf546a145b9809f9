package dto

import (
	"encoding/json"
	"time"

	"flulance/internal/models"
)

type NotificationCriteria struct {
	UnreadOnly bool `form:"unread_only"`
	Page       int  `form:"page"`
	PageSize   int  `form:"page_size"`
}

type NotificationResponse struct {
	ID        string                  `json:"id"`
	Type      models.NotificationType `json:"type"`
	Title     string                  `json:"title"`
	Body      string                  `json:"body"`
	Link      *string                 `json:"link,omitempty"`
	Data      json.RawMessage         `json:"data,omitempty"`
	IsRead    bool                    `json:"is_read"`
	ReadAt    *time.Time              `json:"read_at,omitempty"`
	CreatedAt time.Time               `json:"created_at"`
}

type NotificationListResponse struct {
	Notifications []*NotificationResponse `json:"notifications"`
	Total         int64                   `json:"total"`
	Page          int                     `json:"page"`
	PageSize      int                     `json:"page_size"`
}

type UnreadCountResponse struct {
	UnreadCount int64 `json:"unread_count"`
}

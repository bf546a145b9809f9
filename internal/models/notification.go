package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification is an in-app record of a state change relevant to one user.
// Rows are created only as side effects of other services.
type Notification struct {
	BaseModel
	UserID      string           `gorm:"size:36;not null;index:idx_notifications_user_read,priority:1" json:"user_id"`
	Type        NotificationType `gorm:"size:32;not null" json:"type"`
	Title       string           `gorm:"size:200;not null" json:"title"`
	Body        string           `gorm:"type:text" json:"body"`
	Link        *string          `gorm:"size:512" json:"link,omitempty"`
	Data        datatypes.JSON   `json:"data,omitempty"`
	IsRead      bool             `gorm:"not null;default:false;index:idx_notifications_user_read,priority:2" json:"is_read"`
	ReadAt      *time.Time       `json:"read_at,omitempty"`
	DeliveredAt *time.Time       `gorm:"index" json:"-"`
}

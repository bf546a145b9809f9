package models

import "time"

// DeliveryContact holds where a user wants notifications delivered outside the app.
type DeliveryContact struct {
	UserID         string    `gorm:"size:36;primaryKey" json:"user_id"`
	Email          *string   `gorm:"size:255" json:"email,omitempty"`
	TelegramChatID *int64    `json:"telegram_chat_id,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

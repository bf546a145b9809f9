package dto

import "time"

type UpdateContactRequest struct {
	Email          *string `json:"email" validate:"omitempty,email,max=254"`
	TelegramChatID *int64  `json:"telegram_chat_id" validate:"omitempty,ne=0"`
}

type ContactResponse struct {
	UserID         string     `json:"user_id"`
	Email          *string    `json:"email,omitempty"`
	TelegramChatID *int64     `json:"telegram_chat_id,omitempty"`
	UpdatedAt      *time.Time `json:"updated_at,omitempty"`
}

package chat

import (
	"time"

	"flulance/internal/models"

	"gorm.io/gorm"
)

// MessageAttachment is the single file a message may carry. Kind is derived
// from the detected MIME type at upload time and never changes.
type MessageAttachment struct {
	ID         string                `gorm:"size:36;primaryKey" json:"id"`
	MessageID  string                `gorm:"size:36;not null;uniqueIndex" json:"message_id"`
	UploaderID string                `gorm:"size:36;not null;index" json:"uploader_id"`
	Kind       models.AttachmentKind `gorm:"size:16;not null" json:"kind"`
	MimeType   string                `gorm:"size:128;not null" json:"mime_type"`
	FileName   string                `gorm:"size:255;not null" json:"file_name"`
	Size       int64                 `gorm:"not null" json:"size"`
	Width      *int                  `json:"width,omitempty"`
	Height     *int                  `json:"height,omitempty"`
	StorageKey string                `gorm:"size:512;not null" json:"-"`
	URL        string                `gorm:"size:1024;not null" json:"url"`
	CreatedAt  time.Time             `gorm:"not null" json:"created_at"`
}

func (a *MessageAttachment) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = models.NewID()
	}
	return nil
}

package chat

import (
	"time"

	"flulance/internal/models"
)

// Message is one entry of a match's channel. Text or Attachment must be set.
// IsRead only ever moves false -> true and only the recipient moves it.
// Seq numbers the match's messages in commit order, starting at 1.
type Message struct {
	models.BaseModel
	MatchID  string     `gorm:"size:36;not null;uniqueIndex:idx_messages_match_seq,priority:1" json:"match_id"`
	Seq      int64      `gorm:"not null;uniqueIndex:idx_messages_match_seq,priority:2" json:"seq"`
	SenderID string     `gorm:"size:36;not null;index" json:"sender_id"`
	Text     string     `gorm:"type:text" json:"text"`
	IsRead   bool       `gorm:"not null;default:false" json:"is_read"`
	ReadAt   *time.Time `json:"read_at,omitempty"`

	Attachment *MessageAttachment `gorm:"foreignKey:MessageID" json:"attachment,omitempty"`
}

package dto

import (
	"io"
	"time"

	"flulance/internal/models"
)

type SendMessageRequest struct {
	Text string `json:"text" form:"text" validate:"max=10000"`
}

// AttachmentFile is an uploaded file as handed over by the transport.
// Size is the size declared by the client; the stored size is what was read.
type AttachmentFile struct {
	FileName string
	Size     int64
	Content  io.Reader
}

type MessageQuery struct {
	After string `form:"after"`
	Limit int    `form:"limit" validate:"omitempty,min=1"`
}

type AttachmentResponse struct {
	ID        string                `json:"id"`
	Kind      models.AttachmentKind `json:"kind"`
	MimeType  string                `json:"mime_type"`
	FileName  string                `json:"file_name"`
	Size      int64                 `json:"size"`
	Width     *int                  `json:"width,omitempty"`
	Height    *int                  `json:"height,omitempty"`
	URL       string                `json:"url"`
	CreatedAt time.Time             `json:"created_at"`
}

type MessageResponse struct {
	ID         string              `json:"id"`
	MatchID    string              `json:"match_id"`
	Seq        int64               `json:"seq"`
	SenderID   string              `json:"sender_id"`
	Text       string              `json:"text"`
	Attachment *AttachmentResponse `json:"attachment,omitempty"`
	IsRead     bool                `json:"is_read"`
	ReadAt     *time.Time          `json:"read_at,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
}

type MessageListResponse struct {
	Messages []*MessageResponse `json:"messages"`
	HasMore  bool               `json:"has_more"`
}

// AttachmentContent is an open attachment stream; the caller closes Body.
type AttachmentContent struct {
	FileName string
	MimeType string
	Size     int64
	Body     io.ReadCloser
}

type UpdatedResponse struct {
	Updated int64 `json:"updated"`
}

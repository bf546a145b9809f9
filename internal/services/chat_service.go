package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"flulance/internal/clock"
	"flulance/internal/imageprocessor"
	"flulance/internal/logger"
	"flulance/internal/models"
	"flulance/internal/models/chat"
	"flulance/internal/repositories"
	"flulance/internal/services/dto"
	"flulance/internal/storage"
	"flulance/pkg/apperrors"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/unicode/norm"
	"gorm.io/gorm"
)

const (
	maxMessageLength = 10000
	maxFileNameBytes = 255
	// sniffLen covers content sniffing and image headers behind typical EXIF blocks.
	sniffLen = 64 << 10
)

// ChatConfig holds the channel limits read from configuration.
type ChatConfig struct {
	MaxAttachmentSize    int64
	AllowedTypes         []string // MIME prefixes; empty allows any type
	AllowAfterCompletion bool
	DefaultPageSize      int
	MaxPageSize          int
	PublicURLs           bool // attachment URLs point at the store instead of the API
}

func (c ChatConfig) withDefaults() ChatConfig {
	if c.MaxAttachmentSize <= 0 {
		c.MaxAttachmentSize = 50 << 20
	}
	if c.DefaultPageSize <= 0 {
		c.DefaultPageSize = 200
	}
	if c.MaxPageSize <= 0 {
		c.MaxPageSize = 500
	}
	return c
}

type ChatService interface {
	// SendMessage stores the attachment, if any, before the message row is
	// committed. A store failure leaves nothing behind.
	SendMessage(ctx context.Context, db *gorm.DB, senderID, matchID string, req *dto.SendMessageRequest, file *dto.AttachmentFile) (*dto.MessageResponse, error)
	ListMessages(db *gorm.DB, userID, matchID string, query dto.MessageQuery) (*dto.MessageListResponse, error)
	MarkRead(db *gorm.DB, userID, messageID string) (*dto.MessageResponse, error)
	MarkMatchRead(db *gorm.DB, userID, matchID string) (int64, error)
	GetAttachment(ctx context.Context, db *gorm.DB, userID, attachmentID string) (*dto.AttachmentContent, error)
	GetAttachmentURL(ctx context.Context, db *gorm.DB, userID, attachmentID string, expiry time.Duration) (string, error)
}

type chatService struct {
	chatRepo  repositories.ChatRepository
	matchRepo repositories.MatchRepository
	storage   storage.Storage
	clock     clock.Clock
	cfg       ChatConfig
}

func NewChatService(
	chatRepo repositories.ChatRepository,
	matchRepo repositories.MatchRepository,
	store storage.Storage,
	clk clock.Clock,
	cfg ChatConfig,
) ChatService {
	return &chatService{
		chatRepo:  chatRepo,
		matchRepo: matchRepo,
		storage:   store,
		clock:     clk,
		cfg:       cfg.withDefaults(),
	}
}

func (s *chatService) SendMessage(ctx context.Context, db *gorm.DB, senderID, matchID string, req *dto.SendMessageRequest, file *dto.AttachmentFile) (*dto.MessageResponse, error) {
	match, err := loadMatchForParticipant(db, s.matchRepo, matchID, senderID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOpen(match); err != nil {
		return nil, err
	}

	text := strings.TrimSpace(req.Text)
	if utf8.RuneCountInString(text) > maxMessageLength {
		return nil, apperrors.ValidationError(map[string]string{
			"text": fmt.Sprintf("Must be at most %d characters long", maxMessageLength),
		})
	}
	if text == "" && file == nil {
		return nil, apperrors.ErrEmptyMessage
	}

	message := &chat.Message{
		MatchID:  match.ID,
		SenderID: senderID,
		Text:     text,
	}
	message.ID = models.NewID()

	if file != nil {
		attachment, err := s.storeAttachment(ctx, match.ID, message.ID, senderID, file, s.clock.Now())
		if err != nil {
			return nil, err
		}
		message.Attachment = attachment
	}

	if err := s.persistMessage(db, message); err != nil {
		if message.Attachment != nil {
			s.discardObject(ctx, message.Attachment.StorageKey)
		}
		return nil, err
	}

	logger.CtxInfo(ctx, "message sent",
		"match_id", match.ID,
		"message_id", message.ID,
		"has_attachment", message.Attachment != nil,
	)
	return buildMessageResponse(message), nil
}

func (s *chatService) checkOpen(match *models.Match) error {
	if match.Status == models.MatchStatusCompleted && !s.cfg.AllowAfterCompletion {
		return apperrors.ErrInvalidStatus("match", "Match is completed; the channel is closed", string(match.Status))
	}
	return nil
}

// persistMessage takes the next seq while holding the match row lock, so seq
// order is commit order and a send racing Complete sees the final status.
func (s *chatService) persistMessage(db *gorm.DB, message *chat.Message) error {
	tx, err := beginTx(db)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	match, err := s.matchRepo.LockMatch(tx, message.MatchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return apperrors.ErrMatchNotFound
		}
		return apperrors.InternalError(err)
	}
	if err := s.checkOpen(match); err != nil {
		return err
	}

	now := s.clock.Now()
	message.Seq = match.LastMessageSeq + 1
	message.CreatedAt = now
	message.UpdatedAt = now
	if err := s.matchRepo.SetLastMessageSeq(tx, match.ID, message.Seq); err != nil {
		return apperrors.InternalError(err)
	}
	if err := s.chatRepo.CreateMessage(tx, message); err != nil {
		return apperrors.InternalError(err)
	}
	if message.Attachment != nil {
		if err := s.chatRepo.CreateAttachment(tx, message.Attachment); err != nil {
			return apperrors.InternalError(err)
		}
	}
	return commit(tx)
}

// storeAttachment sniffs the content type from the leading bytes, enforces the
// size ceiling on what is actually read and writes the object.
func (s *chatService) storeAttachment(ctx context.Context, matchID, messageID, uploaderID string, file *dto.AttachmentFile, now time.Time) (*chat.MessageAttachment, error) {
	limit := s.cfg.MaxAttachmentSize
	if file.Size > limit {
		return nil, apperrors.ErrPayloadTooLarge(file.Size, limit)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(file.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, apperrors.NewBadRequestError("Failed to read uploaded file")
	}
	head = head[:n]
	if n == 0 {
		return nil, apperrors.ValidationError(map[string]string{"file": "File is empty"})
	}

	mtype := mimetype.Detect(head)
	mimeType := mtype.String()
	if i := strings.IndexByte(mimeType, ';'); i >= 0 {
		mimeType = mimeType[:i]
	}
	if !s.typeAllowed(mimeType) {
		return nil, apperrors.ErrFileTypeNotAllowed.WithDetails(map[string]string{"mime_type": mimeType})
	}

	attachment := &chat.MessageAttachment{
		ID:         models.NewID(),
		MessageID:  messageID,
		UploaderID: uploaderID,
		Kind:       attachmentKind(mimeType),
		MimeType:   mimeType,
		FileName:   sanitizeFileName(file.FileName, mtype.Extension()),
		CreatedAt:  now,
	}
	if attachment.Kind == models.AttachmentKindImage {
		if dims, ok := imageprocessor.Probe(head); ok {
			attachment.Width = &dims.Width
			attachment.Height = &dims.Height
		}
	}
	attachment.StorageKey = fmt.Sprintf("attachments/%s/%s%s", matchID, attachment.ID, mtype.Extension())

	counter := &limitedCounter{r: io.MultiReader(bytes.NewReader(head), file.Content), limit: limit}
	if err := s.storage.Save(ctx, attachment.StorageKey, counter, mimeType); err != nil {
		s.discardObject(ctx, attachment.StorageKey)
		if errors.Is(err, errTooLarge) || counter.n > limit {
			return nil, apperrors.ErrPayloadTooLarge(counter.n, limit)
		}
		logger.CtxWithError(ctx, "attachment store failed", err, "match_id", matchID, "key", attachment.StorageKey)
		return nil, apperrors.ErrTransientStore(err)
	}
	attachment.Size = counter.n

	url, err := s.attachmentURL(ctx, attachment)
	if err != nil {
		s.discardObject(ctx, attachment.StorageKey)
		return nil, apperrors.ErrTransientStore(err)
	}
	attachment.URL = url
	return attachment, nil
}

func (s *chatService) attachmentURL(ctx context.Context, a *chat.MessageAttachment) (string, error) {
	if s.cfg.PublicURLs {
		return s.storage.GetURL(ctx, a.StorageKey)
	}
	return "/api/v1/attachments/" + a.ID, nil
}

func (s *chatService) typeAllowed(mimeType string) bool {
	if len(s.cfg.AllowedTypes) == 0 {
		return true
	}
	for _, prefix := range s.cfg.AllowedTypes {
		if strings.HasPrefix(mimeType, prefix) {
			return true
		}
	}
	return false
}

// discardObject removes an orphaned object. Failures only get logged: the
// request has already failed for a different reason.
func (s *chatService) discardObject(ctx context.Context, key string) {
	cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.storage.Delete(cleanupCtx, key); err != nil {
		logger.CtxWithError(ctx, "failed to delete orphaned attachment", err, "key", key)
	}
}

func (s *chatService) ListMessages(db *gorm.DB, userID, matchID string, query dto.MessageQuery) (*dto.MessageListResponse, error) {
	match, err := loadMatchForParticipant(db, s.matchRepo, matchID, userID)
	if err != nil {
		return nil, err
	}

	limit := query.Limit
	if limit <= 0 {
		limit = s.cfg.DefaultPageSize
	}
	if limit > s.cfg.MaxPageSize {
		limit = s.cfg.MaxPageSize
	}

	messages, hasMore, err := s.chatRepo.FindMessagesByMatch(db, match.ID, repositories.MessageCriteria{
		AfterID: query.After,
		Limit:   limit,
	})
	if err != nil {
		if errors.Is(err, repositories.ErrCursorNotFound) {
			return nil, apperrors.ValidationError(map[string]string{"after": "Unknown message id"})
		}
		return nil, apperrors.InternalError(err)
	}

	resp := &dto.MessageListResponse{
		Messages: make([]*dto.MessageResponse, 0, len(messages)),
		HasMore:  hasMore,
	}
	for i := range messages {
		resp.Messages = append(resp.Messages, buildMessageResponse(&messages[i]))
	}
	return resp, nil
}

// MarkRead flags a message as read by its recipient. The sender calling it,
// or a repeated call, changes nothing and is not an error.
func (s *chatService) MarkRead(db *gorm.DB, userID, messageID string) (*dto.MessageResponse, error) {
	message, err := s.chatRepo.FindMessageByID(db, messageID)
	if err != nil {
		if errors.Is(err, repositories.ErrMessageNotFound) {
			return nil, apperrors.ErrMessageNotFound
		}
		return nil, apperrors.InternalError(err)
	}
	if _, err := loadMatchForParticipant(db, s.matchRepo, message.MatchID, userID); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	changed, err := s.chatRepo.MarkMessageRead(db, message.ID, userID, now)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if changed {
		message.IsRead = true
		message.ReadAt = &now
	}
	return buildMessageResponse(message), nil
}

func (s *chatService) MarkMatchRead(db *gorm.DB, userID, matchID string) (int64, error) {
	match, err := loadMatchForParticipant(db, s.matchRepo, matchID, userID)
	if err != nil {
		return 0, err
	}
	updated, err := s.chatRepo.MarkMatchRead(db, match.ID, userID, s.clock.Now())
	if err != nil {
		return 0, apperrors.InternalError(err)
	}
	return updated, nil
}

func (s *chatService) GetAttachment(ctx context.Context, db *gorm.DB, userID, attachmentID string) (*dto.AttachmentContent, error) {
	attachment, err := s.authorizeAttachment(db, userID, attachmentID)
	if err != nil {
		return nil, err
	}

	body, err := s.storage.Get(ctx, attachment.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, apperrors.ErrAttachmentNotFound
		}
		return nil, apperrors.ErrTransientStore(err)
	}
	return &dto.AttachmentContent{
		FileName: attachment.FileName,
		MimeType: attachment.MimeType,
		Size:     attachment.Size,
		Body:     body,
	}, nil
}

// GetAttachmentURL returns a short-lived direct link to the stored object.
func (s *chatService) GetAttachmentURL(ctx context.Context, db *gorm.DB, userID, attachmentID string, expiry time.Duration) (string, error) {
	attachment, err := s.authorizeAttachment(db, userID, attachmentID)
	if err != nil {
		return "", err
	}
	url, err := s.storage.GetSignedURL(ctx, attachment.StorageKey, expiry)
	if err != nil {
		return "", apperrors.ErrTransientStore(err)
	}
	return url, nil
}

func (s *chatService) authorizeAttachment(db *gorm.DB, userID, attachmentID string) (*chat.MessageAttachment, error) {
	attachment, err := s.chatRepo.FindAttachmentByID(db, attachmentID)
	if err != nil {
		if errors.Is(err, repositories.ErrAttachmentNotFound) {
			return nil, apperrors.ErrAttachmentNotFound
		}
		return nil, apperrors.InternalError(err)
	}
	message, err := s.chatRepo.FindMessageByID(db, attachment.MessageID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	if _, err := loadMatchForParticipant(db, s.matchRepo, message.MatchID, userID); err != nil {
		return nil, err
	}
	return attachment, nil
}

// ===== helpers =====

var errTooLarge = errors.New("attachment exceeds size limit")

// limitedCounter counts bytes read and fails once more than limit were read.
type limitedCounter struct {
	r     io.Reader
	limit int64
	n     int64
}

func (l *limitedCounter) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.limit {
		return n, errTooLarge
	}
	return n, err
}

func attachmentKind(mimeType string) models.AttachmentKind {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return models.AttachmentKindImage
	case strings.HasPrefix(mimeType, "video/"):
		return models.AttachmentKindVideo
	default:
		return models.AttachmentKindDocument
	}
}

// sanitizeFileName keeps the base name of a client supplied path in NFC form
// with control characters removed.
func sanitizeFileName(name, ext string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)
	name = norm.NFC.String(name)
	name = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, name)
	name = strings.TrimSpace(name)

	if name == "" || name == "." || name == ".." || name == "/" {
		name = "file" + ext
	}
	for len(name) > maxFileNameBytes {
		_, size := utf8.DecodeLastRuneInString(name)
		name = name[:len(name)-size]
	}
	return name
}

func buildMessageResponse(m *chat.Message) *dto.MessageResponse {
	resp := &dto.MessageResponse{
		ID:        m.ID,
		MatchID:   m.MatchID,
		Seq:       m.Seq,
		SenderID:  m.SenderID,
		Text:      m.Text,
		IsRead:    m.IsRead,
		ReadAt:    m.ReadAt,
		CreatedAt: m.CreatedAt,
	}
	if a := m.Attachment; a != nil {
		resp.Attachment = &dto.AttachmentResponse{
			ID:        a.ID,
			Kind:      a.Kind,
			MimeType:  a.MimeType,
			FileName:  a.FileName,
			Size:      a.Size,
			Width:     a.Width,
			Height:    a.Height,
			URL:       a.URL,
			CreatedAt: a.CreatedAt,
		}
	}
	return resp
}

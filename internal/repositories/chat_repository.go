package repositories

import (
	"errors"
	"time"

	"flulance/internal/models/chat"

	"gorm.io/gorm"
)

var (
	ErrMessageNotFound    = errors.New("message not found")
	ErrAttachmentNotFound = errors.New("attachment not found")
	ErrCursorNotFound     = errors.New("cursor message not found")
)

type ChatRepository interface {
	CreateMessage(db *gorm.DB, message *chat.Message) error
	CreateAttachment(db *gorm.DB, attachment *chat.MessageAttachment) error
	FindMessageByID(db *gorm.DB, id string) (*chat.Message, error)
	FindMessagesByMatch(db *gorm.DB, matchID string, criteria MessageCriteria) ([]chat.Message, bool, error)
	FindAttachmentByID(db *gorm.DB, id string) (*chat.MessageAttachment, error)
	MarkMessageRead(db *gorm.DB, messageID, readerID string, now time.Time) (bool, error)
	MarkMatchRead(db *gorm.DB, matchID, readerID string, now time.Time) (int64, error)
	CountUnreadByMatches(db *gorm.DB, matchIDs []string, userID string) (map[string]int64, error)
}

// MessageCriteria selects a contiguous window of a match's message log.
// AfterID excludes the cursor message and everything before it.
type MessageCriteria struct {
	AfterID string
	Limit   int
}

type ChatRepositoryImpl struct{}

func NewChatRepository() ChatRepository {
	return &ChatRepositoryImpl{}
}

func (r *ChatRepositoryImpl) CreateMessage(db *gorm.DB, message *chat.Message) error {
	return db.Omit("Attachment").Create(message).Error
}

func (r *ChatRepositoryImpl) CreateAttachment(db *gorm.DB, attachment *chat.MessageAttachment) error {
	return db.Create(attachment).Error
}

func (r *ChatRepositoryImpl) FindMessageByID(db *gorm.DB, id string) (*chat.Message, error) {
	var message chat.Message
	err := db.Preload("Attachment").Where("id = ?", id).First(&message).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	return &message, nil
}

// FindMessagesByMatch returns messages in seq order. The bool reports whether
// more messages follow the window.
func (r *ChatRepositoryImpl) FindMessagesByMatch(db *gorm.DB, matchID string, criteria MessageCriteria) ([]chat.Message, bool, error) {
	query := db.Preload("Attachment").Where("match_id = ?", matchID)

	if criteria.AfterID != "" {
		var cursor chat.Message
		err := db.Select("id", "seq").
			Where("id = ? AND match_id = ?", criteria.AfterID, matchID).
			First(&cursor).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, false, ErrCursorNotFound
			}
			return nil, false, err
		}
		query = query.Where("seq > ?", cursor.Seq)
	}

	if criteria.Limit > 0 {
		query = query.Limit(criteria.Limit + 1)
	}

	var messages []chat.Message
	if err := query.Order("seq ASC").Find(&messages).Error; err != nil {
		return nil, false, err
	}

	hasMore := false
	if criteria.Limit > 0 && len(messages) > criteria.Limit {
		messages = messages[:criteria.Limit]
		hasMore = true
	}
	return messages, hasMore, nil
}

func (r *ChatRepositoryImpl) FindAttachmentByID(db *gorm.DB, id string) (*chat.MessageAttachment, error) {
	var attachment chat.MessageAttachment
	err := db.Where("id = ?", id).First(&attachment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAttachmentNotFound
		}
		return nil, err
	}
	return &attachment, nil
}

// MarkMessageRead sets the read flag when the reader is not the sender and the
// message is still unread. Returns whether a row changed.
func (r *ChatRepositoryImpl) MarkMessageRead(db *gorm.DB, messageID, readerID string, now time.Time) (bool, error) {
	result := db.Model(&chat.Message{}).
		Where("id = ? AND sender_id <> ? AND is_read = ?", messageID, readerID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

// MarkMatchRead marks every unread message of the match not sent by readerID.
func (r *ChatRepositoryImpl) MarkMatchRead(db *gorm.DB, matchID, readerID string, now time.Time) (int64, error) {
	result := db.Model(&chat.Message{}).
		Where("match_id = ? AND sender_id <> ? AND is_read = ?", matchID, readerID, false).
		Updates(map[string]interface{}{"is_read": true, "read_at": now})
	return result.RowsAffected, result.Error
}

// CountUnreadByMatches counts, per match, messages addressed to userID that are still unread.
func (r *ChatRepositoryImpl) CountUnreadByMatches(db *gorm.DB, matchIDs []string, userID string) (map[string]int64, error) {
	counts := make(map[string]int64, len(matchIDs))
	if len(matchIDs) == 0 {
		return counts, nil
	}

	var rows []struct {
		MatchID string
		Count   int64
	}
	err := db.Model(&chat.Message{}).
		Select("match_id, COUNT(*) AS count").
		Where("match_id IN ? AND sender_id <> ? AND is_read = ?", matchIDs, userID, false).
		Group("match_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.MatchID] = row.Count
	}
	return counts, nil
}

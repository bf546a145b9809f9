package models

import "time"

// Match gates chat access between the brand and the accepted creator.
// Participants never change after creation.
type Match struct {
	BaseModel
	ApplicationID string      `gorm:"size:36;not null;uniqueIndex" json:"application_id"`
	JobID         string      `gorm:"size:36;not null;index" json:"job_id"`
	BrandID       string      `gorm:"size:36;not null;index" json:"brand_id"`
	CreatorID     string      `gorm:"size:36;not null;index" json:"creator_id"`
	Status        MatchStatus `gorm:"size:16;not null;index" json:"status"`
	CompletedAt   *time.Time  `json:"completed_at,omitempty"`
	CompletedBy   *string     `gorm:"size:36" json:"completed_by,omitempty"`
	// LastMessageSeq is the Seq of the newest message; it moves under the row lock.
	LastMessageSeq int64 `gorm:"not null;default:0" json:"-"`

	Job *Job `gorm:"foreignKey:JobID" json:"-"`
}

func (m *Match) IsParticipant(userID string) bool {
	return userID != "" && (m.BrandID == userID || m.CreatorID == userID)
}

// Counterpart returns the other participant, or "" for outsiders.
func (m *Match) Counterpart(userID string) string {
	switch userID {
	case m.BrandID:
		return m.CreatorID
	case m.CreatorID:
		return m.BrandID
	}
	return ""
}

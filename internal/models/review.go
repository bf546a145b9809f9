package models

// Review is left by one participant of a completed match about the other.
type Review struct {
	BaseModel
	MatchID    string `gorm:"size:36;not null;uniqueIndex:idx_reviews_direction" json:"match_id"`
	ReviewerID string `gorm:"size:36;not null;uniqueIndex:idx_reviews_direction" json:"reviewer_id"`
	RevieweeID string `gorm:"size:36;not null;index" json:"reviewee_id"`
	Rating     int    `gorm:"not null" json:"rating"`
	Comment    string `gorm:"type:text" json:"comment"`
}

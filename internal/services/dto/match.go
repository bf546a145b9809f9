package dto

import (
	"time"

	"flulance/internal/models"
)

type MatchCriteria struct {
	Status string `form:"status" validate:"omitempty,is-match-status"`
}

type MatchResponse struct {
	ID            string             `json:"id"`
	ApplicationID string             `json:"application_id"`
	JobID         string             `json:"job_id"`
	BrandID       string             `json:"brand_id"`
	CreatorID     string             `json:"creator_id"`
	Status        models.MatchStatus `json:"status"`
	CreatedAt     time.Time          `json:"created_at"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty"`
	CompletedBy   *string            `json:"completed_by,omitempty"`
	Job           *JobSummary        `json:"job,omitempty"`
	UnreadCount   int64              `json:"unread_count"`
}

type MatchListResponse struct {
	Matches []*MatchResponse `json:"matches"`
	Total   int              `json:"total"`
}

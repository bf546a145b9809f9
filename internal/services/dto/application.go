package dto

import (
	"time"

	"flulance/internal/models"
)

type ApplyRequest struct {
	Message string `json:"message" validate:"max=2000"`
}

type ApplicationResponse struct {
	ID          string                   `json:"id"`
	JobID       string                   `json:"job_id"`
	ApplicantID string                   `json:"applicant_id"`
	Message     string                   `json:"message"`
	Status      models.ApplicationStatus `json:"status"`
	DecidedAt   *time.Time               `json:"decided_at,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	UpdatedAt   time.Time                `json:"updated_at"`
	Job         *JobSummary              `json:"job,omitempty"`
}

type ApplicationListResponse struct {
	Applications []*ApplicationResponse `json:"applications"`
	Total        int64                  `json:"total"`
	Page         int                    `json:"page,omitempty"`
	PageSize     int                    `json:"page_size,omitempty"`
}

// AcceptApplicationResponse is returned by accept: the decided application
// and the match it opened.
type AcceptApplicationResponse struct {
	Application *ApplicationResponse `json:"application"`
	Match       *MatchResponse       `json:"match"`
}

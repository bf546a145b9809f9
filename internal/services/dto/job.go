package dto

import (
	"time"

	"flulance/internal/models"
)

// ---------------- Requests ----------------

type CreateJobRequest struct {
	Title        string             `json:"title" validate:"required,max=200"`
	Description  string             `json:"description" validate:"required,max=5000"`
	Category     models.JobCategory `json:"category" validate:"required,is-job-category"`
	Budget       models.Money       `json:"budget" validate:"positive-decimal"`
	Platforms    []models.Platform  `json:"platforms" validate:"required,min=1,max=7,dive,is-platform"`
	Requirements *RequirementsInput `json:"requirements,omitempty"`
}

// UpdateJobRequest is a patch: nil fields are left untouched.
type UpdateJobRequest struct {
	Title        *string             `json:"title,omitempty" validate:"omitempty,max=200"`
	Description  *string             `json:"description,omitempty" validate:"omitempty,max=5000"`
	Category     *models.JobCategory `json:"category,omitempty" validate:"omitempty,is-job-category"`
	Budget       *models.Money       `json:"budget,omitempty" validate:"omitempty,positive-decimal"`
	Platforms    []models.Platform   `json:"platforms,omitempty" validate:"omitempty,max=7,dive,is-platform"`
	Requirements *RequirementsInput  `json:"requirements,omitempty"`
	Status       *models.JobStatus   `json:"status,omitempty" validate:"omitempty,is-job-status"`
}

// IsFieldEdit reports whether the patch touches anything besides status.
func (r *UpdateJobRequest) IsFieldEdit() bool {
	return r.Title != nil || r.Description != nil || r.Category != nil ||
		r.Budget != nil || r.Platforms != nil || r.Requirements != nil
}

type RequirementsInput struct {
	Deliverables   int                 `json:"deliverables" validate:"min=0,max=100"`
	MinFollowers   int                 `json:"min_followers" validate:"min=0"`
	Deadline       *time.Time          `json:"deadline,omitempty"`
	ContentFormats []string            `json:"content_formats,omitempty" validate:"max=20,dive,min=1,max=50"`
	TargetAudience TargetAudienceInput `json:"target_audience"`
}

type TargetAudienceInput struct {
	AgeMin  int      `json:"age_min" validate:"omitempty,min=13,max=100"`
	AgeMax  int      `json:"age_max" validate:"omitempty,min=13,max=100,gtefield=AgeMin"`
	Regions []string `json:"regions,omitempty" validate:"max=50,dive,min=2,max=64"`
}

type JobCriteria struct {
	BrandID  string `form:"brand_id"`
	Category string `form:"category" validate:"omitempty,is-job-category"`
	Platform string `form:"platform" validate:"omitempty,is-platform"`
	Status   string `form:"status" validate:"omitempty,is-job-status"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

// ---------------- Responses ----------------

type JobResponse struct {
	ID           string                 `json:"id"`
	BrandID      string                 `json:"brand_id"`
	Title        string                 `json:"title"`
	Description  string                 `json:"description"`
	Category     models.JobCategory     `json:"category"`
	Budget       models.Money           `json:"budget"`
	Platforms    []models.Platform      `json:"platforms"`
	Requirements models.JobRequirements `json:"requirements"`
	Status       models.JobStatus       `json:"status"`
	CreatedAt    time.Time              `json:"created_at"`
	UpdatedAt    time.Time              `json:"updated_at"`
}

// JobSummary is the job context embedded in applications and matches.
type JobSummary struct {
	ID       string             `json:"id"`
	BrandID  string             `json:"brand_id"`
	Title    string             `json:"title"`
	Category models.JobCategory `json:"category"`
	Status   models.JobStatus   `json:"status"`
	Deleted  bool               `json:"deleted,omitempty"`
}

type JobListResponse struct {
	Jobs       []*JobResponse `json:"jobs"`
	Total      int64          `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
}

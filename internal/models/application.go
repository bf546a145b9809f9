package models

import (
	"time"

	"gorm.io/gorm"
)

// Application is a creator's request to work a Job.
// At most one non-rejected application may exist per (job, applicant).
type Application struct {
	BaseModel
	JobID       string `gorm:"size:36;not null;uniqueIndex:idx_applications_active,priority:1" json:"job_id"`
	ApplicantID string `gorm:"size:36;not null;index;uniqueIndex:idx_applications_active,priority:2" json:"applicant_id"`
	// Active is true while pending or accepted and NULL once rejected. Unique
	// indexes treat NULLs as distinct on postgres, mysql and sqlite alike, so
	// rejected rows never collide and no partial index is needed.
	Active    *bool             `gorm:"uniqueIndex:idx_applications_active,priority:3" json:"-"`
	Message   string            `gorm:"type:text" json:"message"`
	Status    ApplicationStatus `gorm:"size:16;not null;index" json:"status"`
	DecidedAt *time.Time        `json:"decided_at,omitempty"`

	Job *Job `gorm:"foreignKey:JobID" json:"-"`
}

func (a *Application) BeforeCreate(tx *gorm.DB) error {
	if a.Status != ApplicationStatusRejected {
		active := true
		a.Active = &active
	}
	return a.BaseModel.BeforeCreate(tx)
}

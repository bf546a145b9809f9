package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Job struct {
	BaseModel
	BrandID      string                              `gorm:"size:36;not null;index" json:"brand_id"`
	Title        string                              `gorm:"size:200;not null" json:"title"`
	Description  string                              `gorm:"type:text;not null" json:"description"`
	Category     JobCategory                         `gorm:"size:32;not null;index" json:"category"`
	Budget       Money                               `gorm:"not null" json:"budget"`
	Platforms    []JobPlatform                       `gorm:"foreignKey:JobID;constraint:OnDelete:CASCADE" json:"-"`
	Requirements datatypes.JSONType[JobRequirements] `json:"requirements"`
	Status       JobStatus                           `gorm:"size:16;not null;index" json:"status"`
	DeletedAt    gorm.DeletedAt                      `gorm:"index" json:"-"`
}

// JobPlatform is one entry of a job's platform set.
type JobPlatform struct {
	JobID    string   `gorm:"size:36;primaryKey"`
	Platform Platform `gorm:"size:32;primaryKey;index"`
}

// PlatformList returns the job's platforms in stored order.
func (j *Job) PlatformList() []Platform {
	out := make([]Platform, 0, len(j.Platforms))
	for _, p := range j.Platforms {
		out = append(out, p.Platform)
	}
	return out
}

// JobRequirements replaces the free-form option bag of a listing with named,
// optional fields. Zero values mean "not specified".
type JobRequirements struct {
	Deliverables   int            `json:"deliverables"`
	MinFollowers   int            `json:"min_followers,omitempty"`
	Deadline       *time.Time     `json:"deadline,omitempty"`
	ContentFormats []string       `json:"content_formats,omitempty"`
	TargetAudience TargetAudience `json:"target_audience"`
}

type TargetAudience struct {
	AgeMin  int      `json:"age_min,omitempty"`
	AgeMax  int      `json:"age_max,omitempty"`
	Regions []string `json:"regions,omitempty"`
}

// DefaultJobRequirements is applied when a brand omits requirements.
func DefaultJobRequirements() JobRequirements {
	return JobRequirements{Deliverables: 1}
}

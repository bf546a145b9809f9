package repositories

import (
	"errors"
	"time"

	"flulance/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrJobNotFound = errors.New("job not found")

type JobRepository interface {
	CreateJob(db *gorm.DB, job *models.Job) error
	FindJobByID(db *gorm.DB, id string) (*models.Job, error)
	LockJob(db *gorm.DB, id string) (*models.Job, error)
	FindJobs(db *gorm.DB, criteria JobCriteria) ([]models.Job, int64, error)
	UpdateJobFields(db *gorm.DB, id string, fields map[string]interface{}) error
	UpdateJobStatus(db *gorm.DB, id string, from, to models.JobStatus, now time.Time) (bool, error)
	ReplacePlatforms(db *gorm.DB, jobID string, platforms []models.Platform) error
	DeleteJob(db *gorm.DB, id string) error
}

type JobCriteria struct {
	BrandID  string
	Category models.JobCategory
	Platform models.Platform
	Status   models.JobStatus
	Pagination
}

type JobRepositoryImpl struct{}

func NewJobRepository() JobRepository {
	return &JobRepositoryImpl{}
}

func (r *JobRepositoryImpl) CreateJob(db *gorm.DB, job *models.Job) error {
	return db.Create(job).Error
}

func (r *JobRepositoryImpl) FindJobByID(db *gorm.DB, id string) (*models.Job, error) {
	return findJob(db, id)
}

// LockJob reads the job with FOR UPDATE. Status changes and new applications
// for the job serialize on this lock until the transaction ends.
func (r *JobRepositoryImpl) LockJob(db *gorm.DB, id string) (*models.Job, error) {
	return findJob(db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}), id)
}

func findJob(db *gorm.DB, id string) (*models.Job, error) {
	var job models.Job
	err := db.Preload("Platforms").Where("id = ?", id).First(&job).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &job, nil
}

func (r *JobRepositoryImpl) FindJobs(db *gorm.DB, criteria JobCriteria) ([]models.Job, int64, error) {
	query := db.Model(&models.Job{})

	if criteria.BrandID != "" {
		query = query.Where("brand_id = ?", criteria.BrandID)
	}
	if criteria.Category != "" {
		query = query.Where("category = ?", criteria.Category)
	}
	if criteria.Status != "" {
		query = query.Where("status = ?", criteria.Status)
	}
	if criteria.Platform != "" {
		query = query.Where("EXISTS (SELECT 1 FROM job_platforms jp WHERE jp.job_id = jobs.id AND jp.platform = ?)", criteria.Platform)
	}

	query = query.Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var jobs []models.Job
	err := query.Preload("Platforms").
		Order("created_at DESC, id DESC").
		Offset(criteria.offset()).
		Limit(criteria.limit()).
		Find(&jobs).Error
	return jobs, total, err
}

func (r *JobRepositoryImpl) UpdateJobFields(db *gorm.DB, id string, fields map[string]interface{}) error {
	result := db.Model(&models.Job{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// UpdateJobStatus moves the job from one status to another only if it is
// still in the expected status. Returns false when nothing matched.
func (r *JobRepositoryImpl) UpdateJobStatus(db *gorm.DB, id string, from, to models.JobStatus, now time.Time) (bool, error) {
	result := db.Model(&models.Job{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]interface{}{"status": to, "updated_at": now})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

func (r *JobRepositoryImpl) ReplacePlatforms(db *gorm.DB, jobID string, platforms []models.Platform) error {
	if err := db.Where("job_id = ?", jobID).Delete(&models.JobPlatform{}).Error; err != nil {
		return err
	}
	rows := make([]models.JobPlatform, 0, len(platforms))
	for _, p := range platforms {
		rows = append(rows, models.JobPlatform{JobID: jobID, Platform: p})
	}
	if len(rows) == 0 {
		return nil
	}
	return db.Create(&rows).Error
}

// DeleteJob soft-deletes the job. Matches keep referencing it for display.
func (r *JobRepositoryImpl) DeleteJob(db *gorm.DB, id string) error {
	result := db.Where("id = ?", id).Delete(&models.Job{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrJobNotFound
	}
	return nil
}

package repositories

import (
	"errors"
	"time"

	"flulance/internal/models"

	"gorm.io/gorm"
)

var ErrApplicationNotFound = errors.New("application not found")

type ApplicationRepository interface {
	CreateApplication(db *gorm.DB, app *models.Application) error
	FindApplicationByID(db *gorm.DB, id string) (*models.Application, error)
	FindActiveApplication(db *gorm.DB, jobID, applicantID string) (*models.Application, error)
	FindApplicationsByJob(db *gorm.DB, jobID string) ([]models.Application, error)
	FindApplicationsByApplicant(db *gorm.DB, applicantID string, page Pagination) ([]models.Application, int64, error)
	FindPendingByJob(db *gorm.DB, jobID string) ([]models.Application, error)
	TransitionStatus(db *gorm.DB, id string, from, to models.ApplicationStatus, now time.Time) (bool, error)
}

type ApplicationRepositoryImpl struct{}

func NewApplicationRepository() ApplicationRepository {
	return &ApplicationRepositoryImpl{}
}

func (r *ApplicationRepositoryImpl) CreateApplication(db *gorm.DB, app *models.Application) error {
	return db.Create(app).Error
}

func (r *ApplicationRepositoryImpl) FindApplicationByID(db *gorm.DB, id string) (*models.Application, error) {
	var app models.Application
	err := db.Preload("Job").Where("id = ?", id).First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}
	return &app, nil
}

// FindActiveApplication returns the pending or accepted application of the
// applicant for the job, if any.
func (r *ApplicationRepositoryImpl) FindActiveApplication(db *gorm.DB, jobID, applicantID string) (*models.Application, error) {
	var app models.Application
	err := db.Where("job_id = ? AND applicant_id = ? AND status <> ?", jobID, applicantID, models.ApplicationStatusRejected).
		First(&app).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrApplicationNotFound
		}
		return nil, err
	}
	return &app, nil
}

func (r *ApplicationRepositoryImpl) FindApplicationsByJob(db *gorm.DB, jobID string) ([]models.Application, error) {
	var apps []models.Application
	err := db.Where("job_id = ?", jobID).Order("created_at ASC, id ASC").Find(&apps).Error
	return apps, err
}

func (r *ApplicationRepositoryImpl) FindApplicationsByApplicant(db *gorm.DB, applicantID string, page Pagination) ([]models.Application, int64, error) {
	query := db.Model(&models.Application{}).Where("applicant_id = ?", applicantID).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var apps []models.Application
	err := query.Preload("Job", func(db *gorm.DB) *gorm.DB { return db.Unscoped() }).
		Order("created_at DESC, id DESC").
		Offset(page.offset()).
		Limit(page.limit()).
		Find(&apps).Error
	return apps, total, err
}

func (r *ApplicationRepositoryImpl) FindPendingByJob(db *gorm.DB, jobID string) ([]models.Application, error) {
	var apps []models.Application
	err := db.Where("job_id = ? AND status = ?", jobID, models.ApplicationStatusPending).
		Order("created_at ASC, id ASC").
		Find(&apps).Error
	return apps, err
}

// TransitionStatus is the single write path for application status. The
// update only applies while the row is still in the from status, so two
// concurrent deciders cannot both succeed. Rejection frees the active slot.
func (r *ApplicationRepositoryImpl) TransitionStatus(db *gorm.DB, id string, from, to models.ApplicationStatus, now time.Time) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"decided_at": now,
		"updated_at": now,
	}
	if to == models.ApplicationStatusRejected {
		updates["active"] = nil
	}
	result := db.Model(&models.Application{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

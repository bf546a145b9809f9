package services

import (
	"errors"
	"fmt"
	"time"

	"flulance/internal/clock"
	"flulance/internal/models"
	"flulance/internal/repositories"
	"flulance/internal/services/dto"
	"flulance/pkg/apperrors"

	"gorm.io/gorm"
)

type ApplicationService interface {
	Apply(db *gorm.DB, applicantID, jobID string, req *dto.ApplyRequest) (*dto.ApplicationResponse, error)
	Accept(db *gorm.DB, brandID, applicationID string) (*dto.AcceptApplicationResponse, error)
	Reject(db *gorm.DB, brandID, applicationID string) (*dto.ApplicationResponse, error)
	ListJobApplications(db *gorm.DB, brandID, jobID string) (*dto.ApplicationListResponse, error)
	ListMyApplications(db *gorm.DB, applicantID string, page, pageSize int) (*dto.ApplicationListResponse, error)
}

type applicationService struct {
	jobRepo             repositories.JobRepository
	applicationRepo     repositories.ApplicationRepository
	matchRepo           repositories.MatchRepository
	notificationService NotificationService
	clock               clock.Clock
}

func NewApplicationService(
	jobRepo repositories.JobRepository,
	applicationRepo repositories.ApplicationRepository,
	matchRepo repositories.MatchRepository,
	notificationService NotificationService,
	clk clock.Clock,
) ApplicationService {
	return &applicationService{
		jobRepo:             jobRepo,
		applicationRepo:     applicationRepo,
		matchRepo:           matchRepo,
		notificationService: notificationService,
		clock:               clk,
	}
}

// Apply creates a pending application. A previous rejected application does
// not block a new one; a pending or accepted one does.
func (s *applicationService) Apply(db *gorm.DB, applicantID, jobID string, req *dto.ApplyRequest) (*dto.ApplicationResponse, error) {
	tx, err := beginTx(db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	job, err := lockJob(tx, s.jobRepo, jobID)
	if err != nil {
		return nil, err
	}
	if job.BrandID == applicantID {
		return nil, apperrors.ErrOwnJobApplication
	}
	if job.Status != models.JobStatusOpen {
		return nil, apperrors.ErrInvalidStatus("job", "Job is not open for applications", string(job.Status))
	}

	_, err = s.applicationRepo.FindActiveApplication(tx, jobID, applicantID)
	switch {
	case err == nil:
		return nil, apperrors.ErrDuplicateApplication
	case !errors.Is(err, repositories.ErrApplicationNotFound):
		return nil, apperrors.InternalError(err)
	}

	now := s.clock.Now()
	app := &models.Application{
		JobID:       jobID,
		ApplicantID: applicantID,
		Message:     req.Message,
		Status:      models.ApplicationStatusPending,
	}
	app.CreatedAt = now
	app.UpdatedAt = now

	if err := s.applicationRepo.CreateApplication(tx, app); err != nil {
		if repositories.IsDuplicateKey(err) {
			return nil, apperrors.ErrDuplicateApplication
		}
		return nil, apperrors.InternalError(err)
	}

	_, err = s.notificationService.Emit(tx, EmitParams{
		UserID: job.BrandID,
		Type:   models.NotificationApplicationReceived,
		Title:  "New application",
		Body:   fmt.Sprintf("A creator applied to %q.", job.Title),
		Link:   fmt.Sprintf("/jobs/%s/applications", job.ID),
		Data:   map[string]string{"job_id": job.ID, "application_id": app.ID},
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	if err := commit(tx); err != nil {
		return nil, err
	}
	app.Job = job
	return buildApplicationResponse(app), nil
}

// Accept moves a pending application to accepted, creates its match and
// notifies the creator. All three happen in one transaction; the status
// update is conditional, so of two concurrent accepts only one gets a row.
// The job row is locked first, so a concurrent close either finishes before
// (and has rejected the application) or waits for the accept.
func (s *applicationService) Accept(db *gorm.DB, brandID, applicationID string) (*dto.AcceptApplicationResponse, error) {
	tx, err := beginTx(db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	app, err := s.loadForDecision(tx, brandID, applicationID)
	if err != nil {
		return nil, err
	}
	job, err := lockJob(tx, s.jobRepo, app.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status == models.JobStatusClosed {
		return nil, apperrors.ErrInvalidStatus("job", "Job is closed", string(job.Status))
	}
	app.Job = job

	now := s.clock.Now()
	if err := s.transition(tx, app, models.ApplicationStatusAccepted, now); err != nil {
		return nil, err
	}

	match := &models.Match{
		ApplicationID: app.ID,
		JobID:         app.JobID,
		BrandID:       app.Job.BrandID,
		CreatorID:     app.ApplicantID,
		Status:        models.MatchStatusActive,
	}
	match.CreatedAt = now
	match.UpdatedAt = now

	if err := s.matchRepo.CreateMatch(tx, match); err != nil {
		if repositories.IsDuplicateKey(err) {
			return nil, apperrors.ErrInvalidStatus("application", "Application is already accepted", string(models.ApplicationStatusAccepted))
		}
		return nil, apperrors.InternalError(err)
	}

	_, err = s.notificationService.Emit(tx, EmitParams{
		UserID: app.ApplicantID,
		Type:   models.NotificationApplicationAccepted,
		Title:  "Application accepted",
		Body:   fmt.Sprintf("Your application to %q was accepted. You can now chat with the brand.", app.Job.Title),
		Link:   "/matches/" + match.ID,
		Data:   map[string]string{"job_id": app.JobID, "application_id": app.ID, "match_id": match.ID},
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	if err := commit(tx); err != nil {
		return nil, err
	}

	match.Job = app.Job
	return &dto.AcceptApplicationResponse{
		Application: buildApplicationResponse(app),
		Match:       buildMatchResponse(match, 0),
	}, nil
}

func (s *applicationService) Reject(db *gorm.DB, brandID, applicationID string) (*dto.ApplicationResponse, error) {
	tx, err := beginTx(db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	app, err := s.loadForDecision(tx, brandID, applicationID)
	if err != nil {
		return nil, err
	}

	if err := s.transition(tx, app, models.ApplicationStatusRejected, s.clock.Now()); err != nil {
		return nil, err
	}

	_, err = s.notificationService.Emit(tx, EmitParams{
		UserID: app.ApplicantID,
		Type:   models.NotificationApplicationRejected,
		Title:  "Application declined",
		Body:   fmt.Sprintf("Your application to %q was declined.", app.Job.Title),
		Link:   "/applications/" + app.ID,
		Data:   map[string]string{"job_id": app.JobID, "application_id": app.ID},
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	if err := commit(tx); err != nil {
		return nil, err
	}
	return buildApplicationResponse(app), nil
}

func (s *applicationService) ListJobApplications(db *gorm.DB, brandID, jobID string) (*dto.ApplicationListResponse, error) {
	job, err := loadJob(db, s.jobRepo, jobID)
	if err != nil {
		return nil, err
	}
	if job.BrandID != brandID {
		return nil, apperrors.ErrNotJobOwner
	}

	apps, err := s.applicationRepo.FindApplicationsByJob(db, jobID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	resp := &dto.ApplicationListResponse{
		Applications: make([]*dto.ApplicationResponse, 0, len(apps)),
		Total:        int64(len(apps)),
	}
	for i := range apps {
		resp.Applications = append(resp.Applications, buildApplicationResponse(&apps[i]))
	}
	return resp, nil
}

func (s *applicationService) ListMyApplications(db *gorm.DB, applicantID string, page, pageSize int) (*dto.ApplicationListResponse, error) {
	page, pageSize = normalizePage(page, pageSize)

	apps, total, err := s.applicationRepo.FindApplicationsByApplicant(db, applicantID,
		repositories.Pagination{Page: page, PageSize: pageSize})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	resp := &dto.ApplicationListResponse{
		Applications: make([]*dto.ApplicationResponse, 0, len(apps)),
		Total:        total,
		Page:         page,
		PageSize:     pageSize,
	}
	for i := range apps {
		resp.Applications = append(resp.Applications, buildApplicationResponse(&apps[i]))
	}
	return resp, nil
}

// loadForDecision checks existence, ownership and the pending state, in that order.
func (s *applicationService) loadForDecision(tx *gorm.DB, brandID, applicationID string) (*models.Application, error) {
	app, err := s.applicationRepo.FindApplicationByID(tx, applicationID)
	if err != nil {
		if errors.Is(err, repositories.ErrApplicationNotFound) {
			return nil, apperrors.ErrApplicationNotFound
		}
		return nil, apperrors.InternalError(err)
	}
	if app.Job == nil {
		// The job was deleted; its pending applications were rejected with it.
		return nil, apperrors.ErrJobNotFound
	}
	if app.Job.BrandID != brandID {
		return nil, apperrors.ErrNotJobOwner
	}
	if app.Status != models.ApplicationStatusPending {
		return nil, apperrors.ErrInvalidStatus("application", "Application has already been decided", string(app.Status))
	}
	return app, nil
}

// transition applies the conditional pending -> to update and reports the
// status another writer left behind when it loses.
func (s *applicationService) transition(tx *gorm.DB, app *models.Application, to models.ApplicationStatus, now time.Time) error {
	ok, err := s.applicationRepo.TransitionStatus(tx, app.ID, models.ApplicationStatusPending, to, now)
	if err != nil {
		return apperrors.InternalError(err)
	}
	if !ok {
		current := string(app.Status)
		if fresh, err := s.applicationRepo.FindApplicationByID(tx, app.ID); err == nil {
			current = string(fresh.Status)
		}
		return apperrors.ErrInvalidStatus("application", "Application has already been decided", current)
	}

	app.Status = to
	app.DecidedAt = &now
	app.UpdatedAt = now
	return nil
}

func buildApplicationResponse(app *models.Application) *dto.ApplicationResponse {
	return &dto.ApplicationResponse{
		ID:          app.ID,
		JobID:       app.JobID,
		ApplicantID: app.ApplicantID,
		Message:     app.Message,
		Status:      app.Status,
		DecidedAt:   app.DecidedAt,
		CreatedAt:   app.CreatedAt,
		UpdatedAt:   app.UpdatedAt,
		Job:         buildJobSummary(app.Job),
	}
}

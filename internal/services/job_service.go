package services

import (
	"fmt"
	"strings"
	"time"

	"flulance/internal/clock"
	"flulance/internal/logger"
	"flulance/internal/models"
	"flulance/internal/repositories"
	"flulance/internal/services/dto"
	"flulance/pkg/apperrors"

	mapset "github.com/deckarep/golang-set/v2"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type JobService interface {
	CreateJob(db *gorm.DB, brandID string, req *dto.CreateJobRequest) (*dto.JobResponse, error)
	GetJob(db *gorm.DB, jobID string) (*dto.JobResponse, error)
	ListJobs(db *gorm.DB, criteria dto.JobCriteria) (*dto.JobListResponse, error)
	UpdateJob(db *gorm.DB, brandID, jobID string, req *dto.UpdateJobRequest) (*dto.JobResponse, error)
	DeleteJob(db *gorm.DB, brandID, jobID string) error
}

type jobService struct {
	jobRepo             repositories.JobRepository
	applicationRepo     repositories.ApplicationRepository
	notificationService NotificationService
	clock               clock.Clock
}

func NewJobService(
	jobRepo repositories.JobRepository,
	applicationRepo repositories.ApplicationRepository,
	notificationService NotificationService,
	clk clock.Clock,
) JobService {
	return &jobService{
		jobRepo:             jobRepo,
		applicationRepo:     applicationRepo,
		notificationService: notificationService,
		clock:               clk,
	}
}

func (s *jobService) CreateJob(db *gorm.DB, brandID string, req *dto.CreateJobRequest) (*dto.JobResponse, error) {
	title := strings.TrimSpace(req.Title)
	description := strings.TrimSpace(req.Description)

	problems := map[string]string{}
	if title == "" {
		problems["title"] = "This field is required"
	}
	if description == "" {
		problems["description"] = "This field is required"
	}
	if !req.Category.IsValid() {
		problems["category"] = "Unknown job category"
	}
	if req.Budget <= 0 {
		problems["budget"] = "Must be a positive amount"
	}
	platforms, msg := normalizePlatforms(req.Platforms)
	if msg != "" {
		problems["platforms"] = msg
	}
	if len(problems) > 0 {
		return nil, apperrors.ValidationError(problems)
	}

	requirements := models.DefaultJobRequirements()
	if req.Requirements != nil {
		requirements = toJobRequirements(req.Requirements)
	}

	now := s.clock.Now()
	job := &models.Job{
		BrandID:      brandID,
		Title:        title,
		Description:  description,
		Category:     req.Category,
		Budget:       req.Budget,
		Platforms:    toJobPlatforms(platforms),
		Requirements: datatypes.NewJSONType(requirements),
		Status:       models.JobStatusOpen,
	}
	job.CreatedAt = now
	job.UpdatedAt = now

	if err := s.jobRepo.CreateJob(db, job); err != nil {
		return nil, apperrors.InternalError(err)
	}
	return buildJobResponse(job), nil
}

func (s *jobService) GetJob(db *gorm.DB, jobID string) (*dto.JobResponse, error) {
	job, err := loadJob(db, s.jobRepo, jobID)
	if err != nil {
		return nil, err
	}
	return buildJobResponse(job), nil
}

func (s *jobService) ListJobs(db *gorm.DB, criteria dto.JobCriteria) (*dto.JobListResponse, error) {
	page, pageSize := normalizePage(criteria.Page, criteria.PageSize)

	jobs, total, err := s.jobRepo.FindJobs(db, repositories.JobCriteria{
		BrandID:    criteria.BrandID,
		Category:   models.JobCategory(criteria.Category),
		Platform:   models.Platform(criteria.Platform),
		Status:     models.JobStatus(criteria.Status),
		Pagination: repositories.Pagination{Page: page, PageSize: pageSize},
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	resp := &dto.JobListResponse{
		Jobs:       make([]*dto.JobResponse, 0, len(jobs)),
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: totalPages(total, pageSize),
	}
	for i := range jobs {
		resp.Jobs = append(resp.Jobs, buildJobResponse(&jobs[i]))
	}
	return resp, nil
}

// UpdateJob applies a patch. Field edits are refused once the job is closed;
// status changes follow the job lifecycle. Closing a job rejects its pending
// applications in the same transaction.
func (s *jobService) UpdateJob(db *gorm.DB, brandID, jobID string, req *dto.UpdateJobRequest) (*dto.JobResponse, error) {
	tx, err := beginTx(db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	job, err := lockJob(tx, s.jobRepo, jobID)
	if err != nil {
		return nil, err
	}
	if job.BrandID != brandID {
		return nil, apperrors.ErrNotJobOwner
	}

	now := s.clock.Now()

	if req.IsFieldEdit() {
		if job.Status == models.JobStatusClosed {
			return nil, apperrors.ErrInvalidStatus("job", "Closed jobs cannot be edited", string(job.Status))
		}
		if err := s.applyFieldEdits(tx, job, req, now); err != nil {
			return nil, err
		}
	}

	if req.Status != nil && *req.Status != job.Status {
		next := *req.Status
		if !job.Status.CanTransitionTo(next) {
			return nil, apperrors.ErrInvalidStatus("job",
				fmt.Sprintf("Job cannot move from %s to %s", job.Status, next), string(job.Status))
		}
		ok, err := s.jobRepo.UpdateJobStatus(tx, job.ID, job.Status, next, now)
		if err != nil {
			return nil, apperrors.InternalError(err)
		}
		if !ok {
			current, _ := s.jobRepo.FindJobByID(tx, job.ID)
			status := string(job.Status)
			if current != nil {
				status = string(current.Status)
			}
			return nil, apperrors.ErrInvalidStatus("job", "Job status changed concurrently", status)
		}
		if next == models.JobStatusClosed {
			if err := s.rejectPending(tx, job, now); err != nil {
				return nil, err
			}
		}
	}

	updated, err := loadJob(tx, s.jobRepo, job.ID)
	if err != nil {
		return nil, err
	}
	if err := commit(tx); err != nil {
		return nil, err
	}
	return buildJobResponse(updated), nil
}

func (s *jobService) applyFieldEdits(tx *gorm.DB, job *models.Job, req *dto.UpdateJobRequest, now time.Time) error {
	fields := map[string]interface{}{}
	problems := map[string]string{}

	if req.Title != nil {
		if title := strings.TrimSpace(*req.Title); title == "" {
			problems["title"] = "Must not be empty"
		} else {
			fields["title"] = title
		}
	}
	if req.Description != nil {
		if description := strings.TrimSpace(*req.Description); description == "" {
			problems["description"] = "Must not be empty"
		} else {
			fields["description"] = description
		}
	}
	if req.Category != nil {
		if !req.Category.IsValid() {
			problems["category"] = "Unknown job category"
		} else {
			fields["category"] = *req.Category
		}
	}
	if req.Budget != nil {
		if *req.Budget <= 0 {
			problems["budget"] = "Must be a positive amount"
		} else {
			fields["budget"] = *req.Budget
		}
	}
	if req.Requirements != nil {
		fields["requirements"] = datatypes.NewJSONType(toJobRequirements(req.Requirements))
	}

	var platforms []models.Platform
	if req.Platforms != nil {
		var msg string
		platforms, msg = normalizePlatforms(req.Platforms)
		if msg != "" {
			problems["platforms"] = msg
		}
	}

	if len(problems) > 0 {
		return apperrors.ValidationError(problems)
	}

	fields["updated_at"] = now
	if err := s.jobRepo.UpdateJobFields(tx, job.ID, fields); err != nil {
		return apperrors.InternalError(err)
	}
	if platforms != nil {
		if err := s.jobRepo.ReplacePlatforms(tx, job.ID, platforms); err != nil {
			return apperrors.InternalError(err)
		}
	}
	return nil
}

// DeleteJob rejects every pending application, notifies the applicants and
// soft-deletes the job, all in one transaction. Matches keep pointing at the
// deleted job.
func (s *jobService) DeleteJob(db *gorm.DB, brandID, jobID string) error {
	tx, err := beginTx(db)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	job, err := lockJob(tx, s.jobRepo, jobID)
	if err != nil {
		return err
	}
	if job.BrandID != brandID {
		return apperrors.ErrNotJobOwner
	}

	if err := s.rejectPending(tx, job, s.clock.Now()); err != nil {
		return err
	}
	if err := s.jobRepo.DeleteJob(tx, job.ID); err != nil {
		return apperrors.InternalError(err)
	}
	return commit(tx)
}

func (s *jobService) rejectPending(tx *gorm.DB, job *models.Job, now time.Time) error {
	pending, err := s.applicationRepo.FindPendingByJob(tx, job.ID)
	if err != nil {
		return apperrors.InternalError(err)
	}

	for _, app := range pending {
		ok, err := s.applicationRepo.TransitionStatus(tx, app.ID,
			models.ApplicationStatusPending, models.ApplicationStatusRejected, now)
		if err != nil {
			return apperrors.InternalError(err)
		}
		if !ok {
			continue
		}
		_, err = s.notificationService.Emit(tx, EmitParams{
			UserID: app.ApplicantID,
			Type:   models.NotificationJobClosed,
			Title:  "Job closed",
			Body:   fmt.Sprintf("%q is no longer accepting applications.", job.Title),
			Link:   "/applications/" + app.ID,
			Data:   map[string]string{"job_id": job.ID, "application_id": app.ID},
		})
		if err != nil {
			return apperrors.InternalError(err)
		}
	}

	if len(pending) > 0 {
		logger.Info("pending applications rejected", "job_id", job.ID, "count", len(pending))
	}
	return nil
}

// normalizePlatforms drops duplicates keeping first occurrence order and
// reports the first problem as a message.
func normalizePlatforms(in []models.Platform) ([]models.Platform, string) {
	if len(in) == 0 {
		return nil, "At least one platform is required"
	}
	seen := mapset.NewThreadUnsafeSet[models.Platform]()
	out := make([]models.Platform, 0, len(in))
	for _, p := range in {
		p = models.Platform(strings.ToLower(strings.TrimSpace(string(p))))
		if !p.IsValid() {
			return nil, fmt.Sprintf("Unknown platform %q", p)
		}
		if seen.Add(p) {
			out = append(out, p)
		}
	}
	return out, ""
}

func toJobPlatforms(platforms []models.Platform) []models.JobPlatform {
	out := make([]models.JobPlatform, 0, len(platforms))
	for _, p := range platforms {
		out = append(out, models.JobPlatform{Platform: p})
	}
	return out
}

func toJobRequirements(in *dto.RequirementsInput) models.JobRequirements {
	return models.JobRequirements{
		Deliverables:   in.Deliverables,
		MinFollowers:   in.MinFollowers,
		Deadline:       in.Deadline,
		ContentFormats: in.ContentFormats,
		TargetAudience: models.TargetAudience{
			AgeMin:  in.TargetAudience.AgeMin,
			AgeMax:  in.TargetAudience.AgeMax,
			Regions: in.TargetAudience.Regions,
		},
	}
}

func buildJobResponse(job *models.Job) *dto.JobResponse {
	platforms := job.PlatformList()
	if platforms == nil {
		platforms = []models.Platform{}
	}
	return &dto.JobResponse{
		ID:           job.ID,
		BrandID:      job.BrandID,
		Title:        job.Title,
		Description:  job.Description,
		Category:     job.Category,
		Budget:       job.Budget,
		Platforms:    platforms,
		Requirements: job.Requirements.Data(),
		Status:       job.Status,
		CreatedAt:    job.CreatedAt,
		UpdatedAt:    job.UpdatedAt,
	}
}

func buildJobSummary(job *models.Job) *dto.JobSummary {
	if job == nil {
		return nil
	}
	return &dto.JobSummary{
		ID:       job.ID,
		BrandID:  job.BrandID,
		Title:    job.Title,
		Category: job.Category,
		Status:   job.Status,
		Deleted:  job.DeletedAt.Valid,
	}
}

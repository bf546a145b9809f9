package services

import (
	"net/http"
	"testing"

	"flulance/internal/models"
	"flulance/internal/repositories"
	"flulance/internal/services/dto"
	"flulance/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// closingJobs closes the job just before the next row lock is granted, which
// is what a close committing first looks like to the waiting transaction.
type closingJobs struct {
	repositories.JobRepository
	closeNext bool
	locks     int
}

func (r *closingJobs) LockJob(db *gorm.DB, id string) (*models.Job, error) {
	r.locks++
	if r.closeNext {
		r.closeNext = false
		if err := db.Model(&models.Job{}).Where("id = ?", id).Update("status", models.JobStatusClosed).Error; err != nil {
			return nil, err
		}
	}
	return r.JobRepository.LockJob(db, id)
}

// Every path that checks the job status and then writes does so under the
// job row lock, so the check sees what a concurrent close committed.
func TestJobWriters_CheckStatusUnderLock(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	jobs := &closingJobs{JobRepository: env.repos.Jobs}
	apps := NewApplicationService(jobs, env.repos.Applications, env.repos.Matches, env.svc.NotificationService, env.clock)
	jobSvc := NewJobService(jobs, env.repos.Applications, env.svc.NotificationService, env.clock)

	job := env.createJob(t)
	pending := env.apply(t, job.ID, otherID)

	jobs.closeNext = true
	_, err := apps.Apply(env.db, creatorID, job.ID, &dto.ApplyRequest{})
	appErr := requireAppError(t, err, apperrors.CodeInvalidStatus, http.StatusConflict)
	assert.Equal(t, "closed", currentStatus(t, appErr))

	jobs.closeNext = true
	_, err = apps.Accept(env.db, brandID, pending.ID)
	appErr = requireAppError(t, err, apperrors.CodeInvalidStatus, http.StatusConflict)
	assert.Equal(t, "closed", currentStatus(t, appErr))
	assert.EqualValues(t, 0, env.countMatches(t))

	title := "Renamed"
	jobs.closeNext = true
	_, err = jobSvc.UpdateJob(env.db, brandID, job.ID, &dto.UpdateJobRequest{Title: &title})
	requireAppError(t, err, apperrors.CodeInvalidStatus, http.StatusConflict)

	require.NoError(t, jobSvc.DeleteJob(env.db, brandID, job.ID))
	assert.Equal(t, 4, jobs.locks)
}

func TestCreateJob_DedupesPlatformsAndDefaultsRequirements(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})

	job, err := env.svc.JobService.CreateJob(env.db, brandID, &dto.CreateJobRequest{
		Title:       "  Unboxing  ",
		Description: "Unbox the device",
		Category:    models.CategoryTech,
		Budget:      120050,
		Platforms:   []models.Platform{"youtube", "tiktok", "youtube"},
	})
	require.NoError(t, err)

	assert.Equal(t, "Unboxing", job.Title)
	assert.Equal(t, models.JobStatusOpen, job.Status)
	assert.Equal(t, []models.Platform{models.PlatformYouTube, models.PlatformTikTok}, job.Platforms)
	assert.Equal(t, 1, job.Requirements.Deliverables)
	assert.Equal(t, "1200.50", job.Budget.String())

	loaded, err := env.svc.JobService.GetJob(env.db, job.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, job.Platforms, loaded.Platforms)
}

func TestCreateJob_Validation(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})

	_, err := env.svc.JobService.CreateJob(env.db, brandID, &dto.CreateJobRequest{
		Title:     " ",
		Category:  "cars",
		Budget:    0,
		Platforms: nil,
	})
	appErr := requireAppError(t, err, apperrors.CodeValidationFailed, http.StatusBadRequest)
	details := appErr.Details.(map[string]string)
	assert.Contains(t, details, "title")
	assert.Contains(t, details, "description")
	assert.Contains(t, details, "category")
	assert.Contains(t, details, "budget")
	assert.Contains(t, details, "platforms")

	_, err = env.svc.JobService.CreateJob(env.db, brandID, &dto.CreateJobRequest{
		Title: "t", Description: "d", Category: models.CategoryFood, Budget: 100,
		Platforms: []models.Platform{"myspace"},
	})
	requireAppError(t, err, apperrors.CodeValidationFailed, http.StatusBadRequest)
}

func TestListJobs_FiltersByPlatformAndCategory(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	env.createJob(t)
	_, err := env.svc.JobService.CreateJob(env.db, brandID, &dto.CreateJobRequest{
		Title: "Stream", Description: "Play the game live", Category: models.CategoryGaming,
		Budget: 100, Platforms: []models.Platform{models.PlatformTwitch},
	})
	require.NoError(t, err)

	all, err := env.svc.JobService.ListJobs(env.db, dto.JobCriteria{})
	require.NoError(t, err)
	assert.EqualValues(t, 2, all.Total)
	assert.Equal(t, "Stream", all.Jobs[0].Title, "newest first")

	twitch, err := env.svc.JobService.ListJobs(env.db, dto.JobCriteria{Platform: "twitch"})
	require.NoError(t, err)
	require.Len(t, twitch.Jobs, 1)
	assert.Equal(t, models.CategoryGaming, twitch.Jobs[0].Category)

	beauty, err := env.svc.JobService.ListJobs(env.db, dto.JobCriteria{Category: "beauty", PageSize: 1})
	require.NoError(t, err)
	assert.EqualValues(t, 1, beauty.Total)
	assert.Equal(t, 1, beauty.TotalPages)
}

func TestUpdateJob_StatusTransitions(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	job := env.createJob(t)

	filled := models.JobStatusFilled
	updated, err := env.svc.JobService.UpdateJob(env.db, brandID, job.ID, &dto.UpdateJobRequest{Status: &filled})
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFilled, updated.Status)

	open := models.JobStatusOpen
	_, err = env.svc.JobService.UpdateJob(env.db, brandID, job.ID, &dto.UpdateJobRequest{Status: &open})
	appErr := requireAppError(t, err, apperrors.CodeInvalidStatus, http.StatusConflict)
	assert.Equal(t, "filled", currentStatus(t, appErr))

	closed := models.JobStatusClosed
	_, err = env.svc.JobService.UpdateJob(env.db, brandID, job.ID, &dto.UpdateJobRequest{Status: &closed})
	require.NoError(t, err)

	title := "New title"
	_, err = env.svc.JobService.UpdateJob(env.db, brandID, job.ID, &dto.UpdateJobRequest{Title: &title})
	requireAppError(t, err, apperrors.CodeInvalidStatus, http.StatusConflict)
}

func TestUpdateJob_FieldsAndOwnership(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	job := env.createJob(t)

	title := "Evening routine"
	budget := models.Money(99900)
	_, err := env.svc.JobService.UpdateJob(env.db, outsider, job.ID, &dto.UpdateJobRequest{Title: &title})
	assert.ErrorIs(t, err, apperrors.ErrNotJobOwner)

	updated, err := env.svc.JobService.UpdateJob(env.db, brandID, job.ID, &dto.UpdateJobRequest{
		Title:     &title,
		Budget:    &budget,
		Platforms: []models.Platform{models.PlatformYouTube},
		Requirements: &dto.RequirementsInput{
			Deliverables:   3,
			TargetAudience: dto.TargetAudienceInput{AgeMin: 18, AgeMax: 30},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, title, updated.Title)
	assert.Equal(t, budget, updated.Budget)
	assert.Equal(t, []models.Platform{models.PlatformYouTube}, updated.Platforms)
	assert.Equal(t, 3, updated.Requirements.Deliverables)
	assert.Equal(t, 30, updated.Requirements.TargetAudience.AgeMax)

	_, err = env.svc.JobService.UpdateJob(env.db, brandID, job.ID, &dto.UpdateJobRequest{Platforms: []models.Platform{}})
	requireAppError(t, err, apperrors.CodeValidationFailed, http.StatusBadRequest)
}

func TestDeleteJob_CascadesPendingApplications(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	job := env.createJob(t)

	accepted := env.apply(t, job.ID, creatorID)
	pending := env.apply(t, job.ID, otherID)
	res, err := env.svc.ApplicationService.Accept(env.db, brandID, accepted.ID)
	require.NoError(t, err)
	env.tick()

	require.ErrorIs(t, env.svc.JobService.DeleteJob(env.db, outsider, job.ID), apperrors.ErrNotJobOwner)
	require.NoError(t, env.svc.JobService.DeleteJob(env.db, brandID, job.ID))

	var app models.Application
	require.NoError(t, env.db.First(&app, "id = ?", pending.ID).Error)
	assert.Equal(t, models.ApplicationStatusRejected, app.Status)
	require.NoError(t, env.db.First(&app, "id = ?", accepted.ID).Error)
	assert.Equal(t, models.ApplicationStatusAccepted, app.Status)

	notes := env.notificationsOf(t, otherID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationJobClosed, notes[0].Type)

	_, err = env.svc.JobService.GetJob(env.db, job.ID)
	assert.ErrorIs(t, err, apperrors.ErrJobNotFound)

	// The match survives and still shows where it came from.
	match, err := env.svc.MatchService.GetMatch(env.db, creatorID, res.Match.ID)
	require.NoError(t, err)
	require.NotNil(t, match.Job)
	assert.True(t, match.Job.Deleted)
	assert.Equal(t, job.Title, match.Job.Title)
}

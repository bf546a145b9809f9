package services

import (
	"net/http"
	"sync"
	"testing"
	"time"

	"flulance/internal/models"
	"flulance/internal/repositories"
	"flulance/internal/services/dto"
	"flulance/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestApply_NotifiesBrand(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	job := env.createJob(t)

	app := env.apply(t, job.ID, creatorID)
	assert.Equal(t, models.ApplicationStatusPending, app.Status)
	assert.Equal(t, job.ID, app.Job.ID)

	notes := env.notificationsOf(t, brandID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationApplicationReceived, notes[0].Type)
	assert.JSONEq(t, `{"job_id":"`+job.ID+`","application_id":"`+app.ID+`"}`, string(notes[0].Data))
}

func TestApply_Guards(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	job := env.createJob(t)

	_, err := env.svc.ApplicationService.Apply(env.db, creatorID, "missing", &dto.ApplyRequest{})
	assert.ErrorIs(t, err, apperrors.ErrJobNotFound)

	_, err = env.svc.ApplicationService.Apply(env.db, brandID, job.ID, &dto.ApplyRequest{})
	requireAppError(t, err, apperrors.CodeValidationFailed, http.StatusBadRequest)

	env.apply(t, job.ID, creatorID)
	_, err = env.svc.ApplicationService.Apply(env.db, creatorID, job.ID, &dto.ApplyRequest{})
	requireAppError(t, err, apperrors.CodeAlreadyExists, http.StatusConflict)

	closed := models.JobStatusClosed
	_, err = env.svc.JobService.UpdateJob(env.db, brandID, job.ID, &dto.UpdateJobRequest{Status: &closed})
	require.NoError(t, err)

	_, err = env.svc.ApplicationService.Apply(env.db, otherID, job.ID, &dto.ApplyRequest{})
	appErr := requireAppError(t, err, apperrors.CodeInvalidStatus, http.StatusConflict)
	assert.Equal(t, "closed", currentStatus(t, appErr))
}

func TestApply_ReapplyAfterRejection(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	job := env.createJob(t)

	first := env.apply(t, job.ID, creatorID)
	_, err := env.svc.ApplicationService.Reject(env.db, brandID, first.ID)
	require.NoError(t, err)
	env.tick()

	second := env.apply(t, job.ID, creatorID)
	assert.NotEqual(t, first.ID, second.ID)

	// An accepted application blocks reapplying too.
	_, err = env.svc.ApplicationService.Accept(env.db, brandID, second.ID)
	require.NoError(t, err)
	_, err = env.svc.ApplicationService.Apply(env.db, creatorID, job.ID, &dto.ApplyRequest{})
	requireAppError(t, err, apperrors.CodeAlreadyExists, http.StatusConflict)
}

// Accepting creates exactly one match and one notification for the creator;
// a second accept fails with the status the first one left.
func TestAccept_CreatesMatchAndNotification(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	job := env.createJob(t)
	app := env.apply(t, job.ID, creatorID)

	res, err := env.svc.ApplicationService.Accept(env.db, brandID, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusAccepted, res.Application.Status)
	require.NotNil(t, res.Application.DecidedAt)
	assert.Equal(t, brandID, res.Match.BrandID)
	assert.Equal(t, creatorID, res.Match.CreatorID)
	assert.Equal(t, models.MatchStatusActive, res.Match.Status)

	notes := env.notificationsOf(t, creatorID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationApplicationAccepted, notes[0].Type)
	require.NotNil(t, notes[0].Link)
	assert.Equal(t, "/matches/"+res.Match.ID, *notes[0].Link)

	_, err = env.svc.ApplicationService.Accept(env.db, brandID, app.ID)
	appErr := requireAppError(t, err, apperrors.CodeInvalidStatus, http.StatusConflict)
	assert.Equal(t, "accepted", currentStatus(t, appErr))
	assert.EqualValues(t, 1, env.countMatches(t))

	// Accepting never changes the job status.
	loaded, err := env.svc.JobService.GetJob(env.db, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusOpen, loaded.Status)
}

func TestAccept_Guards(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	job := env.createJob(t)
	app := env.apply(t, job.ID, creatorID)

	_, err := env.svc.ApplicationService.Accept(env.db, brandID, "missing")
	assert.ErrorIs(t, err, apperrors.ErrApplicationNotFound)

	_, err = env.svc.ApplicationService.Accept(env.db, outsider, app.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotJobOwner)

	_, err = env.svc.ApplicationService.Reject(env.db, brandID, app.ID)
	require.NoError(t, err)

	_, err = env.svc.ApplicationService.Accept(env.db, brandID, app.ID)
	appErr := requireAppError(t, err, apperrors.CodeInvalidStatus, http.StatusConflict)
	assert.Equal(t, "rejected", currentStatus(t, appErr))
	assert.EqualValues(t, 0, env.countMatches(t))
}

// interleavedApplications lets another writer decide the application right
// after the service has loaded it and before its conditional update runs.
type interleavedApplications struct {
	repositories.ApplicationRepository
	decideFirst models.ApplicationStatus
}

func (r *interleavedApplications) TransitionStatus(db *gorm.DB, id string, from, to models.ApplicationStatus, now time.Time) (bool, error) {
	if r.decideFirst != "" {
		if _, err := r.ApplicationRepository.TransitionStatus(db, id, from, r.decideFirst, now); err != nil {
			return false, err
		}
		r.decideFirst = ""
	}
	return r.ApplicationRepository.TransitionStatus(db, id, from, to, now)
}

func TestAccept_LosesRaceOnConditionalUpdate(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	job := env.createJob(t)
	app := env.apply(t, job.ID, creatorID)

	apps := &interleavedApplications{ApplicationRepository: env.repos.Applications, decideFirst: models.ApplicationStatusRejected}
	svc := NewApplicationService(env.repos.Jobs, apps, env.repos.Matches, env.svc.NotificationService, env.clock)

	_, err := svc.Accept(env.db, brandID, app.ID)
	appErr := requireAppError(t, err, apperrors.CodeInvalidStatus, http.StatusConflict)
	assert.Equal(t, "rejected", currentStatus(t, appErr), "reports the status the other writer left")
	assert.EqualValues(t, 0, env.countMatches(t))
	assert.Empty(t, env.notificationsOf(t, creatorID))
}

func TestAccept_ExistingMatchRollsBack(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	job := env.createJob(t)
	app := env.apply(t, job.ID, creatorID)

	existing := &models.Match{ApplicationID: app.ID, JobID: job.ID, BrandID: brandID, CreatorID: creatorID,
		Status: models.MatchStatusActive}
	existing.CreatedAt = env.clock.Now()
	require.NoError(t, env.db.Create(existing).Error)

	_, err := env.svc.ApplicationService.Accept(env.db, brandID, app.ID)
	appErr := requireAppError(t, err, apperrors.CodeInvalidStatus, http.StatusConflict)
	assert.Equal(t, "accepted", currentStatus(t, appErr))
	assert.EqualValues(t, 1, env.countMatches(t))
	assert.Empty(t, env.notificationsOf(t, creatorID))

	var stored models.Application
	require.NoError(t, env.db.First(&stored, "id = ?", app.ID).Error)
	assert.Equal(t, models.ApplicationStatusPending, stored.Status, "the accept was rolled back")
}

func TestAccept_RefusesClosedJob(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	job := env.createJob(t)
	app := env.apply(t, job.ID, creatorID)
	require.NoError(t, env.db.Model(&models.Job{}).Where("id = ?", job.ID).Update("status", models.JobStatusClosed).Error)

	_, err := env.svc.ApplicationService.Accept(env.db, brandID, app.ID)
	appErr := requireAppError(t, err, apperrors.CodeInvalidStatus, http.StatusConflict)
	assert.Equal(t, "closed", currentStatus(t, appErr))
	assert.EqualValues(t, 0, env.countMatches(t))
}

// On sqlite the calls serialize, so this covers repeated accepts rather than
// interleaved ones; the two tests above cover the interleavings.
func TestAccept_RepeatedCallsProduceOneMatch(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	job := env.createJob(t)
	app := env.apply(t, job.ID, creatorID)

	const callers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.ApplicationService.Accept(env.db, brandID, app.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				successes++
				return
			}
			var appErr *apperrors.AppError
			if apperrors.As(err, &appErr) && appErr.Code == apperrors.CodeInvalidStatus {
				conflicts++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, callers-1, conflicts)
	assert.EqualValues(t, 1, env.countMatches(t))
	assert.Len(t, env.notificationsOf(t, creatorID), 1)
}

func TestReject_NoMatch(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	job := env.createJob(t)
	app := env.apply(t, job.ID, creatorID)

	res, err := env.svc.ApplicationService.Reject(env.db, brandID, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusRejected, res.Status)
	assert.EqualValues(t, 0, env.countMatches(t))

	notes := env.notificationsOf(t, creatorID)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationApplicationRejected, notes[0].Type)

	_, err = env.svc.ApplicationService.Reject(env.db, brandID, app.ID)
	requireAppError(t, err, apperrors.CodeInvalidStatus, http.StatusConflict)
}

func TestListApplications(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	job := env.createJob(t)
	env.apply(t, job.ID, creatorID)
	env.apply(t, job.ID, otherID)

	_, err := env.svc.ApplicationService.ListJobApplications(env.db, outsider, job.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotJobOwner)

	list, err := env.svc.ApplicationService.ListJobApplications(env.db, brandID, job.ID)
	require.NoError(t, err)
	require.Len(t, list.Applications, 2)
	assert.Equal(t, creatorID, list.Applications[0].ApplicantID)

	mine, err := env.svc.ApplicationService.ListMyApplications(env.db, otherID, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 1, mine.Total)
	assert.Equal(t, 20, mine.PageSize)
	require.NotNil(t, mine.Applications[0].Job)
	assert.Equal(t, job.Title, mine.Applications[0].Job.Title)
}

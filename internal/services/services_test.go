package services

import (
	"testing"
	"time"

	"flulance/internal/clock"
	"flulance/internal/models"
	"flulance/internal/services/dto"
	"flulance/internal/storage"
	"flulance/internal/testutil"
	"flulance/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const (
	brandID   = "0195a000-0000-7000-8000-00000000b001"
	creatorID = "0195a000-0000-7000-8000-00000000c001"
	otherID   = "0195a000-0000-7000-8000-00000000c002"
	outsider  = "0195a000-0000-7000-8000-00000000f001"
)

type testEnv struct {
	db    *gorm.DB
	clock *clock.Stub
	store *storage.MemoryStorage
	repos *RepositoryContainer
	svc   *ServiceContainer
}

func newTestEnv(t *testing.T, chatCfg ChatConfig) *testEnv {
	t.Helper()
	env := &testEnv{
		db:    testutil.NewTestDB(t),
		clock: testutil.FixedClock(),
		store: storage.NewMemoryStorage(""),
		repos: NewRepositoryContainer(),
	}
	env.svc = NewServiceContainer(env.repos, env.store, env.clock, chatCfg)
	return env
}

// tick advances the clock so consecutive rows get distinct timestamps.
func (e *testEnv) tick() {
	e.clock.Advance(time.Second)
}

func requireAppError(t *testing.T, err error, code apperrors.ErrorCode, status int) *apperrors.AppError {
	t.Helper()
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.True(t, apperrors.As(err, &appErr), "expected *AppError, got %T: %v", err, err)
	assert.Equal(t, code, appErr.Code)
	assert.Equal(t, status, appErr.HTTPCode)
	return appErr
}

func currentStatus(t *testing.T, appErr *apperrors.AppError) string {
	t.Helper()
	details, ok := appErr.Details.(map[string]string)
	require.True(t, ok, "details: %#v", appErr.Details)
	return details["current_status"]
}

func (e *testEnv) createJob(t *testing.T) *dto.JobResponse {
	t.Helper()
	job, err := e.svc.JobService.CreateJob(e.db, brandID, &dto.CreateJobRequest{
		Title:       "Skincare routine reel",
		Description: "One reel showing the morning routine",
		Category:    models.CategoryBeauty,
		Budget:      500000,
		Platforms:   []models.Platform{models.PlatformTikTok, models.PlatformInstagram},
	})
	require.NoError(t, err)
	e.tick()
	return job
}

func (e *testEnv) apply(t *testing.T, jobID, applicant string) *dto.ApplicationResponse {
	t.Helper()
	app, err := e.svc.ApplicationService.Apply(e.db, applicant, jobID, &dto.ApplyRequest{Message: "I'd love to"})
	require.NoError(t, err)
	e.tick()
	return app
}

func (e *testEnv) notificationsOf(t *testing.T, userID string) []models.Notification {
	t.Helper()
	var out []models.Notification
	require.NoError(t, e.db.Where("user_id = ?", userID).Order("created_at ASC, id ASC").Find(&out).Error)
	return out
}

func (e *testEnv) countMatches(t *testing.T) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(&models.Match{}).Count(&n).Error)
	return n
}

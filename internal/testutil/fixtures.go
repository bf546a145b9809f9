package testutil

import (
	"testing"
	"time"

	"flulance/internal/auth"
	"flulance/internal/models"

	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TestJWTSecret = "test-secret"
	TestJWTIssuer = "flulance"
)

// InsertJob writes an open job owned by brandID straight to the database.
func InsertJob(t *testing.T, db *gorm.DB, brandID string, platforms ...models.Platform) *models.Job {
	t.Helper()
	if len(platforms) == 0 {
		platforms = []models.Platform{models.PlatformInstagram}
	}
	job := &models.Job{
		BrandID:      brandID,
		Title:        "Spring launch",
		Description:  "Three stories about the new collection",
		Category:     models.CategoryFashion,
		Budget:       500000,
		Requirements: datatypes.NewJSONType(models.DefaultJobRequirements()),
		Status:       models.JobStatusOpen,
	}
	for _, p := range platforms {
		job.Platforms = append(job.Platforms, models.JobPlatform{Platform: p})
	}
	require.NoError(t, db.Create(job).Error)
	return job
}

// InsertMatch writes an accepted application and its active match.
func InsertMatch(t *testing.T, db *gorm.DB, brandID, creatorID string) *models.Match {
	t.Helper()
	job := InsertJob(t, db, brandID)
	now := time.Now().UTC()
	app := &models.Application{
		JobID:       job.ID,
		ApplicantID: creatorID,
		Status:      models.ApplicationStatusAccepted,
		DecidedAt:   &now,
	}
	require.NoError(t, db.Create(app).Error)

	match := &models.Match{
		ApplicationID: app.ID,
		JobID:         job.ID,
		BrandID:       brandID,
		CreatorID:     creatorID,
		Status:        models.MatchStatusActive,
	}
	require.NoError(t, db.Create(match).Error)
	match.Job = job
	return match
}

// Token signs a bearer token the way the identity provider would.
func Token(t *testing.T, userID, role string) string {
	t.Helper()
	token, err := auth.NewJWTManager(TestJWTSecret, TestJWTIssuer, time.Hour).GenerateToken(userID, role)
	require.NoError(t, err)
	return token
}

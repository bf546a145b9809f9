package services

import (
	"net/http"
	"testing"

	"flulance/internal/models"
	"flulance/internal/services/dto"
	"flulance/internal/testutil"
	"flulance/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReviews(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	match := testutil.InsertMatch(t, env.db, brandID, creatorID)

	_, err := env.svc.ReviewService.CreateReview(env.db, brandID, match.ID, &dto.CreateReviewRequest{Rating: 5})
	appErr := requireAppError(t, err, apperrors.CodeInvalidStatus, http.StatusConflict)
	assert.Equal(t, "active", currentStatus(t, appErr))

	_, err = env.svc.MatchService.Complete(env.db, creatorID, match.ID)
	require.NoError(t, err)

	_, err = env.svc.ReviewService.CreateReview(env.db, brandID, match.ID, &dto.CreateReviewRequest{Rating: 6})
	requireAppError(t, err, apperrors.CodeValidationFailed, http.StatusBadRequest)

	_, err = env.svc.ReviewService.CreateReview(env.db, outsider, match.ID, &dto.CreateReviewRequest{Rating: 3})
	assert.ErrorIs(t, err, apperrors.ErrNotMatchParticipant)

	review, err := env.svc.ReviewService.CreateReview(env.db, brandID, match.ID,
		&dto.CreateReviewRequest{Rating: 5, Comment: "  Great content  "})
	require.NoError(t, err)
	assert.Equal(t, creatorID, review.RevieweeID)
	assert.Equal(t, "Great content", review.Comment)

	_, err = env.svc.ReviewService.CreateReview(env.db, brandID, match.ID, &dto.CreateReviewRequest{Rating: 4})
	assert.ErrorIs(t, err, apperrors.ErrDuplicateReview)

	_, err = env.svc.ReviewService.CreateReview(env.db, creatorID, match.ID, &dto.CreateReviewRequest{Rating: 4})
	require.NoError(t, err)

	notes := env.notificationsOf(t, creatorID)
	require.NotEmpty(t, notes)
	assert.Equal(t, models.NotificationReviewReceived, notes[len(notes)-1].Type)

	both, err := env.svc.ReviewService.GetMatchReviews(env.db, brandID, match.ID)
	require.NoError(t, err)
	assert.Len(t, both, 2)
	_, err = env.svc.ReviewService.GetMatchReviews(env.db, outsider, match.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotMatchParticipant)
}

func TestUserReviewsAverage(t *testing.T) {
	env := newTestEnv(t, ChatConfig{})
	for _, rating := range []int{5, 4} {
		m := testutil.InsertMatch(t, env.db, brandID, creatorID)
		_, err := env.svc.MatchService.Complete(env.db, brandID, m.ID)
		require.NoError(t, err)
		_, err = env.svc.ReviewService.CreateReview(env.db, brandID, m.ID, &dto.CreateReviewRequest{Rating: rating})
		require.NoError(t, err)
		env.tick()
	}

	res, err := env.svc.ReviewService.GetUserReviews(env.db, creatorID, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 2, res.Total)
	assert.InDelta(t, 4.5, res.AverageRating, 0.001)
	assert.Len(t, res.Reviews, 2)

	empty, err := env.svc.ReviewService.GetUserReviews(env.db, outsider, 1, 10)
	require.NoError(t, err)
	assert.Zero(t, empty.Total)
	assert.Zero(t, empty.AverageRating)
	assert.NotNil(t, empty.Reviews)
}

package services

import (
	"fmt"
	"strings"

	"flulance/internal/clock"
	"flulance/internal/models"
	"flulance/internal/repositories"
	"flulance/internal/services/dto"
	"flulance/pkg/apperrors"

	"gorm.io/gorm"
)

type ReviewService interface {
	CreateReview(db *gorm.DB, reviewerID, matchID string, req *dto.CreateReviewRequest) (*dto.ReviewResponse, error)
	GetMatchReviews(db *gorm.DB, userID, matchID string) ([]*dto.ReviewResponse, error)
	GetUserReviews(db *gorm.DB, userID string, page, pageSize int) (*dto.UserReviewsResponse, error)
}

type reviewService struct {
	reviewRepo          repositories.ReviewRepository
	matchRepo           repositories.MatchRepository
	notificationService NotificationService
	clock               clock.Clock
}

func NewReviewService(
	reviewRepo repositories.ReviewRepository,
	matchRepo repositories.MatchRepository,
	notificationService NotificationService,
	clk clock.Clock,
) ReviewService {
	return &reviewService{
		reviewRepo:          reviewRepo,
		matchRepo:           matchRepo,
		notificationService: notificationService,
		clock:               clk,
	}
}

// CreateReview records one participant's rating of the other. Each
// participant reviews a completed match at most once.
func (s *reviewService) CreateReview(db *gorm.DB, reviewerID, matchID string, req *dto.CreateReviewRequest) (*dto.ReviewResponse, error) {
	if req.Rating < 1 || req.Rating > 5 {
		return nil, apperrors.ValidationError(map[string]string{"rating": "Must be between 1 and 5"})
	}

	tx, err := beginTx(db)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	match, err := loadMatchForParticipant(tx, s.matchRepo, matchID, reviewerID)
	if err != nil {
		return nil, err
	}
	if match.Status != models.MatchStatusCompleted {
		return nil, apperrors.ErrInvalidStatus("review", "Only completed matches can be reviewed", string(match.Status))
	}

	now := s.clock.Now()
	review := &models.Review{
		MatchID:    match.ID,
		ReviewerID: reviewerID,
		RevieweeID: match.Counterpart(reviewerID),
		Rating:     req.Rating,
		Comment:    strings.TrimSpace(req.Comment),
	}
	review.CreatedAt = now
	review.UpdatedAt = now

	if err := s.reviewRepo.CreateReview(tx, review); err != nil {
		if repositories.IsDuplicateKey(err) {
			return nil, apperrors.ErrDuplicateReview
		}
		return nil, apperrors.InternalError(err)
	}

	_, err = s.notificationService.Emit(tx, EmitParams{
		UserID: review.RevieweeID,
		Type:   models.NotificationReviewReceived,
		Title:  "New review",
		Body:   fmt.Sprintf("You received a %d-star review.", review.Rating),
		Link:   "/matches/" + match.ID,
		Data:   map[string]string{"match_id": match.ID, "review_id": review.ID},
	})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	if err := commit(tx); err != nil {
		return nil, err
	}
	return buildReviewResponse(review), nil
}

func (s *reviewService) GetMatchReviews(db *gorm.DB, userID, matchID string) ([]*dto.ReviewResponse, error) {
	match, err := loadMatchForParticipant(db, s.matchRepo, matchID, userID)
	if err != nil {
		return nil, err
	}

	reviews, err := s.reviewRepo.FindReviewsByMatch(db, match.ID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	out := make([]*dto.ReviewResponse, 0, len(reviews))
	for i := range reviews {
		out = append(out, buildReviewResponse(&reviews[i]))
	}
	return out, nil
}

func (s *reviewService) GetUserReviews(db *gorm.DB, userID string, page, pageSize int) (*dto.UserReviewsResponse, error) {
	page, pageSize = normalizePage(page, pageSize)

	reviews, total, err := s.reviewRepo.FindReviewsByReviewee(db, userID,
		repositories.Pagination{Page: page, PageSize: pageSize})
	if err != nil {
		return nil, apperrors.InternalError(err)
	}
	avg, err := s.reviewRepo.GetAverageRating(db, userID)
	if err != nil {
		return nil, apperrors.InternalError(err)
	}

	resp := &dto.UserReviewsResponse{
		Reviews:       make([]*dto.ReviewResponse, 0, len(reviews)),
		AverageRating: avg,
		Total:         total,
		Page:          page,
		PageSize:      pageSize,
	}
	for i := range reviews {
		resp.Reviews = append(resp.Reviews, buildReviewResponse(&reviews[i]))
	}
	return resp, nil
}

func buildReviewResponse(r *models.Review) *dto.ReviewResponse {
	return &dto.ReviewResponse{
		ID:         r.ID,
		MatchID:    r.MatchID,
		ReviewerID: r.ReviewerID,
		RevieweeID: r.RevieweeID,
		Rating:     r.Rating,
		Comment:    r.Comment,
		CreatedAt:  r.CreatedAt,
	}
}

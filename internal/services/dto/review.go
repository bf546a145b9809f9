package dto

import "time"

type CreateReviewRequest struct {
	Rating  int    `json:"rating" validate:"required,min=1,max=5"`
	Comment string `json:"comment" validate:"max=2000"`
}

type ReviewResponse struct {
	ID         string    `json:"id"`
	MatchID    string    `json:"match_id"`
	ReviewerID string    `json:"reviewer_id"`
	RevieweeID string    `json:"reviewee_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"created_at"`
}

type UserReviewsResponse struct {
	Reviews       []*ReviewResponse `json:"reviews"`
	AverageRating float64           `json:"average_rating"`
	Total         int64             `json:"total"`
	Page          int               `json:"page"`
	PageSize      int               `json:"page_size"`
}

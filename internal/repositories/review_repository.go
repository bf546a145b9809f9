package repositories

import (
	"database/sql"

	"flulance/internal/models"

	"gorm.io/gorm"
)

type ReviewRepository interface {
	CreateReview(db *gorm.DB, review *models.Review) error
	FindReviewsByMatch(db *gorm.DB, matchID string) ([]models.Review, error)
	FindReviewsByReviewee(db *gorm.DB, revieweeID string, page Pagination) ([]models.Review, int64, error)
	GetAverageRating(db *gorm.DB, revieweeID string) (float64, error)
}

type ReviewRepositoryImpl struct{}

func NewReviewRepository() ReviewRepository {
	return &ReviewRepositoryImpl{}
}

func (r *ReviewRepositoryImpl) CreateReview(db *gorm.DB, review *models.Review) error {
	return db.Create(review).Error
}

func (r *ReviewRepositoryImpl) FindReviewsByMatch(db *gorm.DB, matchID string) ([]models.Review, error) {
	var reviews []models.Review
	err := db.Where("match_id = ?", matchID).Order("created_at ASC, id ASC").Find(&reviews).Error
	return reviews, err
}

func (r *ReviewRepositoryImpl) FindReviewsByReviewee(db *gorm.DB, revieweeID string, page Pagination) ([]models.Review, int64, error) {
	query := db.Model(&models.Review{}).Where("reviewee_id = ?", revieweeID).Session(&gorm.Session{})

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var reviews []models.Review
	err := query.Order("created_at DESC, id DESC").
		Offset(page.offset()).
		Limit(page.limit()).
		Find(&reviews).Error
	return reviews, total, err
}

func (r *ReviewRepositoryImpl) GetAverageRating(db *gorm.DB, revieweeID string) (float64, error) {
	var avg sql.NullFloat64
	err := db.Model(&models.Review{}).
		Select("AVG(rating)").
		Where("reviewee_id = ?", revieweeID).
		Row().
		Scan(&avg)
	if err != nil {
		return 0, err
	}
	return avg.Float64, nil
}

package repositories

import (
	"errors"
	"time"

	"flulance/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrMatchNotFound = errors.New("match not found")

type MatchRepository interface {
	CreateMatch(db *gorm.DB, match *models.Match) error
	FindMatchByID(db *gorm.DB, id string) (*models.Match, error)
	FindMatchByApplicationID(db *gorm.DB, applicationID string) (*models.Match, error)
	LockMatch(db *gorm.DB, id string) (*models.Match, error)
	SetLastMessageSeq(db *gorm.DB, id string, seq int64) error
	FindUserMatches(db *gorm.DB, userID string, status models.MatchStatus) ([]models.Match, error)
	CompleteMatch(db *gorm.DB, id, completedBy string, now time.Time) (bool, error)
}

type MatchRepositoryImpl struct{}

func NewMatchRepository() MatchRepository {
	return &MatchRepositoryImpl{}
}

func (r *MatchRepositoryImpl) CreateMatch(db *gorm.DB, match *models.Match) error {
	return db.Create(match).Error
}

// withJob preloads the originating job even if it was deleted later.
func withJob(db *gorm.DB) *gorm.DB {
	return db.Preload("Job", func(db *gorm.DB) *gorm.DB { return db.Unscoped() })
}

func (r *MatchRepositoryImpl) FindMatchByID(db *gorm.DB, id string) (*models.Match, error) {
	var match models.Match
	err := withJob(db).Where("id = ?", id).First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &match, nil
}

func (r *MatchRepositoryImpl) FindMatchByApplicationID(db *gorm.DB, applicationID string) (*models.Match, error) {
	var match models.Match
	err := db.Where("application_id = ?", applicationID).First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &match, nil
}

// LockMatch reads the match with FOR UPDATE; the lock holds until db's
// transaction ends. SQLite has no row locks and serializes writers instead.
func (r *MatchRepositoryImpl) LockMatch(db *gorm.DB, id string) (*models.Match, error) {
	var match models.Match
	err := db.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		First(&match).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return &match, nil
}

func (r *MatchRepositoryImpl) SetLastMessageSeq(db *gorm.DB, id string, seq int64) error {
	return db.Model(&models.Match{}).
		Where("id = ?", id).
		UpdateColumn("last_message_seq", seq).Error
}

func (r *MatchRepositoryImpl) FindUserMatches(db *gorm.DB, userID string, status models.MatchStatus) ([]models.Match, error) {
	query := withJob(db).Where("(brand_id = ? OR creator_id = ?)", userID, userID)
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var matches []models.Match
	err := query.Order("created_at DESC, id DESC").Find(&matches).Error
	return matches, err
}

// CompleteMatch flips active -> completed. Returns false if the match was not active.
func (r *MatchRepositoryImpl) CompleteMatch(db *gorm.DB, id, completedBy string, now time.Time) (bool, error) {
	result := db.Model(&models.Match{}).
		Where("id = ? AND status = ?", id, models.MatchStatusActive).
		Updates(map[string]interface{}{
			"status":       models.MatchStatusCompleted,
			"completed_at": now,
			"completed_by": completedBy,
			"updated_at":   now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected == 1, nil
}

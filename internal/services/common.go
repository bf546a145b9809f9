package services

import (
	"errors"

	"flulance/internal/models"
	"flulance/internal/repositories"
	"flulance/pkg/apperrors"

	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func normalizePage(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return page, pageSize
}

func totalPages(total int64, pageSize int) int {
	if pageSize <= 0 {
		return 0
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

// beginTx starts a transaction on db. Callers defer tx.Rollback(); rolling
// back a committed transaction is a no-op.
func beginTx(db *gorm.DB) (*gorm.DB, error) {
	tx := db.Begin()
	if tx.Error != nil {
		return nil, apperrors.InternalError(tx.Error)
	}
	return tx, nil
}

func commit(tx *gorm.DB) error {
	if err := tx.Commit().Error; err != nil {
		return apperrors.InternalError(err)
	}
	return nil
}

// loadMatchForParticipant returns the match if userID takes part in it.
func loadMatchForParticipant(db *gorm.DB, repo repositories.MatchRepository, matchID, userID string) (*models.Match, error) {
	match, err := repo.FindMatchByID(db, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, apperrors.ErrMatchNotFound
		}
		return nil, apperrors.InternalError(err)
	}
	if !match.IsParticipant(userID) {
		return nil, apperrors.ErrNotMatchParticipant
	}
	return match, nil
}

func loadJob(db *gorm.DB, repo repositories.JobRepository, jobID string) (*models.Job, error) {
	return jobOrAppError(repo.FindJobByID(db, jobID))
}

// lockJob loads the job under a row lock held until tx ends.
func lockJob(tx *gorm.DB, repo repositories.JobRepository, jobID string) (*models.Job, error) {
	return jobOrAppError(repo.LockJob(tx, jobID))
}

func jobOrAppError(job *models.Job, err error) (*models.Job, error) {
	if err != nil {
		if errors.Is(err, repositories.ErrJobNotFound) {
			return nil, apperrors.ErrJobNotFound
		}
		return nil, apperrors.InternalError(err)
	}
	return job, nil
}

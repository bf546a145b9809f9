package repositories

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

// IsDuplicateKey reports whether err is a unique-constraint violation, either
// translated by gorm or raw from postgres.
func IsDuplicateKey(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// Pagination is the page window shared by list queries.
type Pagination struct {
	Page     int
	PageSize int
}

func (p Pagination) offset() int {
	if p.Page <= 1 {
		return 0
	}
	return (p.Page - 1) * p.PageSize
}

func (p Pagination) limit() int {
	if p.PageSize <= 0 {
		return 20
	}
	return p.PageSize
}

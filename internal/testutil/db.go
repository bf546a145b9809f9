// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"testing"
	"time"

	"flulance/database"
	"flulance/internal/clock"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// NewTestDB opens an in-memory SQLite database with the full schema.
// The database is closed when the test completes.
func NewTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.Open(database.Options{Driver: "sqlite", DSN: "file::memory:"})
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))

	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

// FixedClock returns a stub clock set to 2025-03-01 12:00:00 UTC.
func FixedClock() *clock.Stub {
	return clock.NewStub(time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC))
}

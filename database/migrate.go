package database

import (
	"embed"
	"errors"
	"fmt"

	"flulance/internal/logger"
	"flulance/internal/models"
	chatmodels "flulance/internal/models/chat"

	"github.com/golang-migrate/migrate/v4"
	pgxmigrate "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

//go:embed migrations/postgres/*.sql
var postgresMigrations embed.FS

// Models lists every table the service owns, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&models.Job{},
		&models.JobPlatform{},
		&models.Application{},
		&models.Match{},
		&chatmodels.Message{},
		&chatmodels.MessageAttachment{},
		&models.Notification{},
		&models.Review{},
		&models.DeliveryContact{},
	}
}

// AutoMigrate creates or updates tables from the gorm models.
// Used for sqlite/mysql and in tests; postgres goes through Migrate.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Migrate brings the schema to the latest version for the given driver.
func Migrate(db *gorm.DB, driver string) error {
	if driver != "postgres" {
		return AutoMigrate(db)
	}

	m, err := newPostgresMigrate(db)
	if err != nil {
		return err
	}
	// m is not closed: that would close the pool owned by db.

	if err := m.Up(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			logger.Info("database schema is up to date")
			return nil
		}
		return fmt.Errorf("migration failed: %w", err)
	}

	version, _, _ := m.Version()
	logger.Info("database migrated", "version", version)
	return nil
}

func newPostgresMigrate(db *gorm.DB) (*migrate.Migrate, error) {
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}

	sourceDriver, err := iofs.New(postgresMigrations, "migrations/postgres")
	if err != nil {
		return nil, fmt.Errorf("failed to create source driver: %w", err)
	}

	dbDriver, err := pgxmigrate.WithInstance(sqlDB, &pgxmigrate.Config{})
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("failed to create database driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "pgx5", dbDriver)
	if err != nil {
		sourceDriver.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	return m, nil
}

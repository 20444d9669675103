package database

import (
	"fmt"
	"path/filepath"
	"runtime"

	"github.com/sundaybox/weekplanner/internal/config"
	"github.com/sundaybox/weekplanner/internal/database/migrations"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// NewPostgresDB opens the planner database and brings the schema up to date.
func NewPostgresDB(cfg config.DBConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	// SQL migrations cover what AutoMigrate cannot express (check constraints).
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return nil, fmt.Errorf("failed to get current file path")
	}
	migrationsDir := filepath.Join(filepath.Dir(filename), "migrations")

	if err := migrations.LoadSQLMigrations(db, migrationsDir); err != nil {
		return nil, fmt.Errorf("failed to load migrations: %w", err)
	}

	if err := migrations.RunMigrations(db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return db, nil
}

// AutoMigrate creates or updates the engine's tables. Exposed separately so
// tests can migrate an in-memory database.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&WeeklyMealPlan{}, &IngredientEntry{}, &MealAssignment{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

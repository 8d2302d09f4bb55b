package postgres

import (
	"fmt"

	"roomsaga/pkg/model"

	"gorm.io/gorm"
)

// Migrate creates or updates the lock store tables and indexes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Room{}, &model.RoomLock{}); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// NewTestDB opens a migrated in-memory sqlite database.
func NewTestDB() (*gorm.DB, error) {
	db, err := NewGormDB(Options{DSN: SQLitePrefix + ":memory:"})
	if err != nil {
		return nil, err
	}
	if err := Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

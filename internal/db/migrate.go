package db

import (
	"crmsync/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.Integration{},
		&models.SyncLog{},
		&models.SyncState{},
		&models.Contact{},
		&models.Company{},
		&models.Deal{},
	)
}

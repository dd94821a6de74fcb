package db

import (
	"betledger/internal/models"
)

func AutoMigrate(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.User{},
		&models.Proposition{},
		&models.PropositionOption{},
		&models.Wager{},
		&models.WebhookEvent{},
	)
}

// AutoMigrateKeyBridge migrates only the key bridge tables. The bridge runs
// against its own database and must not touch ledger state.
func AutoMigrateKeyBridge(db *DB) error {
	if db == nil || db.Gorm == nil || db.SQL == nil {
		return nil
	}

	return db.Gorm.AutoMigrate(
		&models.VerificationKey{},
		&models.VerificationLog{},
	)
}

package migrations

import (
	"gorm.io/gorm"

	"atelier/internal/infrastructure/persistence/models"
)

func MigrateBillingTables(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.SubscriptionModel{},
		&models.LedgerEntryModel{},
		&models.ProcessedEventModel{},
	)
}

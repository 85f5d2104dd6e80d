package database

import (
	"fmt"

	"homeworth/server/internal/models"
)

func (d *Database) RunMigrations() error {
	// Parents first so foreign keys resolve
	err := d.db.AutoMigrate(
		&models.Property{},
		&models.Estimate{},
		&models.PriceHistoryEntry{},
		&models.ContextFact{},
	)
	if err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	d.logger.Info("Database schema is up to date")
	return nil
}

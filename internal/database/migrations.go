package database

import (
	"gekoimport/internal/models"

	logger "github.com/Bparsons0904/goLogger"
)

// MODELS_TO_MIGRATE is ordered parents first so foreign keys resolve on a fresh schema.
var MODELS_TO_MIGRATE = []any{
	&models.Category{},
	&models.Producer{},
	&models.Unit{},
	&models.Product{},
	&models.Variant{},
	&models.Price{},
	&models.Image{},
	&models.Document{},
	&models.Property{},
	&models.ImportJob{},
}

// MigrateModels runs GORM AutoMigrate for all models
func (db *DB) MigrateModels() error {
	log := logger.New("database").Function("MigrateModels")
	log.Info("Starting database migration")

	for _, model := range MODELS_TO_MIGRATE {
		if err := db.SQL.AutoMigrate(model); err != nil {
			return log.Err("failed to migrate model", err, "model", model)
		}
	}

	log.Info("Database migration completed successfully")
	return nil
}

package database

import (
	"log"

	"atendeai-backend/internal/config"
	"atendeai-backend/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// InitGorm opens the database and runs auto-migration. Postgres is used when
// DATABASE_URL is set, otherwise a local sqlite file.
func InitGorm(cfg *config.Config) *gorm.DB {
	var dialector gorm.Dialector
	if cfg.DatabaseURL != "" {
		dialector = postgres.Open(cfg.DatabaseURL)
	} else {
		dialector = sqlite.Open(cfg.DBPath)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	if err := Migrate(db); err != nil {
		log.Fatalf("Failed to run auto-migration: %v", err)
	}

	log.Println("Database initialized successfully")
	return db
}

// Migrate runs the schema migration for all persisted models.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Contact{},
		&models.MemoryEntry{},
		&models.SessionState{},
		&models.DedupRecord{},
		&models.Appointment{},
		&models.SystemSetting{},
	)
}

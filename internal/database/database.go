package database

import (
	"fmt"
	"log"

	"github.com/natehollidaynh-pixel/alpha-channel-media/internal/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string) error {
	var err error

	DB, err = gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Error),
	})

	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established successfully")
	return nil
}

// AutoMigrate runs automatic migrations for all models
func AutoMigrate() error {
	return Migrate(DB)
}

// Migrate runs automatic migrations against the given handle. Collaborator
// tables go first so foreign references resolve.
func Migrate(db *gorm.DB) error {
	collaborators := []interface{}{
		&models.User{},
		&models.Song{},
	}

	for _, model := range collaborators {
		if err := db.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	judgingModels := []interface{}{
		&models.JudgeApplication{},
		&models.Judge{},
		&models.AnchorSong{},
		&models.JudgingSession{},
		&models.RatingSnapshot{},
	}

	for _, model := range judgingModels {
		if err := db.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	tradingModels := []interface{}{
		&models.Trader{},
		&models.Trade{},
	}

	for _, model := range tradingModels {
		if err := db.AutoMigrate(model); err != nil {
			log.Printf("Warning: migration issue for %T: %v", model, err)
		}
	}

	log.Println("Database migrations completed successfully")
	return nil
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

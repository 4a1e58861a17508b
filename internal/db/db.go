package db

import (
	"log"
	"os"
	"path/filepath"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bigsadcarousel/email-personalisation-agent/internal/config"
	"github.com/bigsadcarousel/email-personalisation-agent/internal/usage"
)

var DB *gorm.DB

// Init opens the database (postgres when a DSN is configured, sqlite
// otherwise) and migrates the usage models.
func Init(cfg *config.Config) error {
	var (
		db  *gorm.DB
		err error
	)
	if cfg.Postgres.DSN != "" {
		db, err = gorm.Open(postgres.Open(cfg.Postgres.DSN), &gorm.Config{})
	} else {
		if dir := filepath.Dir(cfg.SQLite.Path); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return mkErr
			}
		}
		db, err = gorm.Open(sqlite.Open(cfg.SQLite.Path), &gorm.Config{})
	}
	if err != nil {
		return err
	}

	if err := db.AutoMigrate(&usage.Record{}, &usage.Feedback{}, &usage.Counter{}); err != nil {
		return err
	}

	DB = db
	log.Printf("Database connected and migrated")
	return nil
}

package database

import (
	"fmt"
	"log"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/voicediary/internal/entities"
)

// StateDB holds everything that must survive a diary restore: settings,
// OAuth credentials, audit history and web sessions.
type StateDB struct {
	DB *gorm.DB
}

// OpenState opens (creating if needed) the application state database.
func OpenState(dbPath string, level logger.LogLevel) (*StateDB, error) {
	db, err := gorm.Open(sqlite.Open(dbPath+"?_busy_timeout=5000"), &gorm.Config{
		Logger: logger.Default.LogMode(level),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to state database: %w", err)
	}

	err = db.AutoMigrate(
		&entities.Setting{},
		&entities.OAuthToken{},
		&entities.AuditEvent{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate state database: %w", err)
	}

	log.Printf("State database initialized at %s", dbPath)

	return &StateDB{DB: db}, nil
}

// Ping checks the state database connection.
func (d *StateDB) Ping() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

func (d *StateDB) Close() error {
	return closeDB(d.DB)
}

package database

import (
	"fmt"
	"strings"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Opener opens a gorm connection to the SQLite file at path.
type Opener func(path string) (*gorm.DB, error)

// SQLiteOpener returns the default Opener. The pool is pinned to a single
// connection so statements run in the order they were issued.
func SQLiteOpener(level logger.LogLevel) Opener {
	return func(path string) (*gorm.DB, error) {
		db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), &gorm.Config{
			Logger: logger.Default.LogMode(level),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get sql.DB: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)

		return db, nil
	}
}

// ParseLogLevel maps DATABASE_LOG_LEVEL values to gorm log levels.
// Unknown values fall back to Warn.
func ParseLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "info":
		return logger.Info
	default:
		return logger.Warn
	}
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

package database

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotDiary is returned by VerifyFile for a valid SQLite file that holds
// no diary_entries table.
var ErrNotDiary = errors.New("database has no diary_entries table")

// VerifyFile opens the file at path read-only and checks that it is an
// intact diary database. It returns the number of entries it holds.
func VerifyFile(ctx context.Context, path string) (int64, error) {
	db, err := gorm.Open(sqlite.Open("file:"+path+"?mode=ro"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer closeDB(db)
	db = db.WithContext(ctx)

	var check string
	if err := db.Raw("PRAGMA quick_check").Scan(&check).Error; err != nil {
		return 0, fmt.Errorf("failed to check %s: %w", path, err)
	}
	if check != "ok" {
		return 0, fmt.Errorf("integrity check failed: %s", check)
	}

	if !db.Migrator().HasTable("diary_entries") {
		return 0, ErrNotDiary
	}

	var count int64
	if err := db.Table("diary_entries").Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count entries: %w", err)
	}
	return count, nil
}

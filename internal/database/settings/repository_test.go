package settings

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/voicediary/internal/entities"
)

func setupTestDB(t *testing.T) (*Repository, func()) {
	dbPath := filepath.Join(t.TempDir(), "settings.db")

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.Setting{})
	require.NoError(t, err)

	repo := NewRepository(db)

	cleanup := func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	}

	return repo, cleanup
}

func TestRepository_SetSetting_New(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	err := repo.SetSetting(ctx, entities.SettingKeyDiaryTone, "poetic")
	require.NoError(t, err)

	setting, err := repo.GetSetting(ctx, entities.SettingKeyDiaryTone)
	require.NoError(t, err)
	assert.Equal(t, entities.SettingKeyDiaryTone, setting.Key)
	assert.Equal(t, "poetic", setting.Value)
}

func TestRepository_SetSetting_Update(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.SetSetting(ctx, entities.SettingKeyDiaryLanguage, "English"))
	require.NoError(t, repo.SetSetting(ctx, entities.SettingKeyDiaryLanguage, "German"))

	setting, err := repo.GetSetting(ctx, entities.SettingKeyDiaryLanguage)
	require.NoError(t, err)
	assert.Equal(t, "German", setting.Value)

	var count int64
	require.NoError(t, repo.db.Model(&entities.Setting{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestRepository_Value(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	value, ok, err := repo.Value(ctx, "nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, value)

	require.NoError(t, repo.SetSetting(ctx, "empty", ""))
	value, ok, err = repo.Value(ctx, "empty")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, value)
}

func TestRepository_SetSettings(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	err := repo.SetSettings(ctx, map[string]string{
		entities.SettingKeyBackupProvider: "dropbox",
		entities.SettingKeyBackupEnabled:  "true",
	})
	require.NoError(t, err)

	values, err := repo.Values(ctx,
		entities.SettingKeyBackupProvider,
		entities.SettingKeyBackupEnabled,
		entities.SettingKeyBackupSchedule,
	)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		entities.SettingKeyBackupProvider: "dropbox",
		entities.SettingKeyBackupEnabled:  "true",
	}, values)
}

func TestRepository_GetSetting_NotFound(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := repo.GetSetting(context.Background(), "nonexistent")

	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepository_DeleteSetting(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	err := repo.SetSetting(ctx, "to-delete", "value")
	require.NoError(t, err)

	err = repo.DeleteSetting(ctx, "to-delete")
	require.NoError(t, err)

	_, err = repo.GetSetting(ctx, "to-delete")
	assert.Error(t, err)

	// Deleting a missing key is not an error
	assert.NoError(t, repo.DeleteSetting(ctx, "nonexistent"))
}

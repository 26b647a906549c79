package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/voicediary/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(&entities.AuditEvent{})
	require.NoError(t, err)

	return db
}

func entryID(id int64) *int64 { return &id }

func TestRepository_LogEvent(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	event := &entities.AuditEvent{
		EventType:   entities.AuditEventEntry,
		Action:      "entry_create",
		Description: "Created entry \"Morning\"",
		EntryID:     entryID(3),
		Status:      entities.AuditStatusSuccess,
	}

	err := repo.LogEvent(context.Background(), event)
	require.NoError(t, err)
	assert.NotZero(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
}

func TestRepository_GetEvents(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupTestDB(t))

	for i := 0; i < 15; i++ {
		err := repo.LogEvent(ctx, &entities.AuditEvent{
			EventType:   entities.AuditEventEntry,
			Action:      "entry_create",
			Description: "Test event",
			EntryID:     entryID(int64(i%3 + 1)),
			Status:      entities.AuditStatusSuccess,
			CreatedAt:   time.Now().Add(time.Duration(-i) * time.Hour),
		})
		require.NoError(t, err)
	}
	for i := 0; i < 5; i++ {
		err := repo.LogEvent(ctx, &entities.AuditEvent{
			EventType: entities.AuditEventBackup,
			Action:    "backup_upload",
			Status:    entities.AuditStatusFailed,
			ErrorMsg:  "network down",
		})
		require.NoError(t, err)
	}

	t.Run("get all events", func(t *testing.T) {
		events, total, err := repo.GetEvents(ctx, Filter{}, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(20), total)
		assert.Len(t, events, 20)
	})

	t.Run("filter by type", func(t *testing.T) {
		events, total, err := repo.GetEvents(ctx, Filter{EventType: entities.AuditEventBackup}, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		for _, e := range events {
			assert.Equal(t, entities.AuditEventBackup, e.EventType)
		}
	})

	t.Run("filter by entry", func(t *testing.T) {
		events, total, err := repo.GetEvents(ctx, Filter{EntryID: entryID(2)}, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(5), total)
		for _, e := range events {
			require.NotNil(t, e.EntryID)
			assert.Equal(t, int64(2), *e.EntryID)
		}
	})

	t.Run("filter by time", func(t *testing.T) {
		_, total, err := repo.GetEvents(ctx, Filter{
			EventType: entities.AuditEventEntry,
			Since:     time.Now().Add(-150 * time.Minute),
		}, 50, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(3), total)
	})

	t.Run("pagination", func(t *testing.T) {
		events, total, err := repo.GetEvents(ctx, Filter{EventType: entities.AuditEventEntry}, 5, 0)
		require.NoError(t, err)
		assert.Equal(t, int64(15), total)
		assert.Len(t, events, 5)

		events2, _, err := repo.GetEvents(ctx, Filter{EventType: entities.AuditEventEntry}, 5, 5)
		require.NoError(t, err)
		assert.Len(t, events2, 5)
		assert.NotEqual(t, events[0].ID, events2[0].ID)
	})

	t.Run("non-positive limit uses the default page size", func(t *testing.T) {
		events, _, err := repo.GetEvents(ctx, Filter{}, 0, -3)
		require.NoError(t, err)
		assert.Len(t, events, 20)
	})

	t.Run("order by created_at desc", func(t *testing.T) {
		events, _, err := repo.GetEvents(ctx, Filter{EventType: entities.AuditEventEntry}, 10, 0)
		require.NoError(t, err)
		for i := 1; i < len(events); i++ {
			assert.False(t, events[i-1].CreatedAt.Before(events[i].CreatedAt))
		}
	})
}

func TestRepository_DeleteOldEvents(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupTestDB(t))

	now := time.Now()
	require.NoError(t, repo.LogEvent(ctx, &entities.AuditEvent{
		EventType: entities.AuditEventEntry,
		Action:    "old_create",
		Status:    entities.AuditStatusSuccess,
		CreatedAt: now.Add(-48 * time.Hour),
	}))
	require.NoError(t, repo.LogEvent(ctx, &entities.AuditEvent{
		EventType: entities.AuditEventEntry,
		Action:    "new_delete",
		Status:    entities.AuditStatusSuccess,
		CreatedAt: now.Add(-1 * time.Hour),
	}))

	deleted, err := repo.DeleteOldEvents(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	events, total, err := repo.GetEvents(ctx, Filter{}, 50, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, "new_delete", events[0].Action)
}

func TestRepository_GetEventByID(t *testing.T) {
	ctx := context.Background()
	repo := NewRepository(setupTestDB(t))

	event := &entities.AuditEvent{
		EventType: entities.AuditEventRestore,
		Action:    "restore_download",
		Status:    entities.AuditStatusSuccess,
	}
	require.NoError(t, repo.LogEvent(ctx, event))

	t.Run("existing event", func(t *testing.T) {
		found, err := repo.GetEventByID(ctx, event.ID)
		require.NoError(t, err)
		assert.Equal(t, event.ID, found.ID)
		assert.Equal(t, "restore_download", found.Action)
	})

	t.Run("non-existing event", func(t *testing.T) {
		_, err := repo.GetEventByID(ctx, 999)
		assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
	})
}

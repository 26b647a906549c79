package http

import (
	"context"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/voicediary/internal/backup"
	"github.com/mrlokans/voicediary/internal/entities"
	"github.com/mrlokans/voicediary/internal/settingsstore"
)

// EntryStore is the diary storage used by the entry endpoints.
type EntryStore interface {
	List(ctx context.Context) []entities.DiaryEntry
	Search(ctx context.Context, query string) []entities.DiaryEntry
	ListByDate(ctx context.Context, day string) []entities.DiaryEntry
	EntryDates(ctx context.Context) []string
	Get(ctx context.Context, id int64) (*entities.DiaryEntry, error)
	Create(ctx context.Context, title, content string) (int64, error)
	Update(ctx context.Context, id int64, title, content string) error
	Delete(ctx context.Context, id int64) error
}

// Pinger checks a database connection.
type Pinger interface {
	Ping(ctx context.Context) error
}

// VoiceRecorder turns a recording into an entry synchronously.
type VoiceRecorder interface {
	Record(ctx context.Context, audioPath string) (*entities.DiaryEntry, error)
}

// TaskQueue enqueues background work and reports its progress.
type TaskQueue interface {
	Enqueue(task backlite.Task) (string, error)
	Status(ctx context.Context, taskID string) (backlite.TaskStatus, error)
}

// BackupRunner performs backup operations.
type BackupRunner interface {
	Backup(ctx context.Context) (*backup.Result, error)
	Restore(ctx context.Context) (*backup.Result, error)
	DeleteBackup(ctx context.Context) error
	Status(ctx context.Context) *backup.Status
}

// Rescheduler applies changed backup schedule settings.
type Rescheduler interface {
	Reschedule(ctx context.Context) error
}

// SettingsStore reads and writes the user-editable settings.
type SettingsStore interface {
	DiaryPreferences(ctx context.Context) settingsstore.Preferences
	SetTone(ctx context.Context, tone settingsstore.Tone) error
	SetLanguage(ctx context.Context, language settingsstore.Language) error
	GeminiAPIKeyInfo(ctx context.Context) settingsstore.APIKeyInfo
	SetGeminiAPIKey(ctx context.Context, key string) error
	ClearGeminiAPIKey(ctx context.Context) error
	BackupConfigInfo(ctx context.Context) settingsstore.BackupConfigInfo
	SetBackupProvider(ctx context.Context, provider string) error
	SetBackupEnabled(ctx context.Context, enabled bool) error
	SetBackupSchedule(ctx context.Context, schedule string) error
}

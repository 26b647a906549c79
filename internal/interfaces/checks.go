package interfaces

// This file contains compile-time interface implementation checks.
// These ensure that concrete types satisfy their interfaces at compile time,
// catching missing methods before runtime.
//
// To verify all checks pass: go build ./internal/interfaces/...

import (
	"github.com/mrlokans/voicediary/internal/audit"
	"github.com/mrlokans/voicediary/internal/backup"
	"github.com/mrlokans/voicediary/internal/database"
	"github.com/mrlokans/voicediary/internal/diary"
	"github.com/mrlokans/voicediary/internal/http"
	"github.com/mrlokans/voicediary/internal/oauth2"
	"github.com/mrlokans/voicediary/internal/scheduler"
	"github.com/mrlokans/voicediary/internal/settingsstore"
	"github.com/mrlokans/voicediary/internal/storage"
	"github.com/mrlokans/voicediary/internal/storage/providers/dropbox"
	"github.com/mrlokans/voicediary/internal/storage/providers/gdrive"
	"github.com/mrlokans/voicediary/internal/storage/providers/local"
	"github.com/mrlokans/voicediary/internal/tasks"
	"github.com/mrlokans/voicediary/internal/transcribe"
)

// =============================================================================
// Entry Store
// =============================================================================

var _ http.EntryStore = (*database.Store)(nil)
var _ http.Pinger = (*database.Store)(nil)
var _ diary.EntryStore = (*database.Store)(nil)

// =============================================================================
// Recorder Pipeline
// =============================================================================

var _ diary.Transcriber = (*transcribe.Client)(nil)
var _ diary.Settings = (*settingsstore.SettingsStore)(nil)
var _ http.VoiceRecorder = (*diary.Recorder)(nil)
var _ tasks.Recorder = (*diary.Recorder)(nil)

// =============================================================================
// Settings
// =============================================================================

var _ http.SettingsStore = (*settingsstore.SettingsStore)(nil)
var _ backup.ProviderSettings = (*settingsstore.SettingsStore)(nil)
var _ backup.StatusStore = (*settingsstore.SettingsStore)(nil)
var _ scheduler.ScheduleSettings = (*settingsstore.SettingsStore)(nil)

// =============================================================================
// Backup
// =============================================================================

var _ backup.Resolver = (*backup.ProviderResolver)(nil)
var _ http.BackupRunner = (*backup.Service)(nil)
var _ scheduler.Backupper = (*backup.Service)(nil)
var _ tasks.Backupper = (*backup.Service)(nil)
var _ http.Rescheduler = (*scheduler.BackupScheduler)(nil)

var _ storage.Client = (*dropbox.Client)(nil)
var _ storage.Client = (*gdrive.Client)(nil)
var _ storage.Client = (*local.Client)(nil)
var _ storage.TokenSource = (*oauth2.StoredTokenSource)(nil)

// =============================================================================
// Background Tasks
// =============================================================================

var _ http.TaskQueue = (*tasks.Client)(nil)
var _ scheduler.Enqueuer = (*tasks.Client)(nil)
var _ tasks.AuditEventCleaner = (*audit.Service)(nil)

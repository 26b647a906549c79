package http

import (
	"context"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/voicediary/internal/audit"
	"github.com/mrlokans/voicediary/internal/crypto"
	"github.com/mrlokans/voicediary/internal/database"
	dbaudit "github.com/mrlokans/voicediary/internal/database/audit"
	"github.com/mrlokans/voicediary/internal/database/settings"
	"github.com/mrlokans/voicediary/internal/entities"
	"github.com/mrlokans/voicediary/internal/settingsstore"
)

type countingScheduler struct {
	calls atomic.Int32
}

func (s *countingScheduler) Reschedule(ctx context.Context) error {
	s.calls.Add(1)
	return nil
}

type settingsEnv struct {
	*testServer
	scheduler *countingScheduler
	audit     *audit.Service
}

func setupSettingsServer(t *testing.T) *settingsEnv {
	t.Helper()
	for _, env := range []string{
		"DIARY_TONE", "DIARY_LANGUAGE", "GEMINI_API_KEY",
		"BACKUP_PROVIDER", "BACKUP_SCHEDULE_ENABLED", "BACKUP_SCHEDULE",
	} {
		t.Setenv(env, "")
	}

	state, err := database.OpenState(filepath.Join(t.TempDir(), "state.db"), logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { state.Close() })

	key, err := crypto.GenerateKeyBytes()
	require.NoError(t, err)
	enc, err := crypto.NewEncryptor(key)
	require.NoError(t, err)

	store := settingsstore.New(settings.NewRepository(state.DB), enc)
	auditService := audit.NewService(dbaudit.NewRepository(state.DB))
	scheduler := &countingScheduler{}

	s := setupTestServer(t, func(cfg *RouterConfig) {
		cfg.Settings = store
		cfg.Scheduler = scheduler
		cfg.Audit = auditService
	})
	return &settingsEnv{testServer: s, scheduler: scheduler, audit: auditService}
}

func TestSettings_Defaults(t *testing.T) {
	s := setupSettingsServer(t)

	w := s.do(t, http.MethodGet, "/api/settings", nil)
	requireStatus(t, w, http.StatusOK)
	resp := decode[SettingsResponse](t, w)

	assert.Equal(t, settingsstore.ToneSimple, resp.Diary.Tone)
	assert.Equal(t, settingsstore.LanguageJapanese, resp.Diary.Language)
	assert.Equal(t, settingsstore.SourceDefault, resp.Diary.ToneSource)
	assert.False(t, resp.Gemini.Configured)
	assert.Equal(t, settingsstore.DefaultBackupSchedule, resp.Backup.Schedule)
	assert.Equal(t, settingsstore.Tones, resp.Tones)
	assert.Len(t, resp.Languages, 2)
}

func TestSettings_Update(t *testing.T) {
	s := setupSettingsServer(t)

	w := s.do(t, http.MethodPut, "/api/settings", map[string]any{
		"tone":           "reflective",
		"language":       "en",
		"gemini_api_key": "AIzaSyExampleKey1234",
	})
	requireStatus(t, w, http.StatusOK)
	resp := decode[SettingsResponse](t, w)

	assert.Equal(t, settingsstore.ToneReflective, resp.Diary.Tone)
	assert.Equal(t, settingsstore.LanguageEnglish, resp.Diary.Language)
	assert.Equal(t, settingsstore.SourceDatabase, resp.Diary.LanguageSource)
	assert.True(t, resp.Gemini.Configured)
	assert.NotContains(t, resp.Gemini.Masked, "ExampleKey")
	assert.NotContains(t, w.Body.String(), "AIzaSyExampleKey1234")
	assert.Zero(t, s.scheduler.calls.Load(), "diary settings do not touch the backup schedule")

	s.audit.Wait()
	events, total, err := s.audit.GetEvents(context.Background(), dbaudit.Filter{EventType: entities.AuditEventSettings}, 10, 0)
	require.NoError(t, err)
	require.Equal(t, int64(1), total)
	assert.Contains(t, events[0].Description, "tone=reflective")
	assert.NotContains(t, events[0].Description, "AIzaSy")
}

func TestSettings_UpdateBackupReschedules(t *testing.T) {
	s := setupSettingsServer(t)

	w := s.do(t, http.MethodPut, "/api/settings", map[string]any{
		"backup_provider": "local",
		"backup_enabled":  true,
		"backup_schedule": "30 4 * * *",
	})
	requireStatus(t, w, http.StatusOK)
	resp := decode[SettingsResponse](t, w)

	assert.Equal(t, "local", resp.Backup.Provider)
	assert.True(t, resp.Backup.Enabled)
	assert.Equal(t, "30 4 * * *", resp.Backup.Schedule)
	assert.Equal(t, int32(1), s.scheduler.calls.Load())
}

func TestSettings_RejectsInvalidValuesAtomically(t *testing.T) {
	tests := []struct {
		name string
		body map[string]any
	}{
		{"tone", map[string]any{"language": "en", "tone": "poetic"}},
		{"language", map[string]any{"tone": "casual", "language": "fr"}},
		{"empty key", map[string]any{"tone": "casual", "gemini_api_key": "   "}},
		{"provider", map[string]any{"tone": "casual", "backup_provider": "ftp"}},
		{"schedule", map[string]any{"tone": "casual", "backup_schedule": "every day"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := setupSettingsServer(t)

			requireStatus(t, s.do(t, http.MethodPut, "/api/settings", tt.body), http.StatusBadRequest)

			resp := decode[SettingsResponse](t, s.do(t, http.MethodGet, "/api/settings", nil))
			assert.Equal(t, settingsstore.ToneSimple, resp.Diary.Tone)
			assert.Equal(t, settingsstore.LanguageJapanese, resp.Diary.Language)
			assert.Zero(t, s.scheduler.calls.Load())
		})
	}
}

func TestSettings_DeleteGeminiKey(t *testing.T) {
	s := setupSettingsServer(t)
	requireStatus(t, s.do(t, http.MethodPut, "/api/settings", map[string]any{"gemini_api_key": "secret-key-123456"}), http.StatusOK)

	w := s.do(t, http.MethodDelete, "/api/settings/gemini-key", nil)
	requireStatus(t, w, http.StatusOK)
	assert.False(t, decode[SettingsResponse](t, w).Gemini.Configured)
}

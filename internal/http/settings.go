package http

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/voicediary/internal/audit"
	"github.com/mrlokans/voicediary/internal/settingsstore"
)

// SettingsController exposes the user-editable settings as JSON.
type SettingsController struct {
	settings  SettingsStore
	scheduler Rescheduler
	audit     *audit.Service
}

func NewSettingsController(settings SettingsStore, scheduler Rescheduler, auditService *audit.Service) *SettingsController {
	return &SettingsController{
		settings:  settings,
		scheduler: scheduler,
		audit:     auditService,
	}
}

// SettingsResponse is the body of GET and PUT /api/settings.
type SettingsResponse struct {
	Diary     settingsstore.Preferences      `json:"diary"`
	Gemini    settingsstore.APIKeyInfo       `json:"gemini"`
	Backup    settingsstore.BackupConfigInfo `json:"backup"`
	Tones     []settingsstore.Tone           `json:"tones"`
	Languages []settingsstore.Language       `json:"languages"`
}

// UpdateSettingsRequest carries the fields to change. Omitted fields are left alone.
type UpdateSettingsRequest struct {
	Tone           *string `json:"tone"`
	Language       *string `json:"language"`
	GeminiAPIKey   *string `json:"gemini_api_key"`
	BackupProvider *string `json:"backup_provider"`
	BackupEnabled  *bool   `json:"backup_enabled"`
	BackupSchedule *string `json:"backup_schedule"`
}

// Get handles GET /api/settings
func (sc *SettingsController) Get(c *gin.Context) {
	c.JSON(http.StatusOK, sc.snapshot(c))
}

// Update handles PUT /api/settings. Every field is validated before any is
// written.
func (sc *SettingsController) Update(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if err := validateSettings(req); err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	ctx := c.Request.Context()
	var changed []string

	if req.Tone != nil {
		if err := sc.settings.SetTone(ctx, settingsstore.Tone(*req.Tone)); err != nil {
			respondInternalError(c, err, "set tone")
			return
		}
		changed = append(changed, "tone="+*req.Tone)
	}
	if req.Language != nil {
		if err := sc.settings.SetLanguage(ctx, settingsstore.Language(*req.Language)); err != nil {
			respondInternalError(c, err, "set language")
			return
		}
		changed = append(changed, "language="+*req.Language)
	}
	if req.GeminiAPIKey != nil {
		if err := sc.settings.SetGeminiAPIKey(ctx, *req.GeminiAPIKey); err != nil {
			respondInternalError(c, err, "set gemini key")
			return
		}
		changed = append(changed, "gemini_api_key")
	}

	backupChanged := false
	if req.BackupProvider != nil {
		if err := sc.settings.SetBackupProvider(ctx, *req.BackupProvider); err != nil {
			respondInternalError(c, err, "set backup provider")
			return
		}
		changed = append(changed, "backup_provider="+*req.BackupProvider)
		backupChanged = true
	}
	if req.BackupEnabled != nil {
		if err := sc.settings.SetBackupEnabled(ctx, *req.BackupEnabled); err != nil {
			respondInternalError(c, err, "set backup enabled")
			return
		}
		changed = append(changed, fmt.Sprintf("backup_enabled=%t", *req.BackupEnabled))
		backupChanged = true
	}
	if req.BackupSchedule != nil {
		if err := sc.settings.SetBackupSchedule(ctx, strings.TrimSpace(*req.BackupSchedule)); err != nil {
			respondInternalError(c, err, "set backup schedule")
			return
		}
		changed = append(changed, "backup_schedule="+strings.TrimSpace(*req.BackupSchedule))
		backupChanged = true
	}

	if backupChanged && sc.scheduler != nil {
		if err := sc.scheduler.Reschedule(ctx); err != nil {
			respondInternalError(c, err, "reschedule backups")
			return
		}
	}
	if len(changed) > 0 && sc.audit != nil {
		sc.audit.LogSettings("settings_update", "Updated "+strings.Join(changed, ", "))
	}

	c.JSON(http.StatusOK, sc.snapshot(c))
}

// DeleteGeminiKey handles DELETE /api/settings/gemini-key
func (sc *SettingsController) DeleteGeminiKey(c *gin.Context) {
	if err := sc.settings.ClearGeminiAPIKey(c.Request.Context()); err != nil {
		respondInternalError(c, err, "clear gemini key")
		return
	}
	if sc.audit != nil {
		sc.audit.LogSettings("gemini_key_clear", "Removed stored Gemini API key")
	}
	c.JSON(http.StatusOK, sc.snapshot(c))
}

func (sc *SettingsController) snapshot(c *gin.Context) SettingsResponse {
	ctx := c.Request.Context()
	return SettingsResponse{
		Diary:     sc.settings.DiaryPreferences(ctx),
		Gemini:    sc.settings.GeminiAPIKeyInfo(ctx),
		Backup:    sc.settings.BackupConfigInfo(ctx),
		Tones:     settingsstore.Tones,
		Languages: settingsstore.Languages,
	}
}

func validateSettings(req UpdateSettingsRequest) error {
	if req.Tone != nil && !settingsstore.Tone(*req.Tone).Valid() {
		return fmt.Errorf("%w: %q", settingsstore.ErrInvalidTone, *req.Tone)
	}
	if req.Language != nil && !settingsstore.Language(*req.Language).Valid() {
		return fmt.Errorf("%w: %q", settingsstore.ErrInvalidLanguage, *req.Language)
	}
	if req.GeminiAPIKey != nil && strings.TrimSpace(*req.GeminiAPIKey) == "" {
		return settingsstore.ErrEmptyAPIKey
	}
	if req.BackupProvider != nil && !settingsstore.ValidBackupProvider(*req.BackupProvider) {
		return fmt.Errorf("unknown backup provider %q", *req.BackupProvider)
	}
	if req.BackupSchedule != nil {
		if err := settingsstore.ValidateCronSchedule(strings.TrimSpace(*req.BackupSchedule)); err != nil {
			return fmt.Errorf("invalid cron schedule: %w", err)
		}
	}
	return nil
}

package entities

import (
	"time"
)

type Setting struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"uniqueIndex;size:100" json:"key"`
	Value     string    `gorm:"type:text" json:"value"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Setting) TableName() string {
	return "settings"
}

// Known setting keys
const (
	// Diary generation preferences
	SettingKeyDiaryTone     = "diary_tone"
	SettingKeyDiaryLanguage = "diary_language"
	SettingKeyGeminiAPIKey  = "gemini_api_key" // sealed with crypto.Encryptor

	// Backup settings
	SettingKeyBackupProvider    = "backup_provider"
	SettingKeyBackupEnabled     = "backup_enabled"
	SettingKeyBackupSchedule    = "backup_schedule"
	SettingKeyBackupLastAt      = "backup_last_at"
	SettingKeyBackupLastStatus  = "backup_last_status"
	SettingKeyBackupLastMessage = "backup_last_message"

	// Owner authentication
	SettingKeyAuthPassphraseHash = "auth_passphrase_hash"
	SettingKeyAuthAPITokenHash   = "auth_api_token_hash"
	SettingKeyAuthAPITokenAt     = "auth_api_token_created_at"
)

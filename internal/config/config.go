package config

import (
	"time"

	"github.com/spf13/viper"
)

type AuthMode string

const (
	AuthModeNone  AuthMode = "none"  // No authentication required (default)
	AuthModeLocal AuthMode = "local" // Single owner passphrase with sessions
)

// Tone, language, the Gemini API key, the backup provider and the backup
// schedule are not part of Config: settingsstore resolves them per request
// so that values saved through the API override the environment.
type (
	Config struct {
		HTTP
		Global
		Database
		Audio
		Gemini
		Backup
		Dropbox
		Google
		Crypto
		Audit
		Tasks
		Auth
		OAuth2
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path      string // Diary entries; replaced on restore
		StatePath string // Settings, tokens, audit, sessions
		LogLevel  string // gorm log level: silent, error, warn, info
	}
	Audio struct {
		Dir  string // Where uploaded recordings wait for transcription
		Keep bool   // Keep recordings after a successful transcription
	}
	Gemini struct {
		BaseURL       string
		Model         string
		FallbackModel string
		Timeout       time.Duration
	}
	Backup struct {
		RemoteName    string
		LocalDir      string
		DropboxFolder string
	}
	Dropbox struct {
		AppKey string
	}
	Google struct {
		ClientID     string
		ClientSecret string
	}
	Crypto struct {
		TokenEncryptionKey string // base64 AES-256 key
		TokenKeyFile       string // Generated on first run when no key is given
	}
	Audit struct {
		Dir           string // Raw model responses that failed to parse
		RetentionDays int    // Days to keep audit events (default: 90)
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Auth struct {
		Mode            AuthMode
		SessionSecret   string
		SessionLifetime time.Duration
		TokenExpiry     time.Duration
		BcryptCost      int
		SecureCookies   bool // Set to false for local dev without HTTPS

		// Rate limiting configuration
		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)
	}
	OAuth2 struct {
		RefreshEnabled bool          // Enable background token refresh
		CheckInterval  time.Duration // How often to check for expiring tokens (default: 30m)
		RefreshMargin  time.Duration // Refresh tokens expiring within this duration (default: 15m)
	}
)

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("state_database_path", DefaultStateDatabasePath)
	v.SetDefault("database_log_level", "warn")
	v.SetDefault("audio_dir", "./audio")
	v.SetDefault("audio_keep", false)
	v.SetDefault("audit_dir", "./audit")
	v.SetDefault("audit_retention_days", 90)

	// Gemini defaults
	v.SetDefault("gemini_base_url", "https://generativelanguage.googleapis.com")
	v.SetDefault("gemini_model", "gemini-3-flash-preview")
	v.SetDefault("gemini_fallback_model", "gemini-1.5-flash")
	v.SetDefault("gemini_timeout", "2m")

	// Backup defaults
	v.SetDefault("backup_remote_name", "diary.db")
	v.SetDefault("backup_local_dir", "")
	v.SetDefault("backup_dropbox_folder", "/voicediary")

	v.SetDefault("token_key_file", "./.voicediary.key")

	// Auth defaults
	v.SetDefault("auth_mode", "none")
	v.SetDefault("auth_session_secret", "")       // Auto-generated if empty
	v.SetDefault("auth_session_lifetime", "24h")  // 24 hours
	v.SetDefault("auth_token_expiry", "720h")     // 30 days
	v.SetDefault("auth_bcrypt_cost", 12)          // bcrypt cost factor
	v.SetDefault("auth_secure_cookies", true)     // HTTPS-only cookies
	v.SetDefault("auth_max_login_attempts", 5)    // Max failed attempts
	v.SetDefault("auth_rate_limit_window", "15m") // Window for counting attempts
	v.SetDefault("auth_lockout_duration", "30m")  // Lockout duration

	// OAuth2 defaults
	v.SetDefault("oauth2_refresh_enabled", true)
	v.SetDefault("oauth2_check_interval", "30m")
	v.SetDefault("oauth2_refresh_margin", "15m")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("task_workers", 2)
	v.SetDefault("task_release_after", "15m")
	v.SetDefault("task_cleanup_interval", "1h")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path:      v.GetString("DATABASE_PATH"),
			StatePath: v.GetString("STATE_DATABASE_PATH"),
			LogLevel:  v.GetString("DATABASE_LOG_LEVEL"),
		},
		Audio: Audio{
			Dir:  v.GetString("AUDIO_DIR"),
			Keep: v.GetBool("AUDIO_KEEP"),
		},
		Gemini: Gemini{
			BaseURL:       v.GetString("GEMINI_BASE_URL"),
			Model:         v.GetString("GEMINI_MODEL"),
			FallbackModel: v.GetString("GEMINI_FALLBACK_MODEL"),
			Timeout:       v.GetDuration("GEMINI_TIMEOUT"),
		},
		Backup: Backup{
			RemoteName:    v.GetString("BACKUP_REMOTE_NAME"),
			LocalDir:      v.GetString("BACKUP_LOCAL_DIR"),
			DropboxFolder: v.GetString("BACKUP_DROPBOX_FOLDER"),
		},
		Dropbox: Dropbox{
			AppKey: v.GetString("DROPBOX_APP_KEY"),
		},
		Google: Google{
			ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
			ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
		},
		Crypto: Crypto{
			TokenEncryptionKey: v.GetString("TOKEN_ENCRYPTION_KEY"),
			TokenKeyFile:       v.GetString("TOKEN_KEY_FILE"),
		},
		Audit: Audit{
			Dir:           v.GetString("AUDIT_DIR"),
			RetentionDays: v.GetInt("AUDIT_RETENTION_DAYS"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASK_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASK_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASK_CLEANUP_INTERVAL"),
		},
		Auth: Auth{
			Mode:             AuthMode(v.GetString("AUTH_MODE")),
			SessionSecret:    v.GetString("AUTH_SESSION_SECRET"),
			SessionLifetime:  v.GetDuration("AUTH_SESSION_LIFETIME"),
			TokenExpiry:      v.GetDuration("AUTH_TOKEN_EXPIRY"),
			BcryptCost:       v.GetInt("AUTH_BCRYPT_COST"),
			SecureCookies:    v.GetBool("AUTH_SECURE_COOKIES"),
			MaxLoginAttempts: v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:  v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:  v.GetDuration("AUTH_LOCKOUT_DURATION"),
		},
		OAuth2: OAuth2{
			RefreshEnabled: v.GetBool("OAUTH2_REFRESH_ENABLED"),
			CheckInterval:  v.GetDuration("OAUTH2_CHECK_INTERVAL"),
			RefreshMargin:  v.GetDuration("OAUTH2_REFRESH_MARGIN"),
		},
	}
}

package http

import (
	"github.com/mrlokans/voicediary/internal/audit"
	"github.com/mrlokans/voicediary/internal/auth"
	"github.com/mrlokans/voicediary/internal/config"
	"github.com/mrlokans/voicediary/internal/events"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Core dependencies
	Entries  EntryStore
	Bus      *events.Bus
	Recorder VoiceRecorder
	Settings SettingsStore
	Backup   BackupRunner
	Audit    *audit.Service

	// Health checks, keyed by the name reported in the response
	Checks map[string]Pinger

	// Backup scheduler, re-read after settings changes (optional)
	Scheduler Rescheduler

	// Task queue client (optional); voice uploads run inline without it
	Tasks TaskQueue

	// Where uploaded recordings are written and whether they are kept
	AudioDir  string
	KeepAudio bool

	// Maximum accepted upload size in bytes
	MaxUploadBytes int64

	// Application info
	Version string

	// Authentication
	AuthConfig     config.Auth
	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	AuthMiddleware *auth.Middleware
	AuthController *auth.AuthController
	CSRFSecret     []byte
	SecureCookies  bool
}

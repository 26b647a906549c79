package http

import (
	"github.com/gin-gonic/gin"

	"github.com/mrlokans/voicediary/internal/auth"
)

// NewRouter creates and configures the HTTP router with all endpoints.
// Optional dependencies that are nil leave their routes unregistered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Logger())
	router.Use(gin.Recovery())

	// Apply security headers to all responses
	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware())
	}

	// CSRF protection for cookie-authenticated requests
	if len(cfg.CSRFSecret) > 0 {
		router.Use(auth.CSRFMiddleware(cfg.CSRFSecret, cfg.SecureCookies, cfg.AuthService))
	}

	// Session runs after CSRF so session context isn't overwritten by CSRF's request replacement
	if cfg.SessionManager != nil {
		router.Use(cfg.SessionManager.SessionLoadSave())
	}

	if cfg.AuthMiddleware != nil {
		router.Use(cfg.AuthMiddleware.Handler())
	} else {
		router.Use(func(c *gin.Context) {
			c.Set(auth.ContextKeyAuthType, auth.AuthTypeNone)
			c.Next()
		})
	}

	health := NewHealthController(cfg.Checks, cfg.Version)
	router.GET("/health", health.Status)
	router.GET("/ping", health.Status)

	api := router.Group("/api")

	if cfg.AuthController != nil {
		cfg.AuthController.RegisterRoutes(api.Group("/auth"))
	}

	if cfg.Entries != nil {
		entries := NewEntriesController(cfg.Entries, cfg.Audit)
		api.GET("/entries", entries.List)
		api.POST("/entries", entries.Create)
		api.GET("/entries/calendar", entries.Calendar)
		api.GET("/entries/date/:date", entries.ByDate)
		api.GET("/entries/:id", entries.Get)
		api.PUT("/entries/:id", entries.Update)
		api.DELETE("/entries/:id", entries.Delete)

		voice := NewVoiceController(cfg.Recorder, cfg.Tasks, cfg.AudioDir, cfg.KeepAudio, cfg.MaxUploadBytes)
		api.POST("/entries/voice", voice.Upload)
	}

	if cfg.Bus != nil {
		api.GET("/events", NewEventsController(cfg.Bus).Stream)
	}

	if cfg.Settings != nil {
		settings := NewSettingsController(cfg.Settings, cfg.Scheduler, cfg.Audit)
		api.GET("/settings", settings.Get)
		api.PUT("/settings", settings.Update)
		api.DELETE("/settings/gemini-key", settings.DeleteGeminiKey)
	}

	if cfg.Backup != nil {
		backups := NewBackupController(cfg.Backup, cfg.Tasks)
		api.GET("/backup", backups.Status)
		api.POST("/backup", backups.Run)
		api.POST("/backup/restore", backups.Restore)
		api.DELETE("/backup", backups.Delete)
	}

	if cfg.Audit != nil {
		api.GET("/audit", NewAuditController(cfg.Audit).GetAuditEvents)
	}

	if cfg.Tasks != nil {
		api.GET("/tasks/:id", NewTasksController(cfg.Tasks).GetTaskStatus)
	}

	return router
}

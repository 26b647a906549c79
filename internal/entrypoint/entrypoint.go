package entrypoint

import (
	"context"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/voicediary/internal/auth"
	"github.com/mrlokans/voicediary/internal/config"
	http_controllers "github.com/mrlokans/voicediary/internal/http"
	"github.com/mrlokans/voicediary/internal/oauth2"
	"github.com/mrlokans/voicediary/internal/scheduler"
	"github.com/mrlokans/voicediary/internal/tasks"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler: router,
	}

	go func() {
		fmt.Printf("Starting server at %s:%d\n", cfg.HTTP.Host, cfg.HTTP.Port)
		// service connections
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// kill (no param) default send syscall.SIGTERM
	// kill -2 is syscall.SIGINT
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Printf("Shutdown Server, waiting %v before killing\n", timeout)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	// Open SSE streams end with their request context, so stop accepting
	// requests before tearing down the services they read from.
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server Shutdown: %v", err)
	}

	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Println("Server exiting")
}

func Run(cfg *config.Config, version string) {
	log.Printf("Starting Voice Diary v%s", version)

	app, err := NewApp(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("Error closing databases: %v", err)
		}
	}()

	if err := os.MkdirAll(cfg.Audio.Dir, 0o700); err != nil {
		log.Fatalf("Failed to create audio directory %s: %v", cfg.Audio.Dir, err)
	}

	serviceCtx, cancelServices := context.WithCancel(context.Background())
	defer cancelServices()

	// Task queue. Without it voice uploads and backups run inline.
	var taskClient *tasks.Client
	var queue http_controllers.TaskQueue
	var enqueuer scheduler.Enqueuer
	if cfg.Tasks.Enabled {
		taskClient, err = tasks.NewClient(cfg.Database.Path, tasks.Config{
			Workers:            cfg.Tasks.Workers,
			ReleaseAfter:       cfg.Tasks.ReleaseAfter,
			CleanupInterval:    cfg.Tasks.CleanupInterval,
			AuditRetentionDays: cfg.Audit.RetentionDays,
		})
		if err != nil {
			log.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer func() {
			if err := taskClient.Close(); err != nil {
				log.Printf("Error closing task client: %v", err)
			}
		}()

		taskClient.Register(
			tasks.NewTranscribeAudioQueue(app.Recorder),
			tasks.NewBackupDiaryQueue(app.Backup),
			tasks.NewCleanupAuditEventsQueue(app.Audit),
		)
		go taskClient.Start(serviceCtx)

		cleanup := tasks.CleanupAuditEventsTask{RetentionDays: cfg.Audit.RetentionDays}
		if !cfg.Audio.Keep {
			cleanup.AudioDir = cfg.Audio.Dir
		}
		if _, err := taskClient.Enqueue(cleanup); err != nil {
			log.Printf("Failed to schedule audit cleanup: %v", err)
		}

		queue = taskClient
		enqueuer = taskClient
	}

	backupScheduler := scheduler.NewBackupScheduler(app.Settings, app.Backup, enqueuer)
	if err := backupScheduler.Start(serviceCtx); err != nil {
		log.Printf("WARNING: Backup scheduler not started: %v", err)
	}

	var refreshScheduler *oauth2.RefreshScheduler
	if len(app.Registry.All()) > 0 {
		refreshScheduler = oauth2.NewRefreshScheduler(app.Tokens, app.Registry, oauth2.RefreshConfig{
			Enabled:       cfg.OAuth2.RefreshEnabled,
			CheckInterval: cfg.OAuth2.CheckInterval,
			RefreshMargin: cfg.OAuth2.RefreshMargin,
		}, app.Audit)
		go refreshScheduler.Start(serviceCtx)
	}

	routerCfg := http_controllers.RouterConfig{
		Entries:  app.Store,
		Bus:      app.Bus,
		Recorder: app.Recorder,
		Settings: app.Settings,
		Backup:   app.Backup,
		Audit:    app.Audit,
		Checks: map[string]http_controllers.Pinger{
			"diary": app.Store,
			"state": http_controllers.PingFunc(func(context.Context) error { return app.State.Ping() }),
		},
		Scheduler:  backupScheduler,
		Tasks:      queue,
		AudioDir:   cfg.Audio.Dir,
		KeepAudio:  cfg.Audio.Keep,
		Version:    version,
		AuthConfig: cfg.Auth,
	}

	var authController *auth.AuthController
	if cfg.Auth.Mode == config.AuthModeLocal {
		log.Printf("Authentication mode: local")
		authController = setupAuth(&routerCfg, app, cfg)
	} else {
		log.Printf("Authentication mode: none (no authentication required)")
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		backupScheduler.Stop()
		if refreshScheduler != nil {
			refreshScheduler.Stop()
		}
		if taskClient != nil {
			taskClient.Stop(ctx)
		}
		cancelServices()
		if authController != nil {
			authController.Stop()
		}
	}

	Serve(router, cfg, onShutdown)
}

// setupAuth wires passphrase authentication into the router configuration.
func setupAuth(routerCfg *http_controllers.RouterConfig, app *App, cfg *config.Config) *auth.AuthController {
	authService := auth.NewService(app.SettingsRepo, cfg.Auth)

	sqlDB, err := app.State.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get SQL DB for sessions: %v", err)
	}
	sessionManager, err := auth.NewSessionManager(sqlDB, cfg.Auth)
	if err != nil {
		log.Fatalf("Failed to initialize session manager: %v", err)
	}

	var csrfSecret []byte
	if cfg.Auth.SessionSecret != "" {
		csrfSecret, err = hex.DecodeString(cfg.Auth.SessionSecret)
		if err != nil {
			// Not hex, use as raw bytes
			csrfSecret = []byte(cfg.Auth.SessionSecret)
		}
	} else {
		secret, err := auth.GenerateSessionSecret()
		if err != nil {
			log.Fatalf("Failed to generate CSRF secret: %v", err)
		}
		csrfSecret, _ = hex.DecodeString(secret)
		log.Printf("Generated session secret (set AUTH_SESSION_SECRET to persist)")
	}

	if setUp, _ := authService.IsSetUp(context.Background()); !setUp {
		log.Printf("No passphrase set. POST /api/auth/setup to choose one.")
	}

	routerCfg.AuthService = authService
	routerCfg.SessionManager = sessionManager
	routerCfg.AuthMiddleware = auth.NewMiddleware(authService, sessionManager, cfg.Auth)
	routerCfg.CSRFSecret = csrfSecret
	routerCfg.SecureCookies = cfg.Auth.SecureCookies

	controller := auth.NewAuthController(authService, sessionManager, cfg.Auth, app.Audit)
	routerCfg.AuthController = controller
	return controller
}

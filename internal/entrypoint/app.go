package entrypoint

import (
	"errors"
	"fmt"

	"github.com/mrlokans/voicediary/internal/audit"
	"github.com/mrlokans/voicediary/internal/backup"
	"github.com/mrlokans/voicediary/internal/config"
	"github.com/mrlokans/voicediary/internal/crypto"
	"github.com/mrlokans/voicediary/internal/database"
	dbaudit "github.com/mrlokans/voicediary/internal/database/audit"
	"github.com/mrlokans/voicediary/internal/database/settings"
	"github.com/mrlokans/voicediary/internal/diary"
	"github.com/mrlokans/voicediary/internal/events"
	"github.com/mrlokans/voicediary/internal/oauth2"
	"github.com/mrlokans/voicediary/internal/oauth2/providers"
	"github.com/mrlokans/voicediary/internal/settingsstore"
	"github.com/mrlokans/voicediary/internal/tokenstore"
	"github.com/mrlokans/voicediary/internal/transcribe"
)

// App holds the services shared by the server and the CLI commands.
type App struct {
	Config *config.Config

	State        *database.StateDB
	SettingsRepo *settings.Repository
	Settings     *settingsstore.SettingsStore
	Audit        *audit.Service
	Tokens       *tokenstore.TokenStore
	Registry     *oauth2.Registry

	Bus      *events.Bus
	Store    *database.Store
	Recorder *diary.Recorder
	Backup   *backup.Service
}

// NewApp opens the state database and builds every service on top of it.
// The diary store itself stays closed until its first use.
func NewApp(cfg *config.Config) (*App, error) {
	level := database.ParseLogLevel(cfg.Database.LogLevel)

	encryptor, err := crypto.LoadEncryptor(cfg.Crypto.TokenEncryptionKey, cfg.Crypto.TokenKeyFile)
	if err != nil {
		return nil, err
	}

	state, err := database.OpenState(cfg.Database.StatePath, level)
	if err != nil {
		return nil, err
	}

	settingsRepo := settings.NewRepository(state.DB)
	settingsStore := settingsstore.New(settingsRepo, encryptor)
	auditService := audit.NewService(dbaudit.NewRepository(state.DB))
	tokens := tokenstore.New(state.DB, encryptor)
	registry := NewRegistry(cfg)

	bus := events.NewBus()
	store := database.Open(cfg.Database.Path, bus, database.WithLogLevel(level))

	transcriber := transcribe.NewClient(transcribe.Config{
		BaseURL:       cfg.Gemini.BaseURL,
		Model:         cfg.Gemini.Model,
		FallbackModel: cfg.Gemini.FallbackModel,
		Timeout:       cfg.Gemini.Timeout,
	})
	recorder := diary.NewRecorder(transcriber, settingsStore, store, auditService, audit.NewAuditor(cfg.Audit.Dir))

	resolver := &backup.ProviderResolver{
		Settings:      settingsStore,
		LocalDir:      cfg.Backup.LocalDir,
		DropboxFolder: cfg.Backup.DropboxFolder,
		Tokens:        tokens,
		Registry:      registry,
	}
	backupService := backup.NewService(store, resolver, settingsStore, auditService, cfg.Backup.RemoteName)

	return &App{
		Config:       cfg,
		State:        state,
		SettingsRepo: settingsRepo,
		Settings:     settingsStore,
		Audit:        auditService,
		Tokens:       tokens,
		Registry:     registry,
		Bus:          bus,
		Store:        store,
		Recorder:     recorder,
		Backup:       backupService,
	}, nil
}

// NewRegistry registers the OAuth providers that have credentials configured.
func NewRegistry(cfg *config.Config) *oauth2.Registry {
	registry := oauth2.NewRegistry()
	if cfg.Dropbox.AppKey != "" {
		registry.Register(providers.NewDropboxProvider(cfg.Dropbox.AppKey))
	}
	if cfg.Google.ClientID != "" {
		registry.Register(providers.NewGoogleProvider(cfg.Google.ClientID, cfg.Google.ClientSecret))
	}
	return registry
}

// Close flushes pending audit writes and closes both databases.
func (a *App) Close() error {
	a.Audit.Wait()

	var errs []error
	if err := a.Store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close diary store: %w", err))
	}
	if err := a.State.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close state database: %w", err))
	}
	return errors.Join(errs...)
}

package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mrlokans/voicediary/internal/config"
	"github.com/mrlokans/voicediary/internal/entities"
)

var (
	ErrNotSetUp       = errors.New("owner passphrase is not set")
	ErrAlreadySetUp   = errors.New("owner passphrase is already set")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrAuthRequired   = errors.New("authentication required")
	ErrPassphraseSame = errors.New("new passphrase must differ from the current one")
)

// CredentialStore persists the owner credentials. The settings repository
// satisfies it.
type CredentialStore interface {
	Value(ctx context.Context, key string) (string, bool, error)
	SetSettings(ctx context.Context, values map[string]string) error
	DeleteSetting(ctx context.Context, key string) error
}

// Service manages the owner passphrase and API token.
type Service struct {
	store  CredentialStore
	config config.Auth

	// setupMu serializes Setup so two first-run requests cannot both win.
	setupMu sync.Mutex
}

// NewService creates a new authentication service.
func NewService(store CredentialStore, cfg config.Auth) *Service {
	return &Service{
		store:  store,
		config: cfg,
	}
}

func (s *Service) value(ctx context.Context, key string) (string, error) {
	value, _, err := s.store.Value(ctx, key)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}

// IsSetUp reports whether an owner passphrase exists.
func (s *Service) IsSetUp(ctx context.Context) (bool, error) {
	hash, err := s.value(ctx, entities.SettingKeyAuthPassphraseHash)
	if err != nil {
		return false, err
	}
	return hash != "", nil
}

// Setup stores the first owner passphrase.
func (s *Service) Setup(ctx context.Context, passphrase string) error {
	s.setupMu.Lock()
	defer s.setupMu.Unlock()

	done, err := s.IsSetUp(ctx)
	if err != nil {
		return err
	}
	if done {
		return ErrAlreadySetUp
	}
	return s.storePassphrase(ctx, passphrase)
}

func (s *Service) storePassphrase(ctx context.Context, passphrase string) error {
	hash, err := HashPassphrase(passphrase, s.config.BcryptCost)
	if err != nil {
		return err
	}
	if err := s.store.SetSettings(ctx, map[string]string{
		entities.SettingKeyAuthPassphraseHash: hash,
	}); err != nil {
		return fmt.Errorf("failed to save passphrase: %w", err)
	}
	return nil
}

// Authenticate checks the owner passphrase.
func (s *Service) Authenticate(ctx context.Context, passphrase string) error {
	hash, err := s.value(ctx, entities.SettingKeyAuthPassphraseHash)
	if err != nil {
		return err
	}
	if hash == "" {
		return ErrNotSetUp
	}
	return CheckPassphrase(passphrase, hash)
}

// ChangePassphrase replaces the passphrase after verifying the current one.
// The API token is revoked as well.
func (s *Service) ChangePassphrase(ctx context.Context, current, next string) error {
	if err := s.Authenticate(ctx, current); err != nil {
		return err
	}
	if current == next {
		return ErrPassphraseSame
	}
	if err := s.storePassphrase(ctx, next); err != nil {
		return err
	}
	return s.RevokeToken(ctx)
}

// GenerateToken creates a new API token, replacing any previous one.
// Only the hash is stored; the plaintext is returned once.
func (s *Service) GenerateToken(ctx context.Context) (string, error) {
	plaintext, hash, err := GenerateAPIToken()
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	err = s.store.SetSettings(ctx, map[string]string{
		entities.SettingKeyAuthAPITokenHash: hash,
		entities.SettingKeyAuthAPITokenAt:   time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", fmt.Errorf("failed to save token: %w", err)
	}
	return plaintext, nil
}

// RevokeToken removes the API token.
func (s *Service) RevokeToken(ctx context.Context) error {
	for _, key := range []string{entities.SettingKeyAuthAPITokenHash, entities.SettingKeyAuthAPITokenAt} {
		if err := s.store.DeleteSetting(ctx, key); err != nil {
			return fmt.Errorf("failed to revoke token: %w", err)
		}
	}
	return nil
}

// ValidateToken checks a plaintext API token.
func (s *Service) ValidateToken(ctx context.Context, token string) error {
	hash, err := s.value(ctx, entities.SettingKeyAuthAPITokenHash)
	if err != nil {
		return err
	}
	if !tokenMatches(token, hash) {
		return ErrInvalidToken
	}

	if s.config.TokenExpiry > 0 {
		createdAt, err := s.value(ctx, entities.SettingKeyAuthAPITokenAt)
		if err != nil {
			return err
		}
		if ts, err := time.Parse(time.RFC3339, createdAt); err == nil && time.Since(ts) > s.config.TokenExpiry {
			return ErrTokenExpired
		}
	}
	return nil
}

// HasToken reports whether an API token has been issued.
func (s *Service) HasToken(ctx context.Context) bool {
	hash, err := s.value(ctx, entities.SettingKeyAuthAPITokenHash)
	return err == nil && hash != ""
}

// IsAuthEnabled returns true if authentication is required.
func (s *Service) IsAuthEnabled() bool {
	return s.config.Mode == config.AuthModeLocal
}

// Mode returns the current authentication mode.
func (s *Service) Mode() config.AuthMode {
	return s.config.Mode
}

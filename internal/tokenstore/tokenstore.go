// Package tokenstore keeps OAuth provider credentials in the state database,
// sealed with AES-256-GCM.
package tokenstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/mrlokans/voicediary/internal/crypto"
	"github.com/mrlokans/voicediary/internal/entities"
)

// ErrNoToken is returned when no credential is stored for a provider.
var ErrNoToken = errors.New("no token stored")

// TokenStore provides encrypted storage for OAuth tokens.
type TokenStore struct {
	db        *gorm.DB
	encryptor *crypto.Encryptor
}

// New creates a TokenStore on an already migrated state database.
func New(db *gorm.DB, encryptor *crypto.Encryptor) *TokenStore {
	return &TokenStore{db: db, encryptor: encryptor}
}

// SaveToken encrypts and upserts a credential keyed by provider and account.
func (s *TokenStore) SaveToken(ctx context.Context, token *entities.DecryptedToken) error {
	encAccessToken, err := s.encryptor.Encrypt(token.AccessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}
	encRefreshToken, err := s.encryptor.Encrypt(token.RefreshToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt refresh token: %w", err)
	}

	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	row := &entities.OAuthToken{
		Provider:     token.Provider,
		AccountID:    token.AccountID,
		AccessToken:  encAccessToken,
		RefreshToken: encRefreshToken,
		TokenType:    tokenType,
		ExpiresAt:    token.ExpiresAt,
		Scope:        token.Scope,
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "provider"}, {Name: "account_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"access_token", "refresh_token", "token_type", "expires_at", "scope", "updated_at",
		}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("failed to save token: %w", err)
	}
	return nil
}

// GetToken returns the decrypted credential for provider and account.
func (s *TokenStore) GetToken(ctx context.Context, provider entities.OAuthProvider, accountID string) (*entities.DecryptedToken, error) {
	var row entities.OAuthToken
	err := s.db.WithContext(ctx).
		Where("provider = ? AND account_id = ?", provider, accountID).
		First(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	return s.decryptToken(&row)
}

// GetTokenByProvider returns the most recently updated credential for provider.
// The diary has a single owner, so this is the usual lookup.
func (s *TokenStore) GetTokenByProvider(ctx context.Context, provider entities.OAuthProvider) (*entities.DecryptedToken, error) {
	var row entities.OAuthToken
	err := s.db.WithContext(ctx).
		Where("provider = ?", provider).
		Order("updated_at DESC").
		First(&row).Error
	if err != nil {
		return nil, notFound(err)
	}
	return s.decryptToken(&row)
}

// ListTokens returns every stored credential without decrypting it.
func (s *TokenStore) ListTokens(ctx context.Context) ([]entities.OAuthToken, error) {
	var tokens []entities.OAuthToken
	if err := s.db.WithContext(ctx).Order("provider").Find(&tokens).Error; err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	return tokens, nil
}

// DeleteProvider removes every credential stored for provider.
func (s *TokenStore) DeleteProvider(ctx context.Context, provider entities.OAuthProvider) error {
	err := s.db.WithContext(ctx).Where("provider = ?", provider).Delete(&entities.OAuthToken{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}

// UpdateLastUsed stamps last_used_at for a credential.
func (s *TokenStore) UpdateLastUsed(ctx context.Context, provider entities.OAuthProvider, accountID string) error {
	err := s.db.WithContext(ctx).Model(&entities.OAuthToken{}).
		Where("provider = ? AND account_id = ?", provider, accountID).
		Update("last_used_at", time.Now()).Error
	if err != nil {
		return fmt.Errorf("failed to update last used: %w", err)
	}
	return nil
}

// UpdateTokenAfterRefresh stores a refreshed access token. The refresh token
// is replaced only when the provider rotated it.
func (s *TokenStore) UpdateTokenAfterRefresh(ctx context.Context, provider entities.OAuthProvider, accountID, accessToken, refreshToken string, expiresAt *time.Time) error {
	encAccessToken, err := s.encryptor.Encrypt(accessToken)
	if err != nil {
		return fmt.Errorf("failed to encrypt access token: %w", err)
	}

	updates := map[string]any{
		"access_token":      encAccessToken,
		"expires_at":        expiresAt,
		"last_refreshed_at": time.Now(),
	}
	if refreshToken != "" {
		encRefreshToken, err := s.encryptor.Encrypt(refreshToken)
		if err != nil {
			return fmt.Errorf("failed to encrypt refresh token: %w", err)
		}
		updates["refresh_token"] = encRefreshToken
	}

	err = s.db.WithContext(ctx).Model(&entities.OAuthToken{}).
		Where("provider = ? AND account_id = ?", provider, accountID).
		Updates(updates).Error
	if err != nil {
		return fmt.Errorf("failed to update token: %w", err)
	}
	return nil
}

func (s *TokenStore) decryptToken(row *entities.OAuthToken) (*entities.DecryptedToken, error) {
	accessToken, err := s.encryptor.Decrypt(row.AccessToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt access token: %w", err)
	}
	refreshToken, err := s.encryptor.Decrypt(row.RefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt refresh token: %w", err)
	}

	return &entities.DecryptedToken{
		Provider:     row.Provider,
		AccountID:    row.AccountID,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    row.TokenType,
		ExpiresAt:    row.ExpiresAt,
		Scope:        row.Scope,
	}, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNoToken
	}
	return fmt.Errorf("failed to get token: %w", err)
}

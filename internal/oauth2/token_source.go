package oauth2

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mrlokans/voicediary/internal/tokenstore"
)

// StoredTokenSource provides tokens from the token store with automatic refresh.
// It satisfies storage.TokenSource.
type StoredTokenSource struct {
	mu sync.Mutex

	provider   Provider
	tokenStore *tokenstore.TokenStore
	accountID  string

	// Cached token data
	accessToken string
	expiresAt   *time.Time

	// Margin before expiry to trigger refresh (default: 5 minutes)
	refreshMargin time.Duration
}

// NewStoredTokenSource creates a TokenSource that retrieves and refreshes tokens from the store
func NewStoredTokenSource(
	provider Provider,
	store *tokenstore.TokenStore,
	accountID string,
) *StoredTokenSource {
	return &StoredTokenSource{
		provider:      provider,
		tokenStore:    store,
		accountID:     accountID,
		refreshMargin: 5 * time.Minute,
	}
}

// ProviderTokenSource creates a TokenSource for the most recently connected
// account of provider. It returns tokenstore.ErrNoToken when none is stored.
func ProviderTokenSource(
	ctx context.Context,
	provider Provider,
	store *tokenstore.TokenStore,
) (*StoredTokenSource, error) {
	token, err := store.GetTokenByProvider(ctx, provider.Name())
	if err != nil {
		return nil, fmt.Errorf("failed to get %s token: %w", provider.Name(), err)
	}
	return NewStoredTokenSource(provider, store, token.AccountID), nil
}

// Token returns a valid access token, refreshing if necessary
func (s *StoredTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accessToken != "" && !s.isExpiringSoon() {
		return s.accessToken, nil
	}

	token, err := s.tokenStore.GetToken(ctx, s.provider.Name(), s.accountID)
	if err != nil {
		return "", fmt.Errorf("failed to get token from store: %w", err)
	}

	s.accessToken = token.AccessToken
	s.expiresAt = token.ExpiresAt

	if s.isExpiringSoon() {
		if token.RefreshToken == "" {
			return "", ErrNoRefreshToken
		}
		if err := s.refreshLocked(ctx, token.RefreshToken); err != nil {
			return "", fmt.Errorf("failed to refresh token: %w", err)
		}
	}

	if err := s.tokenStore.UpdateLastUsed(ctx, s.provider.Name(), s.accountID); err != nil {
		log.Printf("[oauth2] %v", err)
	}

	return s.accessToken, nil
}

// refreshLocked performs token refresh (caller must hold the lock)
func (s *StoredTokenSource) refreshLocked(ctx context.Context, refreshToken string) error {
	resp, err := s.provider.RefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}

	expiresAt := resp.ExpiresAt()
	if err := s.tokenStore.UpdateTokenAfterRefresh(
		ctx,
		s.provider.Name(),
		s.accountID,
		resp.AccessToken,
		resp.RefreshToken,
		expiresAt,
	); err != nil {
		return fmt.Errorf("failed to save refreshed token: %w", err)
	}

	s.accessToken = resp.AccessToken
	s.expiresAt = expiresAt

	return nil
}

// ExpiresAt returns the cached token expiry time
func (s *StoredTokenSource) ExpiresAt() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.expiresAt
}

// AccountID returns the associated account identifier
func (s *StoredTokenSource) AccountID() string {
	return s.accountID
}

// isExpiringSoon checks if the token is expired or expiring within the refresh margin
func (s *StoredTokenSource) isExpiringSoon() bool {
	if s.expiresAt == nil {
		return false // No expiry means token doesn't expire
	}
	return time.Now().Add(s.refreshMargin).After(*s.expiresAt)
}

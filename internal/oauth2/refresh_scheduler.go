package oauth2

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mrlokans/voicediary/internal/audit"
	"github.com/mrlokans/voicediary/internal/entities"
	"github.com/mrlokans/voicediary/internal/tokenstore"
)

// RefreshConfig contains configuration for the token refresh scheduler
type RefreshConfig struct {
	Enabled       bool          // Enable background refresh
	CheckInterval time.Duration // How often to check for expiring tokens (default: 30m)
	RefreshMargin time.Duration // Refresh tokens expiring within this duration (default: 15m)
}

// DefaultRefreshConfig returns sensible defaults for token refresh
func DefaultRefreshConfig() RefreshConfig {
	return RefreshConfig{
		Enabled:       true,
		CheckInterval: 30 * time.Minute,
		RefreshMargin: 15 * time.Minute,
	}
}

// RefreshScheduler refreshes stored tokens of registered providers before
// they expire, so scheduled backups never start with a dead token.
type RefreshScheduler struct {
	mu sync.Mutex

	tokenStore   *tokenstore.TokenStore
	registry     *Registry
	config       RefreshConfig
	auditService *audit.Service

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewRefreshScheduler creates a new token refresh scheduler. auditService may be nil.
func NewRefreshScheduler(
	store *tokenstore.TokenStore,
	registry *Registry,
	config RefreshConfig,
	auditService *audit.Service,
) *RefreshScheduler {
	if config.CheckInterval <= 0 {
		config.CheckInterval = DefaultRefreshConfig().CheckInterval
	}
	if config.RefreshMargin <= 0 {
		config.RefreshMargin = DefaultRefreshConfig().RefreshMargin
	}

	return &RefreshScheduler{
		tokenStore:   store,
		registry:     registry,
		config:       config,
		auditService: auditService,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// Start runs the refresh loop until Stop is called or ctx ends. It blocks.
func (s *RefreshScheduler) Start(ctx context.Context) {
	defer close(s.doneCh)

	if !s.config.Enabled {
		log.Println("[oauth2] Token refresh scheduler disabled")
		return
	}

	log.Printf("[oauth2] Token refresh scheduler started (interval: %v, margin: %v)",
		s.config.CheckInterval, s.config.RefreshMargin)

	ticker := time.NewTicker(s.config.CheckInterval)
	defer ticker.Stop()

	s.RefreshExpiring(ctx)

	for {
		select {
		case <-ticker.C:
			s.RefreshExpiring(ctx)
		case <-s.stopCh:
			log.Println("[oauth2] Token refresh scheduler stopping")
			return
		case <-ctx.Done():
			log.Println("[oauth2] Token refresh scheduler context cancelled")
			return
		}
	}
}

// Stop gracefully stops the scheduler and waits for Start to return.
func (s *RefreshScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// RefreshExpiring refreshes every stored token that expires within the
// margin and returns how many were refreshed.
func (s *RefreshScheduler) RefreshExpiring(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	tokens, err := s.tokenStore.ListTokens(ctx)
	if err != nil {
		log.Printf("[oauth2] Failed to list tokens: %v", err)
		return 0
	}

	refreshed := 0
	for _, token := range tokens {
		if !token.IsExpiringSoon(s.config.RefreshMargin) {
			continue
		}
		provider, err := s.registry.Get(token.Provider)
		if err != nil {
			continue
		}

		err = s.refreshLocked(ctx, provider, token.AccountID)
		s.logAudit(token.Provider, token.AccountID, err)
		if err != nil {
			log.Printf("[oauth2] Failed to refresh token for %s/%s: %v", token.Provider, token.AccountID, err)
			continue
		}
		log.Printf("[oauth2] Refreshed token for %s/%s", token.Provider, token.AccountID)
		refreshed++
	}
	return refreshed
}

// RefreshToken manually triggers a refresh for a specific token
func (s *RefreshScheduler) RefreshToken(ctx context.Context, providerName entities.OAuthProvider, accountID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	provider, err := s.registry.Get(providerName)
	if err != nil {
		return err
	}
	return s.refreshLocked(ctx, provider, accountID)
}

func (s *RefreshScheduler) refreshLocked(ctx context.Context, provider Provider, accountID string) error {
	token, err := s.tokenStore.GetToken(ctx, provider.Name(), accountID)
	if err != nil {
		return err
	}
	if token.RefreshToken == "" {
		return ErrNoRefreshToken
	}

	resp, err := provider.RefreshToken(ctx, token.RefreshToken)
	if err != nil {
		return err
	}

	return s.tokenStore.UpdateTokenAfterRefresh(
		ctx,
		provider.Name(),
		accountID,
		resp.AccessToken,
		resp.RefreshToken,
		resp.ExpiresAt(),
	)
}

func (s *RefreshScheduler) logAudit(provider entities.OAuthProvider, accountID string, err error) {
	if s.auditService == nil {
		return
	}
	s.auditService.LogOAuth("oauth_token_refresh",
		fmt.Sprintf("Refresh %s token for %s", provider, accountID), err)
}

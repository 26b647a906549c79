// Package oauth2 authorizes the diary against backup providers and keeps
// their access tokens fresh.
package oauth2

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mrlokans/voicediary/internal/entities"
)

// ProviderConfig contains the configuration needed for OAuth2 authorization
type ProviderConfig struct {
	ClientID     string
	ClientSecret string // Optional for PKCE flows
	AuthURL      string
	TokenURL     string
	Scopes       []string
}

// TokenResponse contains tokens returned from the OAuth2 provider
type TokenResponse struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int // seconds until expiry
	Scope        string
	AccountID    string // Provider-specific account identifier
}

// ExpiresAt calculates the absolute expiry time from ExpiresIn
func (t *TokenResponse) ExpiresAt() *time.Time {
	if t.ExpiresIn <= 0 {
		return nil
	}
	exp := time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	return &exp
}

// AuthRequest is a prepared authorization redirect. Verifier and State must
// be kept until the callback arrives.
type AuthRequest struct {
	URL      string
	Verifier string
	State    string
}

// Provider defines the interface for OAuth2 providers
type Provider interface {
	// Name returns the provider identifier (e.g., "dropbox", "google")
	Name() entities.OAuthProvider

	// Config returns the provider's OAuth2 configuration
	Config() ProviderConfig

	// BuildAuthURL constructs the PKCE authorization URL.
	BuildAuthURL(redirectURL string) (*AuthRequest, error)

	// ExchangeCode exchanges an authorization code for tokens
	ExchangeCode(ctx context.Context, code, codeVerifier, redirectURL string) (*TokenResponse, error)

	// RefreshToken exchanges a refresh token for a new access token
	RefreshToken(ctx context.Context, refreshToken string) (*TokenResponse, error)

	// GetAccountInfo retrieves the account identifier for the authenticated user
	GetAccountInfo(ctx context.Context, accessToken string) (accountID string, err error)
}

// Registry manages registered OAuth2 providers
type Registry struct {
	mu        sync.RWMutex
	providers map[entities.OAuthProvider]Provider
}

// NewRegistry creates a registry holding providers.
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{
		providers: make(map[entities.OAuthProvider]Provider),
	}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds a provider to the registry
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
}

// Get retrieves a provider by name
func (r *Registry) Get(name entities.OAuthProvider) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, name)
	}
	return p, nil
}

// All returns all registered providers ordered by name.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		providers = append(providers, p)
	}
	sort.Slice(providers, func(i, j int) bool { return providers[i].Name() < providers[j].Name() })
	return providers
}

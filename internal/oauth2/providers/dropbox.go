package providers

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/mrlokans/voicediary/internal/entities"
	"github.com/mrlokans/voicediary/internal/oauth2"
)

const (
	dropboxAuthURL  = "https://www.dropbox.com/oauth2/authorize"
	dropboxTokenURL = "https://api.dropboxapi.com/oauth2/token"
	dropboxAPIURL   = "https://api.dropboxapi.com/2"
)

// DropboxProvider implements OAuth2 for Dropbox using PKCE
type DropboxProvider struct {
	appKey     string
	endpoints  Endpoints
	httpClient *http.Client
}

// NewDropboxProvider creates a new Dropbox OAuth2 provider
func NewDropboxProvider(appKey string) *DropboxProvider {
	return &DropboxProvider{
		appKey: appKey,
		endpoints: Endpoints{
			AuthURL:  dropboxAuthURL,
			TokenURL: dropboxTokenURL,
			APIURL:   dropboxAPIURL,
		},
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithEndpoints replaces the non-empty endpoints.
func (p *DropboxProvider) WithEndpoints(e Endpoints) *DropboxProvider {
	p.endpoints = mergeEndpoints(p.endpoints, e)
	return p
}

func (p *DropboxProvider) Name() entities.OAuthProvider {
	return entities.OAuthProviderDropbox
}

func (p *DropboxProvider) Config() oauth2.ProviderConfig {
	return oauth2.ProviderConfig{
		ClientID: p.appKey,
		AuthURL:  p.endpoints.AuthURL,
		TokenURL: p.endpoints.TokenURL,
		Scopes:   []string{}, // Dropbox scopes are set in the app console
	}
}

func (p *DropboxProvider) BuildAuthURL(redirectURL string) (*oauth2.AuthRequest, error) {
	pkce, err := oauth2.NewPKCE()
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("client_id", p.appKey)
	params.Set("response_type", "code")
	params.Set("code_challenge", pkce.Challenge)
	params.Set("code_challenge_method", "S256")
	params.Set("state", pkce.State)
	params.Set("token_access_type", "offline") // Get refresh token

	if redirectURL != "" {
		params.Set("redirect_uri", redirectURL)
	}

	return &oauth2.AuthRequest{
		URL:      p.endpoints.AuthURL + "?" + params.Encode(),
		Verifier: pkce.Verifier,
		State:    pkce.State,
	}, nil
}

func (p *DropboxProvider) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURL string) (*oauth2.TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("client_id", p.appKey)
	data.Set("code_verifier", codeVerifier)

	if redirectURL != "" {
		data.Set("redirect_uri", redirectURL)
	}

	return postTokenForm(ctx, p.httpClient, p.endpoints.TokenURL, "token exchange", data)
}

func (p *DropboxProvider) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.TokenResponse, error) {
	data := url.Values{}
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)
	data.Set("client_id", p.appKey)

	// Dropbox refresh doesn't rotate the refresh token.
	return postTokenForm(ctx, p.httpClient, p.endpoints.TokenURL, "token refresh", data)
}

func (p *DropboxProvider) GetAccountInfo(ctx context.Context, accessToken string) (string, error) {
	var account struct {
		AccountID string `json:"account_id"`
	}
	err := getAccount(ctx, p.httpClient, http.MethodPost, p.endpoints.APIURL+"/users/get_current_account", accessToken, &account)
	if err != nil {
		return "", err
	}
	return account.AccountID, nil
}

func mergeEndpoints(base, override Endpoints) Endpoints {
	if override.AuthURL != "" {
		base.AuthURL = override.AuthURL
	}
	if override.TokenURL != "" {
		base.TokenURL = override.TokenURL
	}
	if override.APIURL != "" {
		base.APIURL = override.APIURL
	}
	return base
}

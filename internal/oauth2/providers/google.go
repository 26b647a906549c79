package providers

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mrlokans/voicediary/internal/entities"
	"github.com/mrlokans/voicediary/internal/oauth2"
)

const (
	googleAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	googleTokenURL    = "https://oauth2.googleapis.com/token"
	googleUserInfoURL = "https://openidconnect.googleapis.com/v1"
)

// GoogleScopes grants access to the hidden app folder only.
var GoogleScopes = []string{
	"openid",
	"email",
	"https://www.googleapis.com/auth/drive.appdata",
}

// GoogleProvider implements OAuth2 for Google Drive using PKCE. Desktop
// clients still send their client secret, which Google does not treat as
// confidential.
type GoogleProvider struct {
	clientID     string
	clientSecret string
	endpoints    Endpoints
	httpClient   *http.Client
}

// NewGoogleProvider creates a new Google OAuth2 provider.
func NewGoogleProvider(clientID, clientSecret string) *GoogleProvider {
	return &GoogleProvider{
		clientID:     clientID,
		clientSecret: clientSecret,
		endpoints: Endpoints{
			AuthURL:  googleAuthURL,
			TokenURL: googleTokenURL,
			APIURL:   googleUserInfoURL,
		},
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// WithEndpoints replaces the non-empty endpoints.
func (p *GoogleProvider) WithEndpoints(e Endpoints) *GoogleProvider {
	p.endpoints = mergeEndpoints(p.endpoints, e)
	return p
}

func (p *GoogleProvider) Name() entities.OAuthProvider {
	return entities.OAuthProviderGoogle
}

func (p *GoogleProvider) Config() oauth2.ProviderConfig {
	return oauth2.ProviderConfig{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		AuthURL:      p.endpoints.AuthURL,
		TokenURL:     p.endpoints.TokenURL,
		Scopes:       GoogleScopes,
	}
}

func (p *GoogleProvider) BuildAuthURL(redirectURL string) (*oauth2.AuthRequest, error) {
	pkce, err := oauth2.NewPKCE()
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("client_id", p.clientID)
	params.Set("response_type", "code")
	params.Set("scope", strings.Join(GoogleScopes, " "))
	params.Set("code_challenge", pkce.Challenge)
	params.Set("code_challenge_method", "S256")
	params.Set("state", pkce.State)
	params.Set("access_type", "offline") // Get refresh token
	params.Set("prompt", "consent")      // Re-issue the refresh token on reconnect

	if redirectURL != "" {
		params.Set("redirect_uri", redirectURL)
	}

	return &oauth2.AuthRequest{
		URL:      p.endpoints.AuthURL + "?" + params.Encode(),
		Verifier: pkce.Verifier,
		State:    pkce.State,
	}, nil
}

func (p *GoogleProvider) ExchangeCode(ctx context.Context, code, codeVerifier, redirectURL string) (*oauth2.TokenResponse, error) {
	data := p.clientForm()
	data.Set("grant_type", "authorization_code")
	data.Set("code", code)
	data.Set("code_verifier", codeVerifier)
	if redirectURL != "" {
		data.Set("redirect_uri", redirectURL)
	}

	return postTokenForm(ctx, p.httpClient, p.endpoints.TokenURL, "token exchange", data)
}

func (p *GoogleProvider) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.TokenResponse, error) {
	data := p.clientForm()
	data.Set("grant_type", "refresh_token")
	data.Set("refresh_token", refreshToken)

	return postTokenForm(ctx, p.httpClient, p.endpoints.TokenURL, "token refresh", data)
}

// GetAccountInfo returns the account email, falling back to the subject id.
func (p *GoogleProvider) GetAccountInfo(ctx context.Context, accessToken string) (string, error) {
	var info struct {
		Sub   string `json:"sub"`
		Email string `json:"email"`
	}
	err := getAccount(ctx, p.httpClient, http.MethodGet, p.endpoints.APIURL+"/userinfo", accessToken, &info)
	if err != nil {
		return "", err
	}
	if info.Email != "" {
		return info.Email, nil
	}
	return info.Sub, nil
}

func (p *GoogleProvider) clientForm() url.Values {
	data := url.Values{}
	data.Set("client_id", p.clientID)
	if p.clientSecret != "" {
		data.Set("client_secret", p.clientSecret)
	}
	return data
}

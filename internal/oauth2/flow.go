package oauth2

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net"
	"net/http"
	"time"

	"github.com/mrlokans/voicediary/internal/entities"
	"github.com/mrlokans/voicediary/internal/tokenstore"
)

// FlowResult contains the result of a completed OAuth2 flow
type FlowResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    *time.Time
	AccountID    string
	Scope        string
}

// FlowHandler handles OAuth2 authorization flows
type FlowHandler struct {
	provider   Provider
	tokenStore *tokenstore.TokenStore
}

// NewFlowHandler creates a new OAuth2 flow handler. store may be nil, in
// which case tokens are returned but not persisted.
func NewFlowHandler(provider Provider, store *tokenstore.TokenStore) *FlowHandler {
	return &FlowHandler{
		provider:   provider,
		tokenStore: store,
	}
}

// CLIFlowConfig configures a CLI-based OAuth2 flow
type CLIFlowConfig struct {
	Port            int                      // Local server port for callback (default: 8089)
	Timeout         time.Duration            // Timeout waiting for authorization (default: 5 minutes)
	OnAuthURL       func(url string)         // Called with the authorization URL to display
	OnCodeReceived  func()                   // Called when authorization code is received
	OnTokenReceived func(result *FlowResult) // Called when tokens are received
}

// DefaultCLIFlowConfig returns default configuration for CLI flow
func DefaultCLIFlowConfig() CLIFlowConfig {
	return CLIFlowConfig{
		Port:    8089,
		Timeout: 5 * time.Minute,
		OnAuthURL: func(url string) {
			fmt.Println("\nOpen this URL in your browser to authorize:")
			fmt.Println()
			fmt.Println(url)
		},
		OnCodeReceived: func() {
			fmt.Println("\nAuthorization code received!")
		},
		OnTokenReceived: func(result *FlowResult) {
			fmt.Printf("\nSuccessfully authenticated account: %s\n", result.AccountID)
		},
	}
}

// RunCLIFlow executes the OAuth2 flow with a loopback callback server
func (h *FlowHandler) RunCLIFlow(ctx context.Context, cfg CLIFlowConfig) (*FlowResult, error) {
	if cfg.Port == 0 {
		cfg.Port = 8089
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Minute
	}

	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", cfg.Port))
	if err != nil {
		return nil, fmt.Errorf("port %d is not available: %w", cfg.Port, err)
	}
	redirectURL := fmt.Sprintf("http://localhost:%d/callback", listener.Addr().(*net.TCPAddr).Port)

	auth, err := h.provider.BuildAuthURL(redirectURL)
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to build auth URL: %w", err)
	}

	codeChan := make(chan string, 1)
	errChan := make(chan error, 1)

	mux := http.NewServeMux()
	mux.Handle("/callback", callbackHandler(auth.State, codeChan, errChan))
	server := &http.Server{Handler: mux, ReadHeaderTimeout: 10 * time.Second}

	go func() {
		if err := server.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			sendErr(errChan, fmt.Errorf("server error: %w", err))
		}
	}()
	defer server.Shutdown(context.Background())

	if cfg.OnAuthURL != nil {
		cfg.OnAuthURL(auth.URL)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()

	var code string
	select {
	case code = <-codeChan:
		if cfg.OnCodeReceived != nil {
			cfg.OnCodeReceived()
		}
	case err := <-errChan:
		return nil, err
	case <-timeoutCtx.Done():
		return nil, fmt.Errorf("timeout waiting for authorization")
	}

	return h.exchangeAndSave(ctx, code, auth.Verifier, redirectURL, cfg.OnTokenReceived)
}

// callbackHandler validates the provider redirect and forwards the code.
func callbackHandler(state string, codeChan chan<- string, errChan chan<- error) http.Handler {
	page := func(w http.ResponseWriter, title, body string) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprintf(w, `<html><body><h1>%s</h1><p>%s</p><p>You can close this window.</p></body></html>`,
			html.EscapeString(title), html.EscapeString(body))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		if errParam := query.Get("error"); errParam != "" {
			errDesc := query.Get("error_description")
			sendErr(errChan, fmt.Errorf("authorization error: %s - %s", errParam, errDesc))
			page(w, "Authorization Failed", errParam+": "+errDesc)
			return
		}

		if query.Get("state") != state {
			sendErr(errChan, ErrStateMismatch)
			w.WriteHeader(http.StatusBadRequest)
			page(w, "Security Error", "State mismatch detected.")
			return
		}

		code := query.Get("code")
		if code == "" {
			sendErr(errChan, fmt.Errorf("no authorization code received"))
			w.WriteHeader(http.StatusBadRequest)
			page(w, "Error", "No authorization code received.")
			return
		}

		page(w, "Authorization Successful!", "Return to the terminal to finish.")
		select {
		case codeChan <- code:
		default:
		}
	})
}

func sendErr(errChan chan<- error, err error) {
	select {
	case errChan <- err:
	default:
	}
}

func (h *FlowHandler) exchangeAndSave(
	ctx context.Context,
	code, codeVerifier, redirectURL string,
	onToken func(*FlowResult),
) (*FlowResult, error) {
	tokenResp, err := h.provider.ExchangeCode(ctx, code, codeVerifier, redirectURL)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange code: %w", err)
	}

	accountID := tokenResp.AccountID
	if accountID == "" {
		accountID, err = h.provider.GetAccountInfo(ctx, tokenResp.AccessToken)
		if err != nil {
			return nil, fmt.Errorf("failed to get account info: %w", err)
		}
	}

	result := &FlowResult{
		AccessToken:  tokenResp.AccessToken,
		RefreshToken: tokenResp.RefreshToken,
		TokenType:    tokenResp.TokenType,
		ExpiresAt:    tokenResp.ExpiresAt(),
		AccountID:    accountID,
		Scope:        tokenResp.Scope,
	}

	if h.tokenStore != nil {
		token := &entities.DecryptedToken{
			Provider:     h.provider.Name(),
			AccountID:    accountID,
			AccessToken:  tokenResp.AccessToken,
			RefreshToken: tokenResp.RefreshToken,
			TokenType:    tokenResp.TokenType,
			ExpiresAt:    result.ExpiresAt,
			Scope:        tokenResp.Scope,
		}

		if err := h.tokenStore.SaveToken(ctx, token); err != nil {
			return nil, fmt.Errorf("failed to save token: %w", err)
		}
	}

	if onToken != nil {
		onToken(result)
	}

	return result, nil
}

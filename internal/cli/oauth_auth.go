package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mrlokans/voicediary/internal/config"
	"github.com/mrlokans/voicediary/internal/entities"
	"github.com/mrlokans/voicediary/internal/entrypoint"
	"github.com/mrlokans/voicediary/internal/oauth2"
)

// OAuthAuthCommand connects a backup provider account through the browser
// and stores its tokens in the state database.
type OAuthAuthCommand struct {
	Provider entities.OAuthProvider
	Port     int
	Timeout  time.Duration

	config *config.Config
}

// NewDropboxAuthCommand creates the dropbox-auth command.
func NewDropboxAuthCommand() *OAuthAuthCommand {
	return &OAuthAuthCommand{Provider: entities.OAuthProviderDropbox}
}

// NewGoogleAuthCommand creates the google-auth command.
func NewGoogleAuthCommand() *OAuthAuthCommand {
	return &OAuthAuthCommand{Provider: entities.OAuthProviderGoogle}
}

// ParseFlags parses command line flags
func (cmd *OAuthAuthCommand) ParseFlags(args []string) error {
	name := string(cmd.Provider) + "-auth"
	fs := flag.NewFlagSet(name, flag.ExitOnError)

	cmd.config = config.NewConfig()
	fs.IntVar(&cmd.Port, "port", 8089, "Local port for OAuth callback server")
	fs.DurationVar(&cmd.Timeout, "timeout", 5*time.Minute, "How long to wait for the browser authorization")
	fs.StringVar(&cmd.config.Database.StatePath, "state-db", cmd.config.Database.StatePath, "Path to the state database where tokens are stored")

	switch cmd.Provider {
	case entities.OAuthProviderDropbox:
		fs.StringVar(&cmd.config.Dropbox.AppKey, "app-key", cmd.config.Dropbox.AppKey, "Dropbox App Key (or set DROPBOX_APP_KEY)")
	case entities.OAuthProviderGoogle:
		fs.StringVar(&cmd.config.Google.ClientID, "client-id", cmd.config.Google.ClientID, "Google OAuth client ID (or set GOOGLE_CLIENT_ID)")
		fs.StringVar(&cmd.config.Google.ClientSecret, "client-secret", cmd.config.Google.ClientSecret, "Google OAuth client secret (or set GOOGLE_CLIENT_SECRET)")
	}

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s %s [options]\n\n", os.Args[0], name)
		fmt.Fprintf(os.Stderr, "Connect a %s account for diary backups.\n\n", cmd.Provider)
		fmt.Fprintf(os.Stderr, "The command opens a loopback server and prints an authorization URL.\n")
		fmt.Fprintf(os.Stderr, "Add http://localhost:<port>/callback to the app's redirect URIs first.\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return err
	}

	switch {
	case cmd.Provider == entities.OAuthProviderDropbox && cmd.config.Dropbox.AppKey == "":
		return errors.New("dropbox app key required: set DROPBOX_APP_KEY environment variable or use -app-key flag")
	case cmd.Provider == entities.OAuthProviderGoogle && cmd.config.Google.ClientID == "":
		return errors.New("google client ID required: set GOOGLE_CLIENT_ID environment variable or use -client-id flag")
	}
	return nil
}

// Run executes the OAuth flow
func (cmd *OAuthAuthCommand) Run() error {
	app, err := entrypoint.NewApp(cmd.config)
	if err != nil {
		return err
	}
	defer app.Close()

	provider, err := app.Registry.Get(cmd.Provider)
	if err != nil {
		return err
	}

	title := fmt.Sprintf("%s OAuth Flow", strings.ToUpper(string(cmd.Provider[:1]))+string(cmd.Provider[1:]))
	fmt.Println(title)
	fmt.Println(strings.Repeat("=", len(title)))
	fmt.Printf("\nStarting local server on port %d...\n", cmd.Port)

	handler := oauth2.NewFlowHandler(provider, app.Tokens)
	flowCfg := oauth2.DefaultCLIFlowConfig()
	flowCfg.Port = cmd.Port
	flowCfg.Timeout = cmd.Timeout
	flowCfg.OnTokenReceived = nil
	result, err := handler.RunCLIFlow(context.Background(), flowCfg)
	if err != nil {
		app.Audit.LogOAuth("oauth_connect", fmt.Sprintf("Failed to connect %s", cmd.Provider), err)
		return err
	}
	app.Audit.LogOAuth("oauth_connect", fmt.Sprintf("Connected %s account %s", cmd.Provider, result.AccountID), nil)

	fmt.Printf("\nConnected %s account %s\n", cmd.Provider, result.AccountID)
	fmt.Printf("   Tokens saved to: %s\n", cmd.config.Database.StatePath)
	if result.ExpiresAt != nil {
		fmt.Printf("   Access token expires in %.1f hours (refreshed automatically)\n", time.Until(*result.ExpiresAt).Hours())
	}
	fmt.Println("\nEnable backups with:")
	fmt.Printf("  curl -X PUT localhost:%d/api/settings -d '{\"backup_provider\":\"%s\",\"backup_enabled\":true}'\n",
		cmd.config.HTTP.Port, cmd.Provider)
	return nil
}

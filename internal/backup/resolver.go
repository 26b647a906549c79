package backup

import (
	"context"
	"errors"
	"fmt"

	"github.com/mrlokans/voicediary/internal/entities"
	"github.com/mrlokans/voicediary/internal/oauth2"
	"github.com/mrlokans/voicediary/internal/settingsstore"
	"github.com/mrlokans/voicediary/internal/storage"
	"github.com/mrlokans/voicediary/internal/storage/providers/dropbox"
	"github.com/mrlokans/voicediary/internal/storage/providers/gdrive"
	"github.com/mrlokans/voicediary/internal/storage/providers/local"
	"github.com/mrlokans/voicediary/internal/tokenstore"
)

// Resolver picks the storage client for the configured provider.
type Resolver interface {
	Resolve(ctx context.Context) (client storage.Client, provider string, err error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context) (storage.Client, string, error)

func (f ResolverFunc) Resolve(ctx context.Context) (storage.Client, string, error) {
	return f(ctx)
}

// ProviderSettings reports the selected backup provider.
type ProviderSettings interface {
	BackupProvider(ctx context.Context) string
}

// ProviderResolver builds a client for whichever provider the settings name.
// Remote providers use the stored OAuth token of their most recent account.
type ProviderResolver struct {
	Settings      ProviderSettings
	LocalDir      string
	DropboxFolder string
	Tokens        *tokenstore.TokenStore
	Registry      *oauth2.Registry
}

func (r *ProviderResolver) Resolve(ctx context.Context) (storage.Client, string, error) {
	provider := r.Settings.BackupProvider(ctx)
	switch provider {
	case settingsstore.BackupProviderLocal:
		if r.LocalDir == "" {
			return nil, provider, fmt.Errorf("%w: BACKUP_LOCAL_DIR is empty", ErrNotConfigured)
		}
		client, err := local.NewClient(r.LocalDir)
		return client, provider, err

	case settingsstore.BackupProviderDropbox:
		ts, err := r.tokenSource(ctx, entities.OAuthProviderDropbox)
		if err != nil {
			return nil, provider, err
		}
		return dropbox.NewClient(ts, dropbox.WithFolder(r.DropboxFolder)), provider, nil

	case settingsstore.BackupProviderGoogle:
		ts, err := r.tokenSource(ctx, entities.OAuthProviderGoogle)
		if err != nil {
			return nil, provider, err
		}
		return gdrive.NewClient(ts), provider, nil

	case "":
		return nil, provider, ErrNotConfigured
	}
	return nil, provider, fmt.Errorf("%w: unknown provider %q", ErrNotConfigured, provider)
}

func (r *ProviderResolver) tokenSource(ctx context.Context, name entities.OAuthProvider) (storage.TokenSource, error) {
	if r.Registry == nil || r.Tokens == nil {
		return nil, fmt.Errorf("%w: %s is not set up", ErrNotConfigured, name)
	}
	provider, err := r.Registry.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConfigured, err)
	}
	ts, err := oauth2.ProviderTokenSource(ctx, provider, r.Tokens)
	if errors.Is(err, tokenstore.ErrNoToken) {
		return nil, fmt.Errorf("%w: %s account not connected", ErrNotConfigured, name)
	}
	return ts, err
}

package tokenstore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/voicediary/internal/crypto"
	"github.com/mrlokans/voicediary/internal/entities"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "state.db")), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&entities.OAuthToken{}))

	t.Cleanup(func() {
		sqlDB, _ := db.DB()
		sqlDB.Close()
	})
	return db
}

func newEncryptor(t *testing.T) *crypto.Encryptor {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	enc, err := crypto.NewEncryptorFromBase64(key)
	require.NoError(t, err)
	return enc
}

func setupTestStore(t *testing.T) *TokenStore {
	t.Helper()
	return New(setupTestDB(t), newEncryptor(t))
}

func TestSaveAndGetToken(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	t.Run("save and retrieve token", func(t *testing.T) {
		expiresAt := time.Now().Add(4 * time.Hour)
		token := &entities.DecryptedToken{
			Provider:     entities.OAuthProviderDropbox,
			AccountID:    "test@example.com",
			AccessToken:  "sl.access-token-12345",
			RefreshToken: "refresh-token-67890",
			TokenType:    "Bearer",
			ExpiresAt:    &expiresAt,
			Scope:        "files.content.write",
		}
		require.NoError(t, store.SaveToken(ctx, token))

		retrieved, err := store.GetToken(ctx, entities.OAuthProviderDropbox, "test@example.com")
		require.NoError(t, err)
		assert.Equal(t, token.AccessToken, retrieved.AccessToken)
		assert.Equal(t, token.RefreshToken, retrieved.RefreshToken)
		assert.Equal(t, token.Scope, retrieved.Scope)
		require.NotNil(t, retrieved.ExpiresAt)
		assert.WithinDuration(t, expiresAt, *retrieved.ExpiresAt, time.Second)
	})

	t.Run("missing token", func(t *testing.T) {
		_, err := store.GetToken(ctx, entities.OAuthProviderDropbox, "nobody@example.com")
		assert.ErrorIs(t, err, ErrNoToken)

		_, err = store.GetTokenByProvider(ctx, entities.OAuthProviderGoogle)
		assert.ErrorIs(t, err, ErrNoToken)
	})

	t.Run("save twice updates in place", func(t *testing.T) {
		token := &entities.DecryptedToken{
			Provider:    entities.OAuthProviderGoogle,
			AccountID:   "owner@example.com",
			AccessToken: "first",
		}
		require.NoError(t, store.SaveToken(ctx, token))
		token.AccessToken = "second"
		require.NoError(t, store.SaveToken(ctx, token))

		retrieved, err := store.GetToken(ctx, entities.OAuthProviderGoogle, "owner@example.com")
		require.NoError(t, err)
		assert.Equal(t, "second", retrieved.AccessToken)
		assert.Equal(t, "Bearer", retrieved.TokenType)

		tokens, err := store.ListTokens(ctx)
		require.NoError(t, err)
		assert.Len(t, tokens, 2)
	})
}

func TestGetTokenByProvider(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	require.NoError(t, store.SaveToken(ctx, &entities.DecryptedToken{
		Provider: entities.OAuthProviderDropbox, AccountID: "old@example.com", AccessToken: "access-1",
	}))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, store.SaveToken(ctx, &entities.DecryptedToken{
		Provider: entities.OAuthProviderDropbox, AccountID: "new@example.com", AccessToken: "access-2",
	}))

	retrieved, err := store.GetTokenByProvider(ctx, entities.OAuthProviderDropbox)
	require.NoError(t, err)
	assert.Equal(t, "new@example.com", retrieved.AccountID)
}

func TestDeleteProvider(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	require.NoError(t, store.SaveToken(ctx, &entities.DecryptedToken{
		Provider: entities.OAuthProviderDropbox, AccountID: "a", AccessToken: "x",
	}))
	require.NoError(t, store.SaveToken(ctx, &entities.DecryptedToken{
		Provider: entities.OAuthProviderGoogle, AccountID: "a", AccessToken: "y",
	}))

	require.NoError(t, store.DeleteProvider(ctx, entities.OAuthProviderDropbox))

	_, err := store.GetTokenByProvider(ctx, entities.OAuthProviderDropbox)
	assert.ErrorIs(t, err, ErrNoToken)
	_, err = store.GetTokenByProvider(ctx, entities.OAuthProviderGoogle)
	assert.NoError(t, err)
}

func TestUpdateTokenAfterRefresh(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	originalExpiry := time.Now().Add(time.Hour)
	require.NoError(t, store.SaveToken(ctx, &entities.DecryptedToken{
		Provider:     entities.OAuthProviderDropbox,
		AccountID:    "refresh@example.com",
		AccessToken:  "old-access-token",
		RefreshToken: "old-refresh-token",
		ExpiresAt:    &originalExpiry,
	}))

	newExpiry := time.Now().Add(4 * time.Hour)
	err := store.UpdateTokenAfterRefresh(ctx, entities.OAuthProviderDropbox, "refresh@example.com",
		"new-access-token", "", &newExpiry)
	require.NoError(t, err)

	retrieved, err := store.GetToken(ctx, entities.OAuthProviderDropbox, "refresh@example.com")
	require.NoError(t, err)
	assert.Equal(t, "new-access-token", retrieved.AccessToken)
	assert.Equal(t, "old-refresh-token", retrieved.RefreshToken)

	require.NoError(t, store.UpdateLastUsed(ctx, entities.OAuthProviderDropbox, "refresh@example.com"))
	tokens, err := store.ListTokens(ctx)
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	assert.NotNil(t, tokens[0].LastUsedAt)
	assert.NotNil(t, tokens[0].LastRefreshedAt)
}

func TestTokenEncryption(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	store := New(db, newEncryptor(t))

	require.NoError(t, store.SaveToken(ctx, &entities.DecryptedToken{
		Provider:     entities.OAuthProviderDropbox,
		AccountID:    "encrypt@example.com",
		AccessToken:  "my-secret-access-token",
		RefreshToken: "my-secret-refresh-token",
	}))

	var raw entities.OAuthToken
	require.NoError(t, db.Where("provider = ?", entities.OAuthProviderDropbox).First(&raw).Error)
	assert.NotContains(t, raw.AccessToken, "my-secret")
	assert.NotContains(t, raw.RefreshToken, "my-secret")

	t.Run("wrong key cannot decrypt", func(t *testing.T) {
		other := New(db, newEncryptor(t))
		_, err := other.GetToken(ctx, entities.OAuthProviderDropbox, "encrypt@example.com")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "decrypt")
	})
}

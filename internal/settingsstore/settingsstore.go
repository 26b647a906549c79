// Package settingsstore resolves effective application settings.
//
// Every value is looked up in the state database first, then in the
// environment, then falls back to a built-in default. Each getter has a
// matching Source method reporting where the value came from.
package settingsstore

import (
	"context"
	"log"
	"os"
	"strings"

	"github.com/mrlokans/voicediary/internal/crypto"
	"github.com/mrlokans/voicediary/internal/database/settings"
)

// Source describes where an effective setting value came from.
type Source string

const (
	SourceDatabase    Source = "database"
	SourceEnvironment Source = "environment"
	SourceDefault     Source = "default"
)

// SettingsStore layers database overrides on top of environment defaults.
type SettingsStore struct {
	repo      *settings.Repository
	encryptor *crypto.Encryptor
}

// New creates a SettingsStore. The encryptor seals the Gemini API key.
func New(repo *settings.Repository, encryptor *crypto.Encryptor) *SettingsStore {
	return &SettingsStore{repo: repo, encryptor: encryptor}
}

// lookup returns the first non-empty value from the database or envVar.
func (s *SettingsStore) lookup(ctx context.Context, key, envVar string) (string, Source) {
	value, ok, err := s.repo.Value(ctx, key)
	if err != nil {
		log.Printf("[settings] %v", err)
	}
	if ok && value != "" {
		return value, SourceDatabase
	}
	if envVar != "" {
		if envVal := strings.TrimSpace(os.Getenv(envVar)); envVal != "" {
			return envVal, SourceEnvironment
		}
	}
	return "", SourceDefault
}

func parseBool(value string) bool {
	switch strings.ToLower(value) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

func maskToken(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return "****"
	}
	return token[:4] + "****" + token[len(token)-4:]
}

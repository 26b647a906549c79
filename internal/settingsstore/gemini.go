package settingsstore

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/mrlokans/voicediary/internal/crypto"
	"github.com/mrlokans/voicediary/internal/entities"
)

// ErrEmptyAPIKey is returned when saving a blank API key.
var ErrEmptyAPIKey = errors.New("API key must not be empty")

// APIKeyInfo describes the configured Gemini key without revealing it.
type APIKeyInfo struct {
	Configured bool   `json:"configured"`
	Masked     string `json:"masked,omitempty"`
	Source     Source `json:"source"`
}

// GeminiAPIKey returns the Gemini API key (database > GEMINI_API_KEY > "").
// A plaintext value left in the database by an older version is sealed in
// place before being returned.
func (s *SettingsStore) GeminiAPIKey(ctx context.Context) (string, error) {
	key, _, err := s.geminiAPIKey(ctx)
	return key, err
}

// GeminiAPIKeySource returns where GeminiAPIKey came from.
func (s *SettingsStore) GeminiAPIKeySource(ctx context.Context) Source {
	_, source := s.lookup(ctx, entities.SettingKeyGeminiAPIKey, "GEMINI_API_KEY")
	return source
}

func (s *SettingsStore) geminiAPIKey(ctx context.Context) (string, Source, error) {
	value, source := s.lookup(ctx, entities.SettingKeyGeminiAPIKey, "GEMINI_API_KEY")
	if source != SourceDatabase {
		return value, source, nil
	}

	if crypto.IsSealed(value) {
		key, err := s.encryptor.Open(value)
		if err != nil {
			return "", source, fmt.Errorf("failed to decrypt Gemini API key: %w", err)
		}
		return key, source, nil
	}

	if err := s.SetGeminiAPIKey(ctx, value); err != nil {
		log.Printf("[settings] Failed to seal legacy Gemini API key: %v", err)
	} else {
		log.Printf("[settings] Migrated plaintext Gemini API key to encrypted storage")
	}
	return value, source, nil
}

// SetGeminiAPIKey seals and stores the API key.
func (s *SettingsStore) SetGeminiAPIKey(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return ErrEmptyAPIKey
	}
	sealed, err := s.encryptor.Seal(key)
	if err != nil {
		return fmt.Errorf("failed to encrypt Gemini API key: %w", err)
	}
	return s.repo.SetSetting(ctx, entities.SettingKeyGeminiAPIKey, sealed)
}

// ClearGeminiAPIKey removes the stored key, reverting to the environment.
func (s *SettingsStore) ClearGeminiAPIKey(ctx context.Context) error {
	return s.repo.DeleteSetting(ctx, entities.SettingKeyGeminiAPIKey)
}

// GeminiAPIKeyInfo reports whether a key is configured, masked.
func (s *SettingsStore) GeminiAPIKeyInfo(ctx context.Context) APIKeyInfo {
	key, source, err := s.geminiAPIKey(ctx)
	if err != nil {
		log.Printf("[settings] %v", err)
		return APIKeyInfo{Source: source}
	}
	return APIKeyInfo{
		Configured: key != "",
		Masked:     maskToken(key),
		Source:     source,
	}
}

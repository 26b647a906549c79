// Package crypto seals secrets kept in the state database (provider tokens,
// the Gemini API key) with AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
)

const (
	// KeySize is the required size for AES-256 keys (32 bytes)
	KeySize = 32

	// SealedPrefix marks values produced by Seal.
	SealedPrefix = "enc:v1:"

	// EnvEncryptionKey is consulted when no key is configured explicitly.
	EnvEncryptionKey = "TOKEN_ENCRYPTION_KEY"
)

var (
	ErrInvalidKeySize     = errors.New("encryption key must be 32 bytes for AES-256")
	ErrCiphertextTooShort = errors.New("ciphertext too short")
	ErrDecryptionFailed   = errors.New("decryption failed: authentication error")
	ErrNotSealed          = errors.New("value is not sealed")
)

// Encryptor handles AES-256-GCM encryption and decryption.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor creates an Encryptor from a raw 32-byte key.
func NewEncryptor(key []byte) (*Encryptor, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return &Encryptor{aead: aead}, nil
}

// NewEncryptorFromBase64 creates an Encryptor from a base64-encoded key.
func NewEncryptorFromBase64(encodedKey string) (*Encryptor, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(encodedKey))
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 key: %w", err)
	}
	return NewEncryptor(key)
}

// Encrypt returns base64(nonce || ciphertext). The empty string encrypts to itself.
func (e *Encryptor) Encrypt(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	nonce := make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt.
func (e *Encryptor) Decrypt(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}

	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}

	n := e.aead.NonceSize()
	if len(data) < n {
		return "", ErrCiphertextTooShort
	}

	plaintext, err := e.aead.Open(nil, data[:n], data[n:], nil)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// Seal encrypts plaintext and tags it with SealedPrefix so callers can tell
// sealed values from legacy plaintext rows.
func (e *Encryptor) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}
	ciphertext, err := e.Encrypt(plaintext)
	if err != nil {
		return "", err
	}
	return SealedPrefix + ciphertext, nil
}

// Open decrypts a value produced by Seal.
func (e *Encryptor) Open(value string) (string, error) {
	if value == "" {
		return "", nil
	}
	if !IsSealed(value) {
		return "", ErrNotSealed
	}
	return e.Decrypt(strings.TrimPrefix(value, SealedPrefix))
}

// IsSealed reports whether value carries the SealedPrefix tag.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// GenerateKey generates a new random 32-byte key for AES-256.
// Returns the key as a base64-encoded string.
func GenerateKey() (string, error) {
	key, err := GenerateKeyBytes()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(key), nil
}

// GenerateKeyBytes generates a new random 32-byte key for AES-256.
func GenerateKeyBytes() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// LoadEncryptor resolves the master key and builds an Encryptor from it.
// Sources are tried in order: explicit key, TOKEN_ENCRYPTION_KEY, key file.
// A missing key file is created with a freshly generated key.
func LoadEncryptor(explicitKey, keyFile string) (*Encryptor, error) {
	key, err := resolveKey(explicitKey, keyFile)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve encryption key: %w", err)
	}
	return NewEncryptorFromBase64(key)
}

func resolveKey(explicitKey, keyFile string) (string, error) {
	if explicitKey != "" {
		return explicitKey, nil
	}
	if envKey := os.Getenv(EnvEncryptionKey); envKey != "" {
		return envKey, nil
	}
	if keyFile == "" {
		return "", errors.New("no encryption key configured")
	}

	if data, err := os.ReadFile(keyFile); err == nil {
		return string(data), nil
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to read key file %s: %w", keyFile, err)
	}

	newKey, err := GenerateKey()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(keyFile), 0o700); err != nil {
		return "", fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(keyFile, []byte(newKey), 0o600); err != nil {
		return "", fmt.Errorf("failed to save encryption key to %s: %w", keyFile, err)
	}

	log.Printf("Generated new encryption key at %s", keyFile)
	return newKey, nil
}

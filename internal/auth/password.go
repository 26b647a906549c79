package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// MinPassphraseLength is the minimum accepted passphrase length.
const MinPassphraseLength = 12

// bcrypt ignores everything past 72 bytes.
const maxPassphraseBytes = 72

var (
	ErrInvalidPassphrase  = errors.New("invalid passphrase")
	ErrPassphraseTooShort = errors.New("passphrase must be at least 12 characters")
	ErrPassphraseTooLong  = errors.New("passphrase exceeds maximum length of 72 bytes")
)

// HashPassphrase creates a bcrypt hash of the passphrase.
func HashPassphrase(passphrase string, cost int) (string, error) {
	if len([]rune(passphrase)) < MinPassphraseLength {
		return "", ErrPassphraseTooShort
	}
	if len(passphrase) > maxPassphraseBytes {
		return "", ErrPassphraseTooLong
	}
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(passphrase), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassphrase compares a passphrase with its bcrypt hash.
func CheckPassphrase(passphrase, hash string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(passphrase))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrInvalidPassphrase
	}
	return err
}

// GenerateAPIToken returns a random token and the hash to store for it.
func GenerateAPIToken() (plaintext, hash string, err error) {
	plaintext, err = randomHex(32)
	if err != nil {
		return "", "", err
	}
	return plaintext, HashToken(plaintext), nil
}

// HashToken returns the hex SHA-256 of an API token.
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// tokenMatches compares a presented token against a stored hash in
// constant time.
func tokenMatches(token, storedHash string) bool {
	if token == "" || storedHash == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(HashToken(token)), []byte(storedHash)) == 1
}

// GenerateSessionSecret creates a random 32-byte hex secret for CSRF keys.
func GenerateSessionSecret() (string, error) {
	return randomHex(32)
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

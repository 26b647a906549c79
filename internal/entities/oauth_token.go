package entities

import (
	"time"
)

// OAuthProvider names a remote storage service the diary can back up to.
type OAuthProvider string

const (
	OAuthProviderDropbox OAuthProvider = "dropbox"
	OAuthProviderGoogle  OAuthProvider = "google"
)

// OAuthToken is the at-rest form of a provider credential. Token columns hold
// base64 AES-256-GCM ciphertext and are never serialized.
type OAuthToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Provider  OAuthProvider `gorm:"type:varchar(50);not null;uniqueIndex:idx_provider_account" json:"provider"`
	AccountID string        `gorm:"type:varchar(255);not null;uniqueIndex:idx_provider_account" json:"account_id"`

	AccessToken  string `gorm:"type:text;not null" json:"-"`
	RefreshToken string `gorm:"type:text" json:"-"`

	TokenType string     `gorm:"type:varchar(50);default:Bearer" json:"token_type"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	Scope     string     `gorm:"type:text" json:"scope,omitempty"`

	LastUsedAt      *time.Time `json:"last_used_at,omitempty"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at,omitempty"`
}

func (OAuthToken) TableName() string {
	return "oauth_tokens"
}

// IsExpiringSoon reports whether the token expires within the given window.
// Tokens without an expiry never expire.
func (t *OAuthToken) IsExpiringSoon(within time.Duration) bool {
	if t.ExpiresAt == nil {
		return false
	}
	return time.Now().Add(within).After(*t.ExpiresAt)
}

// DecryptedToken is the in-memory plaintext form of an OAuthToken.
type DecryptedToken struct {
	Provider     OAuthProvider
	AccountID    string
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresAt    *time.Time
	Scope        string
}

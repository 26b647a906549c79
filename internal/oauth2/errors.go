package oauth2

import "errors"

var (
	ErrNoRefreshToken   = errors.New("no refresh token available")
	ErrProviderNotFound = errors.New("provider not registered")
	ErrStateMismatch    = errors.New("state mismatch")
)

package backup

import "errors"

var (
	ErrNotConfigured = errors.New("backup provider is not configured")
	ErrNoBackup      = errors.New("no backup found")
	ErrInvalidBackup = errors.New("backup is not a valid diary database")
	ErrInProgress    = errors.New("another backup or restore is running")
)

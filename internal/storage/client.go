// Package storage defines the remote file store the diary is backed up to.
//
// Providers live under storage/providers: Dropbox, Google Drive (app data
// folder) and a plain local directory. Paths are relative to the provider's
// root.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"
)

// ErrNotFound is returned (possibly wrapped) when a remote path does not exist.
var ErrNotFound = errors.New("remote file not found")

// FileInfo contains metadata about a file or directory in remote storage
type FileInfo struct {
	Name        string    `json:"name"`
	Path        string    `json:"path"`
	IsDir       bool      `json:"is_dir"`
	Size        int64     `json:"size"`
	ModifiedAt  time.Time `json:"modified_at"`
	ID          string    `json:"id,omitempty"`           // Provider-specific identifier
	ContentHash string    `json:"content_hash,omitempty"` // Provider-specific content hash (if available)
}

// Client defines the interface for remote storage operations
type Client interface {
	// List returns entries in the specified directory path
	List(ctx context.Context, path string) ([]FileInfo, error)

	// Download retrieves the contents of a file
	Download(ctx context.Context, path string) (io.ReadCloser, error)

	// Upload writes content to a file path, replacing any existing file
	Upload(ctx context.Context, path string, content io.Reader) error

	// Delete removes a file
	Delete(ctx context.Context, path string) error

	// Exists checks if a file exists
	Exists(ctx context.Context, path string) (bool, error)

	// GetMetadata retrieves file info without downloading content
	GetMetadata(ctx context.Context, path string) (*FileInfo, error)
}

// TokenSource supplies bearer tokens to HTTP-backed providers.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// DownloadToFile streams a remote file into localPath and returns the number
// of bytes written. A partial file is removed on failure.
func DownloadToFile(ctx context.Context, client Client, remotePath, localPath string) (int64, error) {
	reader, err := client.Download(ctx, remotePath)
	if err != nil {
		return 0, err
	}
	defer reader.Close()

	if err := os.MkdirAll(filepath.Dir(localPath), 0o755); err != nil {
		return 0, fmt.Errorf("failed to create directory: %w", err)
	}
	f, err := os.Create(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create %s: %w", localPath, err)
	}

	n, err := io.Copy(f, reader)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(localPath)
		return 0, fmt.Errorf("failed to write %s: %w", localPath, err)
	}
	return n, nil
}

// UploadFile uploads the local file at localPath to remotePath and returns
// its size.
func UploadFile(ctx context.Context, client Client, localPath, remotePath string) (int64, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", localPath, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("failed to stat %s: %w", localPath, err)
	}
	if err := client.Upload(ctx, remotePath, f); err != nil {
		return 0, err
	}
	return info.Size(), nil
}

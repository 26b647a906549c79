// Package local implements storage.Client on a directory of the local
// filesystem, e.g. a mounted NAS share.
package local

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mrlokans/voicediary/internal/storage"
)

// Client stores files under a root directory.
type Client struct {
	root string
}

// NewClient creates the root directory if needed.
func NewClient(root string) (*Client, error) {
	if root == "" {
		return nil, errors.New("local storage root must be set")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Client{root: filepath.Clean(root)}, nil
}

// resolve maps a storage path onto the root, refusing paths that escape it.
func (c *Client) resolve(path string) (string, error) {
	clean := filepath.Clean("/" + filepath.FromSlash(path))
	full := filepath.Join(c.root, clean)
	if full != c.root && !strings.HasPrefix(full, c.root+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes storage root", path)
	}
	return full, nil
}

func notFound(err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: %v", storage.ErrNotFound, err)
	}
	return err
}

func (c *Client) List(ctx context.Context, path string) ([]storage.FileInfo, error) {
	dir, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, notFound(err)
	}

	files := make([]storage.FileInfo, 0, len(entries))
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, fileInfo(filepath.ToSlash(filepath.Join(path, entry.Name())), info))
	}
	return files, nil
}

func (c *Client) Download(ctx context.Context, path string) (io.ReadCloser, error) {
	full, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		return nil, notFound(err)
	}
	return f, nil
}

// Upload writes to a temporary sibling and renames it into place so readers
// never observe a partial file.
func (c *Client) Upload(ctx context.Context, path string, content io.Reader) error {
	full, err := c.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		return fmt.Errorf("failed to move file into place: %w", err)
	}
	return nil
}

func (c *Client) Delete(ctx context.Context, path string) error {
	full, err := c.resolve(path)
	if err != nil {
		return err
	}
	return notFound(os.Remove(full))
}

func (c *Client) Exists(ctx context.Context, path string) (bool, error) {
	_, err := c.GetMetadata(ctx, path)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (c *Client) GetMetadata(ctx context.Context, path string) (*storage.FileInfo, error) {
	full, err := c.resolve(path)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(full)
	if err != nil {
		return nil, notFound(err)
	}
	fi := fileInfo(path, info)
	return &fi, nil
}

func fileInfo(path string, info fs.FileInfo) storage.FileInfo {
	return storage.FileInfo{
		Name:       info.Name(),
		Path:       path,
		IsDir:      info.IsDir(),
		Size:       info.Size(),
		ModifiedAt: info.ModTime().UTC(),
	}
}

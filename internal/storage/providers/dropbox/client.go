// Package dropbox implements storage.Client on the Dropbox v2 HTTP API.
package dropbox

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"github.com/mrlokans/voicediary/internal/storage"
)

const (
	defaultAPIURL     = "https://api.dropboxapi.com/2"
	defaultContentURL = "https://content.dropboxapi.com/2"
)

// Client implements storage.Client for Dropbox. Paths are resolved
// relative to the configured folder.
type Client struct {
	tokenSource storage.TokenSource
	httpClient  *http.Client
	folder      string
	apiURL      string
	contentURL  string
}

// Option configures a Client.
type Option func(*Client)

// WithFolder sets the folder backups are stored in (default: app root).
func WithFolder(folder string) Option {
	return func(c *Client) {
		c.folder = strings.TrimSuffix(folder, "/")
	}
}

// WithBaseURLs points the client at alternative API hosts.
func WithBaseURLs(apiURL, contentURL string) Option {
	return func(c *Client) {
		c.apiURL = apiURL
		c.contentURL = contentURL
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Dropbox storage client
func NewClient(tokenSource storage.TokenSource, opts ...Option) *Client {
	c := &Client{
		tokenSource: tokenSource,
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		apiURL:      defaultAPIURL,
		contentURL:  defaultContentURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type metadata struct {
	Tag            string    `json:".tag"`
	Name           string    `json:"name"`
	PathDisplay    string    `json:"path_display"`
	ID             string    `json:"id"`
	ServerModified time.Time `json:"server_modified"`
	Size           int64     `json:"size"`
	ContentHash    string    `json:"content_hash"`
}

func (m metadata) fileInfo() storage.FileInfo {
	return storage.FileInfo{
		Name:        m.Name,
		Path:        m.PathDisplay,
		IsDir:       m.Tag == "folder",
		Size:        m.Size,
		ModifiedAt:  m.ServerModified,
		ID:          m.ID,
		ContentHash: m.ContentHash,
	}
}

type listFolderResponse struct {
	Entries []metadata `json:"entries"`
	Cursor  string     `json:"cursor"`
	HasMore bool       `json:"has_more"`
}

// apiError is the body Dropbox returns for endpoint-specific failures.
type apiError struct {
	Status       int    `json:"-"`
	ErrorSummary string `json:"error_summary"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("dropbox API error (status %d): %s", e.Status, e.ErrorSummary)
}

// resolve maps a storage path to an absolute Dropbox path. The root folder
// is addressed as "" by the API.
func (c *Client) resolve(p string) string {
	full := path.Join("/", c.folder, p)
	if full == "/" {
		return ""
	}
	return full
}

func (c *Client) List(ctx context.Context, p string) ([]storage.FileInfo, error) {
	var resp listFolderResponse
	err := c.rpc(ctx, "/files/list_folder", map[string]any{
		"path":            c.resolve(p),
		"recursive":       false,
		"include_deleted": false,
	}, &resp)
	if err != nil {
		return nil, err
	}

	var files []storage.FileInfo
	for {
		for _, entry := range resp.Entries {
			files = append(files, entry.fileInfo())
		}
		if !resp.HasMore {
			return files, nil
		}
		cursor := resp.Cursor
		resp = listFolderResponse{}
		if err := c.rpc(ctx, "/files/list_folder/continue", map[string]string{"cursor": cursor}, &resp); err != nil {
			return nil, err
		}
	}
}

func (c *Client) Download(ctx context.Context, p string) (io.ReadCloser, error) {
	resp, err := c.content(ctx, "/files/download", map[string]string{"path": c.resolve(p)}, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) Upload(ctx context.Context, p string, content io.Reader) error {
	resp, err := c.content(ctx, "/files/upload", map[string]any{
		"path":       c.resolve(p),
		"mode":       "overwrite",
		"autorename": false,
		"mute":       true,
	}, content)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) Delete(ctx context.Context, p string) error {
	return c.rpc(ctx, "/files/delete_v2", map[string]string{"path": c.resolve(p)}, nil)
}

func (c *Client) Exists(ctx context.Context, p string) (bool, error) {
	_, err := c.GetMetadata(ctx, p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func (c *Client) GetMetadata(ctx context.Context, p string) (*storage.FileInfo, error) {
	var m metadata
	if err := c.rpc(ctx, "/files/get_metadata", map[string]any{"path": c.resolve(p)}, &m); err != nil {
		return nil, err
	}
	info := m.fileInfo()
	return &info, nil
}

// rpc calls a JSON-in/JSON-out endpoint on the API host.
func (c *Client) rpc(ctx context.Context, endpoint string, arg, out any) error {
	body, err := json.Marshal(arg)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// content calls an endpoint on the content host, passing arg in the
// Dropbox-API-Arg header. The caller owns the response body.
func (c *Client) content(ctx context.Context, endpoint string, arg any, body io.Reader) (*http.Response, error) {
	header, err := json.Marshal(arg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal API arg: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.contentURL+endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Dropbox-API-Arg", string(header))
	if body != nil {
		req.Header.Set("Content-Type", "application/octet-stream")
	}
	return c.do(req)
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	token, err := c.tokenSource.Token(req.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("dropbox request failed: %w", err)
	}
	if resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &apiError{Status: resp.StatusCode}
	if json.Unmarshal(raw, apiErr) != nil || apiErr.ErrorSummary == "" {
		apiErr.ErrorSummary = strings.TrimSpace(string(raw))
	}
	if resp.StatusCode == http.StatusConflict && strings.Contains(apiErr.ErrorSummary, "not_found") {
		return nil, fmt.Errorf("%w: %v", storage.ErrNotFound, apiErr)
	}
	return nil, apiErr
}


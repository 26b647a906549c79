// Package gdrive implements storage.Client on the Google Drive v3 API,
// confined to the application's hidden appDataFolder.
//
// Drive addresses files by id, not path, so paths are treated as file
// names inside appDataFolder and looked up with a name query.
package gdrive

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/mrlokans/voicediary/internal/storage"
)

const (
	defaultBaseURL = "https://www.googleapis.com"
	appDataFolder  = "appDataFolder"
	fileFields     = "id,name,size,modifiedTime,md5Checksum,mimeType"
	folderMimeType = "application/vnd.google-apps.folder"
)

// Client implements storage.Client for Google Drive.
type Client struct {
	tokenSource storage.TokenSource
	httpClient  *http.Client
	baseURL     string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at an alternative API host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// NewClient creates a new Google Drive storage client.
func NewClient(tokenSource storage.TokenSource, opts ...Option) *Client {
	c := &Client{
		tokenSource: tokenSource,
		httpClient:  &http.Client{Timeout: 5 * time.Minute},
		baseURL:     defaultBaseURL,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type driveFile struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Size         int64     `json:"size,string"`
	ModifiedTime time.Time `json:"modifiedTime"`
	MD5Checksum  string    `json:"md5Checksum"`
	MimeType     string    `json:"mimeType"`
}

func (f driveFile) fileInfo() storage.FileInfo {
	return storage.FileInfo{
		Name:        f.Name,
		Path:        f.Name,
		IsDir:       f.MimeType == folderMimeType,
		Size:        f.Size,
		ModifiedAt:  f.ModifiedTime,
		ID:          f.ID,
		ContentHash: f.MD5Checksum,
	}
}

type fileList struct {
	Files         []driveFile `json:"files"`
	NextPageToken string      `json:"nextPageToken"`
}

// APIError is the error envelope returned by Google APIs.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("google drive API error (status %d): %s", e.Code, e.Message)
}

// List returns every file in appDataFolder. The path is ignored because the
// app folder is flat.
func (c *Client) List(ctx context.Context, _ string) ([]storage.FileInfo, error) {
	files, err := c.query(ctx, "trashed = false")
	if err != nil {
		return nil, err
	}
	out := make([]storage.FileInfo, 0, len(files))
	for _, f := range files {
		out = append(out, f.fileInfo())
	}
	return out, nil
}

func (c *Client) Download(ctx context.Context, p string) (io.ReadCloser, error) {
	f, err := c.find(ctx, p)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/drive/v3/files/"+url.PathEscape(f.ID)+"?alt=media", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Upload creates the file or replaces the content of an existing one using
// a resumable session: the first request carries metadata and returns the
// session URL, the second carries the bytes.
func (c *Client) Upload(ctx context.Context, p string, content io.Reader) error {
	body, size, err := sized(content)
	if err != nil {
		return err
	}

	existing, err := c.find(ctx, p)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return err
	}

	method := http.MethodPost
	endpoint := c.baseURL + "/upload/drive/v3/files?uploadType=resumable"
	meta := map[string]any{"name": path.Base(p), "parents": []string{appDataFolder}}
	if existing != nil {
		method = http.MethodPatch
		endpoint = c.baseURL + "/upload/drive/v3/files/" + url.PathEscape(existing.ID) + "?uploadType=resumable"
		meta = map[string]any{}
	}

	metaJSON, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(metaJSON))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("X-Upload-Content-Type", "application/octet-stream")
	req.Header.Set("X-Upload-Content-Length", fmt.Sprint(size))

	resp, err := c.do(req)
	if err != nil {
		return fmt.Errorf("failed to start upload session: %w", err)
	}
	resp.Body.Close()

	session := resp.Header.Get("Location")
	if session == "" {
		return errors.New("upload session URL missing from response")
	}

	req, err = http.NewRequestWithContext(ctx, http.MethodPut, session, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.ContentLength = size
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err = c.do(req)
	if err != nil {
		return fmt.Errorf("failed to upload content: %w", err)
	}
	resp.Body.Close()
	return nil
}

func (c *Client) Delete(ctx context.Context, p string) error {
	f, err := c.find(ctx, p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/drive/v3/files/"+url.PathEscape(f.ID), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

func (c *Client) Exists(ctx context.Context, p string) (bool, error) {
	_, err := c.find(ctx, p)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (c *Client) GetMetadata(ctx context.Context, p string) (*storage.FileInfo, error) {
	f, err := c.find(ctx, p)
	if err != nil {
		return nil, err
	}
	info := f.fileInfo()
	return &info, nil
}

// find returns the most recently modified file named like p.
func (c *Client) find(ctx context.Context, p string) (*driveFile, error) {
	files, err := c.query(ctx, fmt.Sprintf("name = '%s' and trashed = false", escapeQuery(path.Base(p))))
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: %s", storage.ErrNotFound, p)
	}
	latest := files[0]
	for _, f := range files[1:] {
		if f.ModifiedTime.After(latest.ModifiedTime) {
			latest = f
		}
	}
	return &latest, nil
}

func (c *Client) query(ctx context.Context, q string) ([]driveFile, error) {
	var files []driveFile
	pageToken := ""
	for {
		params := url.Values{
			"spaces":   {appDataFolder},
			"q":        {q},
			"fields":   {"nextPageToken,files(" + fileFields + ")"},
			"pageSize": {"100"},
		}
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/drive/v3/files?"+params.Encode(), nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create request: %w", err)
		}
		resp, err := c.do(req)
		if err != nil {
			return nil, err
		}

		var page fileList
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode file list: %w", err)
		}

		files = append(files, page.Files...)
		if page.NextPageToken == "" {
			return files, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	token, err := c.tokenSource.Token(req.Context())
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("google drive request failed: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp, nil
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var envelope struct {
		Error APIError `json:"error"`
	}
	apiErr := &APIError{Code: resp.StatusCode, Message: strings.TrimSpace(string(raw))}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %v", storage.ErrNotFound, apiErr)
	}
	return nil, apiErr
}

// sized returns a reader with a known length, buffering content when its
// size cannot be learned from the file system.
func sized(content io.Reader) (io.Reader, int64, error) {
	if f, ok := content.(*os.File); ok {
		info, err := f.Stat()
		if err == nil && info.Mode().IsRegular() {
			pos, err := f.Seek(0, io.SeekCurrent)
			if err == nil {
				return f, info.Size() - pos, nil
			}
		}
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, content); err != nil {
		return nil, 0, fmt.Errorf("failed to read content: %w", err)
	}
	return &buf, int64(buf.Len()), nil
}

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func escapeQuery(s string) string {
	return queryEscaper.Replace(s)
}

// Package transcribe turns a voice recording into a diary entry using the
// Gemini generateContent REST API.
package transcribe

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	DefaultBaseURL       = "https://generativelanguage.googleapis.com"
	DefaultModel         = "gemini-3-flash-preview"
	DefaultFallbackModel = "gemini-1.5-flash"
	DefaultTimeout       = 2 * time.Minute
)

// Config holds the Gemini endpoint settings.
type Config struct {
	BaseURL       string
	Model         string
	FallbackModel string // empty disables the retry
	Timeout       time.Duration
}

// Request describes one recording to transcribe.
type Request struct {
	AudioPath  string
	APIKey     string
	TonePrompt string // style guidelines inserted into the prompt
	Language   string // language name, e.g. "Japanese"
}

// Result is a generated diary entry.
type Result struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	Model   string `json:"model,omitempty"`
}

// Client calls Gemini over HTTP.
type Client struct {
	cfg        Config
	httpClient *http.Client
}

// NewClient fills unset Config fields with defaults.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	ResponseMimeType string `json:"responseMimeType"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Transcribe uploads the recording and returns the generated entry. When the
// primary model fails the fallback model is tried once.
func (c *Client) Transcribe(ctx context.Context, req Request) (*Result, error) {
	apiKey := strings.TrimSpace(req.APIKey)
	if apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	audio, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio: %w", err)
	}

	payload, err := json.Marshal(generateRequest{
		Contents: []content{{
			Role: "user",
			Parts: []part{
				{Text: BuildPrompt(req.TonePrompt, req.Language)},
				{InlineData: &inlineData{
					MimeType: MimeType(req.AudioPath),
					Data:     base64.StdEncoding.EncodeToString(audio),
				}},
			},
		}},
		GenerationConfig: generationConfig{ResponseMimeType: "application/json"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	model := c.cfg.Model
	text, err := c.generate(ctx, model, apiKey, payload)
	if err != nil && c.cfg.FallbackModel != "" && c.cfg.FallbackModel != model && ctx.Err() == nil {
		log.Printf("[transcribe] Primary model %s failed, retrying with %s: %v", model, c.cfg.FallbackModel, err)
		model = c.cfg.FallbackModel
		text, err = c.generate(ctx, model, apiKey, payload)
	}
	if err != nil {
		return nil, err
	}

	result, err := ParseResult(text)
	if err != nil {
		return nil, err
	}
	result.Model = model
	return result, nil
}

func (c *Client) generate(ctx context.Context, model, apiKey string, payload []byte) (string, error) {
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.cfg.BaseURL, url.PathEscape(model))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("gemini %s request failed: %w", model, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", decodeAPIError(model, resp)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode gemini response: %w", err)
	}
	if reason := out.PromptFeedback.BlockReason; reason != "" {
		return "", &APIError{Model: model, Status: resp.StatusCode, Code: "BLOCKED", Message: reason}
	}

	var text strings.Builder
	for _, candidate := range out.Candidates {
		for _, p := range candidate.Content.Parts {
			text.WriteString(p.Text)
		}
		if text.Len() > 0 {
			break
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return "", ErrEmptyResponse
	}
	return text.String(), nil
}

func decodeAPIError(model string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	apiErr := &APIError{Model: model, Status: resp.StatusCode, Message: strings.TrimSpace(string(raw))}

	var envelope struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error.Message != "" {
		apiErr.Message = envelope.Error.Message
		apiErr.Code = envelope.Error.Status
	}
	return apiErr
}

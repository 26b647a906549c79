package transcribe

import (
	"errors"
	"fmt"
)

var (
	ErrMissingAPIKey    = errors.New("gemini API key is not configured")
	ErrEmptyResponse    = errors.New("gemini returned no text")
	ErrMalformedJSON    = errors.New("response is not a JSON object")
	ErrIncompleteResult = errors.New("response is missing title or content")
)

// APIError is a non-2xx answer from the Gemini API.
type APIError struct {
	Model   string
	Status  int
	Code    string // e.g. "INVALID_ARGUMENT"
	Message string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gemini %s: %d %s: %s", e.Model, e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("gemini %s: %d: %s", e.Model, e.Status, e.Message)
}

// ParseError reports model output that could not be turned into an entry.
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse diary entry: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

package transcribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/voicediary/internal/settingsstore"
)

func TestBuildPrompt_Golden(t *testing.T) {
	g := goldie.New(t, goldie.WithFixtureDir("testdata"))
	prompt := BuildPrompt(settingsstore.TonePrompt(settingsstore.ToneReflective), "English")
	g.Assert(t, "prompt_reflective_en", []byte(prompt))
}

func TestBuildPrompt_Deterministic(t *testing.T) {
	a := BuildPrompt("- be brief", "Japanese")
	b := BuildPrompt("- be brief", "Japanese")
	assert.Equal(t, a, b)
	assert.Contains(t, a, "in Japanese.")
	assert.Contains(t, a, "title in Japanese")
}

func TestMimeType(t *testing.T) {
	assert.Equal(t, "audio/mp4", MimeType("memo.m4a"))
	assert.Equal(t, "audio/mpeg", MimeType("memo.MP3"))
	assert.Equal(t, "audio/webm", MimeType("/tmp/x/recording.webm"))
	assert.Equal(t, "audio/mp4", MimeType("memo.unknown"))
	assert.True(t, SupportedExtension("a.wav"))
	assert.False(t, SupportedExtension("a.txt"))
}

func TestParseResult(t *testing.T) {
	t.Run("plain JSON", func(t *testing.T) {
		r, err := ParseResult(`{"title": " Walk ", "content": "Went to the park."}`)
		require.NoError(t, err)
		assert.Equal(t, "Walk", r.Title)
		assert.Equal(t, "Went to the park.", r.Content)
	})

	t.Run("fenced", func(t *testing.T) {
		r, err := ParseResult("```JSON\n{\"title\": \"Rain\", \"content\": \"It rained.\"}\n```")
		require.NoError(t, err)
		assert.Equal(t, "Rain", r.Title)
	})

	t.Run("embedded in prose", func(t *testing.T) {
		r, err := ParseResult(`Here you go: {"title": "Tea", "content": "Had tea."} Enjoy!`)
		require.NoError(t, err)
		assert.Equal(t, "Had tea.", r.Content)
	})

	t.Run("missing content", func(t *testing.T) {
		_, err := ParseResult(`{"title": "Only a title", "content": "  "}`)
		assert.ErrorIs(t, err, ErrIncompleteResult)
		var parseErr *ParseError
		require.ErrorAs(t, err, &parseErr)
		assert.Contains(t, parseErr.Raw, "Only a title")
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := ParseResult("no json here")
		assert.ErrorIs(t, err, ErrMalformedJSON)

		_, err = ParseResult("{not json}")
		assert.ErrorIs(t, err, ErrMalformedJSON)
	})
}

// fakeGemini answers generateContent calls per model.
type fakeGemini struct {
	mu       sync.Mutex
	models   []string
	handlers map[string]http.HandlerFunc
}

func (f *fakeGemini) server(t *testing.T) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		model := strings.TrimSuffix(strings.TrimPrefix(r.URL.Path, "/v1beta/models/"), ":generateContent")
		f.mu.Lock()
		f.models = append(f.models, model)
		f.mu.Unlock()
		handler, ok := f.handlers[model]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		handler(w, r)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func replyText(text string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{"parts": []map[string]string{{"text": text}}},
			}},
		})
	}
}

func writeAudio(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "memo.m4a")
	require.NoError(t, os.WriteFile(path, []byte("fake audio"), 0o600))
	return path
}

func TestClient_Transcribe(t *testing.T) {
	fake := &fakeGemini{handlers: map[string]http.HandlerFunc{
		"primary": func(w http.ResponseWriter, r *http.Request) {
			var body generateRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Len(t, body.Contents, 1)
			parts := body.Contents[0].Parts
			require.Len(t, parts, 2)
			assert.Contains(t, parts[0].Text, "in English.")
			assert.Equal(t, "audio/mp4", parts[1].InlineData.MimeType)
			assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("fake audio")), parts[1].InlineData.Data)
			assert.Equal(t, "application/json", body.GenerationConfig.ResponseMimeType)
			replyText(`{"title": "Morning", "content": "Woke up early."}`)(w, r)
		},
	}}
	srv := fake.server(t)

	client := NewClient(Config{BaseURL: srv.URL, Model: "primary", FallbackModel: "backup"})
	result, err := client.Transcribe(context.Background(), Request{
		AudioPath:  writeAudio(t),
		APIKey:     "test-key",
		TonePrompt: "- be brief",
		Language:   "English",
	})
	require.NoError(t, err)
	assert.Equal(t, "Morning", result.Title)
	assert.Equal(t, "Woke up early.", result.Content)
	assert.Equal(t, "primary", result.Model)
	assert.Equal(t, []string{"primary"}, fake.models)
}

func TestClient_TranscribeFallsBack(t *testing.T) {
	fake := &fakeGemini{handlers: map[string]http.HandlerFunc{
		"primary": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte(`{"error": {"code": 500, "message": "overloaded", "status": "INTERNAL"}}`))
		},
		"backup": replyText("```json\n{\"title\": \"Evening\", \"content\": \"Cooked dinner.\"}\n```"),
	}}
	srv := fake.server(t)

	client := NewClient(Config{BaseURL: srv.URL, Model: "primary", FallbackModel: "backup"})
	result, err := client.Transcribe(context.Background(), Request{
		AudioPath: writeAudio(t), APIKey: "test-key", Language: "English",
	})
	require.NoError(t, err)
	assert.Equal(t, "Evening", result.Title)
	assert.Equal(t, "backup", result.Model)
	assert.Equal(t, []string{"primary", "backup"}, fake.models)
}

func TestClient_TranscribeAPIError(t *testing.T) {
	fake := &fakeGemini{handlers: map[string]http.HandlerFunc{
		"primary": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error": {"code": 400, "message": "API key not valid", "status": "INVALID_ARGUMENT"}}`))
		},
	}}
	srv := fake.server(t)

	client := NewClient(Config{BaseURL: srv.URL, Model: "primary"})
	_, err := client.Transcribe(context.Background(), Request{AudioPath: writeAudio(t), APIKey: "test-key"})

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "INVALID_ARGUMENT", apiErr.Code)
	assert.Equal(t, "API key not valid", apiErr.Message)
	assert.Equal(t, []string{"primary"}, fake.models)
}

func TestClient_TranscribeEmptyAndUnparseable(t *testing.T) {
	fake := &fakeGemini{handlers: map[string]http.HandlerFunc{
		"empty": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"candidates": []}`))
		},
		"prose": replyText("I could not hear anything."),
	}}
	srv := fake.server(t)
	ctx := context.Background()

	_, err := NewClient(Config{BaseURL: srv.URL, Model: "empty"}).
		Transcribe(ctx, Request{AudioPath: writeAudio(t), APIKey: "test-key"})
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = NewClient(Config{BaseURL: srv.URL, Model: "prose"}).
		Transcribe(ctx, Request{AudioPath: writeAudio(t), APIKey: "test-key"})
	assert.ErrorIs(t, err, ErrMalformedJSON)
}

func TestClient_TranscribeRequiresKeyAndFile(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://127.0.0.1:0"})

	_, err := client.Transcribe(context.Background(), Request{AudioPath: writeAudio(t), APIKey: "  "})
	assert.ErrorIs(t, err, ErrMissingAPIKey)

	_, err = client.Transcribe(context.Background(), Request{
		AudioPath: filepath.Join(t.TempDir(), "missing.m4a"), APIKey: "k",
	})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

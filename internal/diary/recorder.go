// Package diary turns voice recordings into stored diary entries.
package diary

import (
	"context"
	"errors"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/mrlokans/voicediary/internal/audit"
	"github.com/mrlokans/voicediary/internal/entities"
	"github.com/mrlokans/voicediary/internal/settingsstore"
	"github.com/mrlokans/voicediary/internal/transcribe"
)

// Transcriber generates an entry from a recording.
type Transcriber interface {
	Transcribe(ctx context.Context, req transcribe.Request) (*transcribe.Result, error)
}

// Settings supplies the user's preferences and credentials.
type Settings interface {
	DiaryPreferences(ctx context.Context) settingsstore.Preferences
	GeminiAPIKey(ctx context.Context) (string, error)
}

// EntryStore persists generated entries.
type EntryStore interface {
	Create(ctx context.Context, title, content string) (int64, error)
	Get(ctx context.Context, id int64) (*entities.DiaryEntry, error)
}

// Recorder runs the record pipeline: preferences, transcription, storage,
// audit.
type Recorder struct {
	transcriber Transcriber
	settings    Settings
	store       EntryStore
	audit       *audit.Service
	failures    *audit.Auditor
}

// NewRecorder creates a Recorder. auditService and failures may be nil.
func NewRecorder(transcriber Transcriber, settings Settings, store EntryStore, auditService *audit.Service, failures *audit.Auditor) *Recorder {
	return &Recorder{
		transcriber: transcriber,
		settings:    settings,
		store:       store,
		audit:       auditService,
		failures:    failures,
	}
}

// Record transcribes the recording at audioPath and stores the result.
// Nothing is written to the diary when any step before Create fails.
func (r *Recorder) Record(ctx context.Context, audioPath string) (*entities.DiaryEntry, error) {
	started := time.Now()
	audioFile := filepath.Base(audioPath)

	apiKey, err := r.settings.GeminiAPIKey(ctx)
	if err != nil {
		r.logTranscribe(audioFile, "", nil, started, err)
		return nil, fmt.Errorf("failed to load API key: %w", err)
	}
	prefs := r.settings.DiaryPreferences(ctx)

	result, err := r.transcriber.Transcribe(ctx, transcribe.Request{
		AudioPath:  audioPath,
		APIKey:     apiKey,
		TonePrompt: settingsstore.TonePrompt(prefs.Tone),
		Language:   prefs.Language.Name(),
	})
	if err != nil {
		r.keepFailure(audioFile, err)
		r.logTranscribe(audioFile, "", nil, started, err)
		return nil, fmt.Errorf("failed to transcribe %s: %w", audioFile, err)
	}

	id, err := r.store.Create(ctx, result.Title, result.Content)
	if err != nil {
		r.logTranscribe(audioFile, result.Model, nil, started, err)
		return nil, fmt.Errorf("failed to save entry: %w", err)
	}
	r.logTranscribe(audioFile, result.Model, &id, started, nil)
	if r.audit != nil {
		r.audit.LogEntry("entry_create", id, "Created entry from voice: "+result.Title, nil)
	}

	entry, err := r.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load entry %d: %w", id, err)
	}

	log.Printf("[diary] Recorded entry %d from %s (model %s, tone %s, language %s)",
		id, audioFile, result.Model, prefs.Tone, prefs.Language)
	return entry, nil
}

func (r *Recorder) logTranscribe(audioFile, model string, entryID *int64, started time.Time, err error) {
	if r.audit == nil {
		return
	}
	r.audit.LogTranscribe(audioFile, model, entryID, time.Since(started), err)
}

// keepFailure saves unparseable model output for later inspection.
func (r *Recorder) keepFailure(audioFile string, err error) {
	var parseErr *transcribe.ParseError
	if r.failures == nil || !errors.As(err, &parseErr) {
		return
	}
	payload := map[string]any{
		"audio_file": audioFile,
		"error":      parseErr.Error(),
		"raw":        parseErr.Raw,
		"failed_at":  time.Now().UTC().Format(time.RFC3339),
	}
	if _, saveErr := r.failures.SaveJSON("transcribe", payload); saveErr != nil {
		log.Printf("[diary] Failed to keep unparseable response for %s: %v", audioFile, saveErr)
	}
}

package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/voicediary/internal/entities"
)

// Recorder turns a recording into a stored entry.
type Recorder interface {
	Record(ctx context.Context, audioPath string) (*entities.DiaryEntry, error)
}

// TranscribeAudioTask turns an uploaded recording into a diary entry.
type TranscribeAudioTask struct {
	AudioPath string `json:"audio_path"`
	KeepAudio bool   `json:"keep_audio"`
}

// Config returns the queue configuration for transcription tasks.
func (t TranscribeAudioTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "transcribe_audio",
		MaxAttempts: 3,
		Backoff:     1 * time.Minute,
		Timeout:     5 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   7 * 24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// TranscribeAudioProcessor creates a processor function for TranscribeAudioTask.
// The recording is removed after a successful run unless KeepAudio is set;
// it is always kept after a failure so the task can be retried.
func TranscribeAudioProcessor(recorder Recorder) backlite.QueueProcessor[TranscribeAudioTask] {
	return func(ctx context.Context, task TranscribeAudioTask) error {
		if recorder == nil {
			return errors.New("recorder not configured")
		}

		entry, err := recorder.Record(ctx, task.AudioPath)
		if err != nil {
			return fmt.Errorf("transcribe %s: %w", filepath.Base(task.AudioPath), err)
		}

		log.Printf("[TASK] Created diary entry %d (%s) from %s", entry.ID, entry.Title, filepath.Base(task.AudioPath))

		if !task.KeepAudio {
			if err := os.Remove(task.AudioPath); err != nil && !errors.Is(err, os.ErrNotExist) {
				log.Printf("[TASK] Failed to remove %s: %v", task.AudioPath, err)
			}
		}
		return nil
	}
}

// NewTranscribeAudioQueue creates a backlite queue for transcription tasks.
func NewTranscribeAudioQueue(recorder Recorder) backlite.Queue {
	return backlite.NewQueue(TranscribeAudioProcessor(recorder))
}

package http

import (
	"errors"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mrlokans/voicediary/internal/tasks"
	"github.com/mrlokans/voicediary/internal/transcribe"
)

// DefaultMaxUploadBytes caps a single voice upload.
const DefaultMaxUploadBytes = 50 << 20

// VoiceController accepts recordings and turns them into entries, through the
// task queue when one is configured.
type VoiceController struct {
	recorder  VoiceRecorder
	queue     TaskQueue
	audioDir  string
	keepAudio bool
	maxBytes  int64
}

func NewVoiceController(recorder VoiceRecorder, queue TaskQueue, audioDir string, keepAudio bool, maxBytes int64) *VoiceController {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxUploadBytes
	}
	return &VoiceController{
		recorder:  recorder,
		queue:     queue,
		audioDir:  audioDir,
		keepAudio: keepAudio,
		maxBytes:  maxBytes,
	}
}

// Upload handles POST /api/entries/voice with a multipart "audio" file.
func (vc *VoiceController) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, vc.maxBytes)

	file, err := c.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, http.StatusRequestEntityTooLarge, "upload_too_large", "recording is too large")
			return
		}
		respondBadRequest(c, "audio file is required")
		return
	}
	if !transcribe.SupportedExtension(file.Filename) {
		respondError(c, http.StatusUnsupportedMediaType, "unsupported_format",
			"unsupported audio format: "+filepath.Ext(file.Filename))
		return
	}

	if err := os.MkdirAll(vc.audioDir, 0o700); err != nil {
		respondInternalError(c, err, "create audio directory")
		return
	}
	audioPath := filepath.Join(vc.audioDir, uuid.NewString()+strings.ToLower(filepath.Ext(file.Filename)))
	if err := c.SaveUploadedFile(file, audioPath); err != nil {
		respondInternalError(c, err, "save recording")
		return
	}

	if vc.queue != nil {
		taskID, err := vc.queue.Enqueue(tasks.TranscribeAudioTask{AudioPath: audioPath, KeepAudio: vc.keepAudio})
		if err != nil {
			vc.discard(audioPath)
			respondInternalError(c, err, "enqueue transcription")
			return
		}
		respondAccepted(c, "transcription queued", gin.H{"task_id": taskID})
		return
	}

	if vc.recorder == nil {
		vc.discard(audioPath)
		respondError(c, http.StatusServiceUnavailable, "transcription_unavailable", "transcription is not configured")
		return
	}

	entry, err := vc.recorder.Record(c.Request.Context(), audioPath)
	if !vc.keepAudio {
		vc.discard(audioPath)
	}
	if err != nil {
		respondTranscribeError(c, err)
		return
	}
	respondCreated(c, entry)
}

func (vc *VoiceController) discard(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("Failed to remove recording %s: %v", path, err)
	}
}

func respondTranscribeError(c *gin.Context, err error) {
	var apiErr *transcribe.APIError
	var parseErr *transcribe.ParseError
	switch {
	case errors.Is(err, transcribe.ErrMissingAPIKey):
		respondError(c, http.StatusPreconditionFailed, "gemini_key_missing", "Gemini API key is not configured")
	case errors.As(err, &apiErr):
		log.Printf("Transcription failed: %v", err)
		respondError(c, http.StatusBadGateway, "gemini_error", apiErr.Error())
	case errors.As(err, &parseErr), errors.Is(err, transcribe.ErrEmptyResponse):
		log.Printf("Transcription failed: %v", err)
		respondError(c, http.StatusBadGateway, "gemini_unparseable", "could not read a diary entry from the model response")
	default:
		respondInternalError(c, err, "record voice entry")
	}
}

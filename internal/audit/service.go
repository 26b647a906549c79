package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mrlokans/voicediary/internal/database/audit"
	"github.com/mrlokans/voicediary/internal/entities"
)

// Service provides high-level audit logging functionality.
type Service struct {
	repo    *audit.Repository
	pending sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records a generic audit event.
func (s *Service) Log(ctx context.Context, event *entities.AuditEvent) error {
	return s.repo.LogEvent(ctx, event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.repo.LogEvent(context.Background(), event); err != nil {
			log.Printf("Failed to log audit event %s: %v", event.Action, err)
		}
	}()
}

// Wait blocks until every LogAsync call has been written.
func (s *Service) Wait() {
	s.pending.Wait()
}

// LogEntry records a create, update or delete of a diary entry.
func (s *Service) LogEntry(action string, entryID int64, description string, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventEntry,
		Action:      action,
		Description: description,
		EntryID:     &entryID,
	}
	s.LogAsync(withOutcome(event, err))
}

// LogTranscribe records a voice recording turned (or not) into an entry.
// entryID is nil when no entry was written.
func (s *Service) LogTranscribe(audioFile, model string, entryID *int64, duration time.Duration, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventTranscribe,
		Action:      "voice_transcribe",
		Description: "Transcribed " + audioFile,
		EntryID:     entryID,
		Metadata: metadata(map[string]any{
			"audio_file":  audioFile,
			"model":       model,
			"duration_ms": duration.Milliseconds(),
		}),
	}
	if err != nil {
		event.Description = "Failed to transcribe " + audioFile
	}
	s.LogAsync(withOutcome(event, err))
}

// LogBackup records an upload or deletion of the remote backup.
func (s *Service) LogBackup(action, provider string, size int64, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventBackup,
		Action:      action,
		Description: fmt.Sprintf("Backup %s via %s", action, provider),
		Metadata:    metadata(map[string]any{"provider": provider, "size": size}),
	}
	s.LogAsync(withOutcome(event, err))
}

// LogRestore records a restore of the diary database from the remote backup.
func (s *Service) LogRestore(provider string, size int64, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventRestore,
		Action:      "backup_restore",
		Description: "Restored diary from " + provider,
		Metadata:    metadata(map[string]any{"provider": provider, "size": size}),
	}
	s.LogAsync(withOutcome(event, err))
}

// LogAuth records an authentication event.
func (s *Service) LogAuth(action string, ipAddr, userAgent string, success bool) {
	event := &entities.AuditEvent{
		EventType: entities.AuditEventAuth,
		Action:    action,
		IPAddress: ipAddr,
		UserAgent: truncate(userAgent, 500),
		Status:    entities.AuditStatusSuccess,
	}

	if !success {
		event.Status = entities.AuditStatusFailed
	}

	s.LogAsync(event)
}

// LogOAuth records a provider connection or token refresh.
func (s *Service) LogOAuth(action, description string, err error) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventAuth,
		Action:      action,
		Description: description,
	}
	s.LogAsync(withOutcome(event, err))
}

// LogSettings records a settings change event.
func (s *Service) LogSettings(action, description string) {
	event := &entities.AuditEvent{
		EventType:   entities.AuditEventSettings,
		Action:      action,
		Description: description,
		Status:      entities.AuditStatusSuccess,
	}

	s.LogAsync(event)
}

// GetEvents retrieves paginated audit events.
func (s *Service) GetEvents(ctx context.Context, filter audit.Filter, limit, offset int) ([]entities.AuditEvent, int64, error) {
	return s.repo.GetEvents(ctx, filter, limit, offset)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(ctx, cutoff)
}

func withOutcome(event *entities.AuditEvent, err error) *entities.AuditEvent {
	event.Status = entities.AuditStatusSuccess
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
	return event
}

func metadata(fields map[string]any) string {
	data, err := json.Marshal(fields)
	if err != nil {
		return ""
	}
	return string(data)
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

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
)

// AuditEventCleaner deletes audit events older than a retention period.
type AuditEventCleaner interface {
	DeleteOldEvents(ctx context.Context, retention time.Duration) (int64, error)
}

// CleanupAuditEventsTask prunes the audit log. When AudioDir is set it also
// removes recordings older than the same retention; those belong to
// transcriptions that ran out of attempts.
type CleanupAuditEventsTask struct {
	RetentionDays int    `json:"retention_days"`
	AudioDir      string `json:"audio_dir,omitempty"`
}

// Config returns the queue configuration for cleanup tasks.
func (t CleanupAuditEventsTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "cleanup_audit_events",
		MaxAttempts: 3,
		Backoff:     5 * time.Minute,
		Timeout:     2 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// CleanupAuditEventsProcessor creates a processor function for CleanupAuditEventsTask.
func CleanupAuditEventsProcessor(cleaner AuditEventCleaner) backlite.QueueProcessor[CleanupAuditEventsTask] {
	return func(ctx context.Context, task CleanupAuditEventsTask) error {
		if cleaner == nil {
			return errors.New("audit event cleaner not configured")
		}

		days := task.RetentionDays
		if days <= 0 {
			days = DefaultConfig().AuditRetentionDays
		}
		retention := time.Duration(days) * 24 * time.Hour

		deleted, err := cleaner.DeleteOldEvents(ctx, retention)
		if err != nil {
			return fmt.Errorf("cleanup audit events: %w", err)
		}
		log.Printf("[TASK] Removed %d audit events older than %d days", deleted, days)

		if task.AudioDir != "" {
			removed, err := sweepRecordings(task.AudioDir, time.Now().Add(-retention))
			if err != nil {
				return fmt.Errorf("cleanup recordings: %w", err)
			}
			if removed > 0 {
				log.Printf("[TASK] Removed %d abandoned recordings from %s", removed, task.AudioDir)
			}
		}
		return nil
	}
}

// sweepRecordings deletes regular files in dir last modified before cutoff.
// Subdirectories are left alone.
func sweepRecordings(dir string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		info, err := e.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.Printf("[TASK] Failed to remove %s: %v", e.Name(), err)
			continue
		}
		removed++
	}
	return removed, nil
}

// NewCleanupAuditEventsQueue creates a backlite queue for cleanup tasks.
func NewCleanupAuditEventsQueue(cleaner AuditEventCleaner) backlite.Queue {
	return backlite.NewQueue(CleanupAuditEventsProcessor(cleaner))
}

package tasks

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mikestefanello/backlite"

	"github.com/mrlokans/voicediary/internal/backup"
)

// Backupper uploads the diary database.
type Backupper interface {
	Backup(ctx context.Context) (*backup.Result, error)
}

// BackupDiaryTask uploads a snapshot of the diary to the backup provider.
type BackupDiaryTask struct {
	Reason string `json:"reason"` // "scheduled", "manual"
}

// Config returns the queue configuration for backup tasks.
func (t BackupDiaryTask) Config() backlite.QueueConfig {
	return backlite.QueueConfig{
		Name:        "backup_diary",
		MaxAttempts: 3,
		Backoff:     2 * time.Minute,
		Timeout:     10 * time.Minute,
		Retention: &backlite.Retention{
			Duration:   7 * 24 * time.Hour,
			OnlyFailed: false,
			Data:       &backlite.RetainData{OnlyFailed: true},
		},
	}
}

// BackupDiaryProcessor creates a processor function for BackupDiaryTask.
// A missing provider configuration is not retried.
func BackupDiaryProcessor(backupper Backupper) backlite.QueueProcessor[BackupDiaryTask] {
	return func(ctx context.Context, task BackupDiaryTask) error {
		if backupper == nil {
			return errors.New("backup service not configured")
		}

		result, err := backupper.Backup(ctx)
		if errors.Is(err, backup.ErrNotConfigured) {
			log.Printf("[TASK] Skipping %s backup: %v", task.Reason, err)
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s backup: %w", task.Reason, err)
		}

		log.Printf("[TASK] %s backup uploaded %d bytes to %s", task.Reason, result.Size, result.Provider)
		return nil
	}
}

// NewBackupDiaryQueue creates a backlite queue for backup tasks.
func NewBackupDiaryQueue(backupper Backupper) backlite.Queue {
	return backlite.NewQueue(BackupDiaryProcessor(backupper))
}

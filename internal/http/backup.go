package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/voicediary/internal/backup"
	"github.com/mrlokans/voicediary/internal/tasks"
)

// BackupController runs and reports on diary backups.
type BackupController struct {
	runner BackupRunner
	queue  TaskQueue
}

func NewBackupController(runner BackupRunner, queue TaskQueue) *BackupController {
	return &BackupController{runner: runner, queue: queue}
}

// Status handles GET /api/backup
func (bc *BackupController) Status(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 30*time.Second)
	defer cancel()
	c.JSON(http.StatusOK, bc.runner.Status(ctx))
}

// Run handles POST /api/backup. With ?async=true the backup is queued.
func (bc *BackupController) Run(c *gin.Context) {
	if c.Query("async") == "true" && bc.queue != nil {
		taskID, err := bc.queue.Enqueue(tasks.BackupDiaryTask{Reason: "manual"})
		if err != nil {
			respondInternalError(c, err, "enqueue backup")
			return
		}
		respondAccepted(c, "backup queued", gin.H{"task_id": taskID})
		return
	}

	result, err := bc.runner.Backup(c.Request.Context())
	if err != nil {
		respondBackupError(c, err, "backup")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Restore handles POST /api/backup/restore
func (bc *BackupController) Restore(c *gin.Context) {
	result, err := bc.runner.Restore(c.Request.Context())
	if err != nil {
		respondBackupError(c, err, "restore")
		return
	}
	c.JSON(http.StatusOK, result)
}

// Delete handles DELETE /api/backup
func (bc *BackupController) Delete(c *gin.Context) {
	if err := bc.runner.DeleteBackup(c.Request.Context()); err != nil {
		respondBackupError(c, err, "delete backup")
		return
	}
	respondSuccess(c, "backup deleted")
}

func respondBackupError(c *gin.Context, err error, op string) {
	switch {
	case errors.Is(err, backup.ErrNotConfigured):
		respondError(c, http.StatusPreconditionFailed, "backup_not_configured", err.Error())
	case errors.Is(err, backup.ErrNoBackup):
		respondError(c, http.StatusNotFound, "backup_not_found", err.Error())
	case errors.Is(err, backup.ErrInvalidBackup):
		respondError(c, http.StatusUnprocessableEntity, "backup_invalid", err.Error())
	case errors.Is(err, backup.ErrInProgress):
		respondError(c, http.StatusConflict, "backup_in_progress", err.Error())
	default:
		respondInternalError(c, err, op)
	}
}

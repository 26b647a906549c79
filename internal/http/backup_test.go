package http

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/voicediary/internal/backup"
	"github.com/mrlokans/voicediary/internal/tasks"
)

type fakeBackupRunner struct {
	err      error
	backups  int
	restores int
	deletes  int
}

func (f *fakeBackupRunner) Backup(ctx context.Context) (*backup.Result, error) {
	f.backups++
	if f.err != nil {
		return nil, f.err
	}
	return &backup.Result{Provider: "local", RemoteName: "diary.db", Size: 4096, At: time.Now()}, nil
}

func (f *fakeBackupRunner) Restore(ctx context.Context) (*backup.Result, error) {
	f.restores++
	if f.err != nil {
		return nil, f.err
	}
	return &backup.Result{Provider: "local", RemoteName: "diary.db", Size: 4096, Entries: 3, At: time.Now()}, nil
}

func (f *fakeBackupRunner) DeleteBackup(ctx context.Context) error {
	f.deletes++
	return f.err
}

func (f *fakeBackupRunner) Status(ctx context.Context) *backup.Status {
	return &backup.Status{Provider: "local", Configured: f.err == nil}
}

func TestBackup_Endpoints(t *testing.T) {
	runner := &fakeBackupRunner{}
	s := setupTestServer(t, func(cfg *RouterConfig) { cfg.Backup = runner })

	w := s.do(t, http.MethodGet, "/api/backup", nil)
	requireStatus(t, w, http.StatusOK)
	assert.True(t, decode[backup.Status](t, w).Configured)

	w = s.do(t, http.MethodPost, "/api/backup", nil)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, int64(4096), decode[backup.Result](t, w).Size)

	w = s.do(t, http.MethodPost, "/api/backup/restore", nil)
	requireStatus(t, w, http.StatusOK)
	assert.Equal(t, int64(3), decode[backup.Result](t, w).Entries)

	requireStatus(t, s.do(t, http.MethodDelete, "/api/backup", nil), http.StatusOK)

	assert.Equal(t, 1, runner.backups)
	assert.Equal(t, 1, runner.restores)
	assert.Equal(t, 1, runner.deletes)
}

func TestBackup_AsyncEnqueues(t *testing.T) {
	runner := &fakeBackupRunner{}
	queue := &fakeQueue{}
	s := setupTestServer(t, func(cfg *RouterConfig) {
		cfg.Backup = runner
		cfg.Tasks = queue
	})

	requireStatus(t, s.do(t, http.MethodPost, "/api/backup?async=true", nil), http.StatusAccepted)

	enqueued := queue.enqueued()
	require.Len(t, enqueued, 1)
	assert.Equal(t, tasks.BackupDiaryTask{Reason: "manual"}, enqueued[0])
	assert.Zero(t, runner.backups)
}

func TestBackup_ErrorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{backup.ErrNotConfigured, http.StatusPreconditionFailed, "backup_not_configured"},
		{backup.ErrNoBackup, http.StatusNotFound, "backup_not_found"},
		{fmt.Errorf("check: %w", backup.ErrInvalidBackup), http.StatusUnprocessableEntity, "backup_invalid"},
		{backup.ErrInProgress, http.StatusConflict, "backup_in_progress"},
		{fmt.Errorf("disk full"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			s := setupTestServer(t, func(cfg *RouterConfig) { cfg.Backup = &fakeBackupRunner{err: tt.err} })

			w := s.do(t, http.MethodPost, "/api/backup/restore", nil)
			requireStatus(t, w, tt.status)
			assert.Equal(t, tt.code, decode[ErrorResponse](t, w).Code)
		})
	}
}

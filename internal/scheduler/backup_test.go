package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrlokans/voicediary/internal/backup"
	"github.com/mrlokans/voicediary/internal/settingsstore"
	"github.com/mrlokans/voicediary/internal/tasks"
)

type staticSettings struct {
	mu  sync.Mutex
	cfg settingsstore.BackupConfig
}

func (s *staticSettings) BackupConfig(ctx context.Context) settingsstore.BackupConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg
}

func (s *staticSettings) set(cfg settingsstore.BackupConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

type countingBackupper struct {
	calls chan struct{}
}

func (b *countingBackupper) Backup(ctx context.Context) (*backup.Result, error) {
	b.calls <- struct{}{}
	return &backup.Result{Provider: "local"}, nil
}

type recordingQueue struct {
	tasks chan backlite.Task
}

func (q *recordingQueue) Enqueue(task backlite.Task) (string, error) {
	q.tasks <- task
	return "task-1", nil
}

func enabledConfig() settingsstore.BackupConfig {
	return settingsstore.BackupConfig{Provider: "local", Enabled: true, Schedule: "0 3 * * *"}
}

func TestBackupScheduler_StartDisabled(t *testing.T) {
	cfg := enabledConfig()
	cfg.Enabled = false
	s := NewBackupScheduler(&staticSettings{cfg: cfg}, nil, nil)

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.NextRunTime())
}

func TestBackupScheduler_StartWithoutProvider(t *testing.T) {
	cfg := enabledConfig()
	cfg.Provider = ""
	s := NewBackupScheduler(&staticSettings{cfg: cfg}, nil, nil)

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestBackupScheduler_InvalidSchedule(t *testing.T) {
	cfg := enabledConfig()
	cfg.Schedule = "every day"
	s := NewBackupScheduler(&staticSettings{cfg: cfg}, nil, nil)

	assert.Error(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())
}

func TestBackupScheduler_StartStop(t *testing.T) {
	s := NewBackupScheduler(&staticSettings{cfg: enabledConfig()}, nil, nil)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	next := s.NextRunTime()
	require.NotNil(t, next)
	assert.Equal(t, 3, next.Hour())
	assert.True(t, next.After(time.Now()))

	s.Stop()
	assert.False(t, s.IsRunning())
	assert.Nil(t, s.NextRunTime())

	// Stopping twice is harmless.
	s.Stop()
}

func TestBackupScheduler_Reschedule(t *testing.T) {
	settings := &staticSettings{cfg: enabledConfig()}
	s := NewBackupScheduler(settings, nil, nil)

	require.NoError(t, s.Start(context.Background()))

	cfg := enabledConfig()
	cfg.Schedule = "30 5 * * *"
	settings.set(cfg)
	require.NoError(t, s.Reschedule(context.Background()))

	// The old context watcher must not stop the new schedule.
	time.Sleep(20 * time.Millisecond)
	require.True(t, s.IsRunning())
	next := s.NextRunTime()
	require.NotNil(t, next)
	assert.Equal(t, 5, next.Hour())
	assert.Equal(t, 30, next.Minute())

	s.Stop()
}

func TestBackupScheduler_RescheduleOutlivesCallerContext(t *testing.T) {
	settings := &staticSettings{cfg: enabledConfig()}
	s := NewBackupScheduler(settings, nil, nil)
	require.NoError(t, s.Start(context.Background()))

	reqCtx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Reschedule(reqCtx))
	cancel()

	time.Sleep(20 * time.Millisecond)
	assert.True(t, s.IsRunning())
	s.Stop()
}

func TestBackupScheduler_StopsWithContext(t *testing.T) {
	s := NewBackupScheduler(&staticSettings{cfg: enabledConfig()}, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, s.Start(ctx))
	cancel()

	assert.Eventually(t, func() bool { return !s.IsRunning() }, time.Second, 10*time.Millisecond)
}

func TestBackupScheduler_RunNowInline(t *testing.T) {
	b := &countingBackupper{calls: make(chan struct{}, 1)}
	s := NewBackupScheduler(&staticSettings{cfg: enabledConfig()}, b, nil)

	s.RunNow()

	select {
	case <-b.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("backup did not run")
	}
}

func TestBackupScheduler_RunNowQueued(t *testing.T) {
	b := &countingBackupper{calls: make(chan struct{}, 1)}
	q := &recordingQueue{tasks: make(chan backlite.Task, 1)}
	s := NewBackupScheduler(&staticSettings{cfg: enabledConfig()}, b, q)

	s.RunNow()

	select {
	case task := <-q.tasks:
		assert.Equal(t, tasks.BackupDiaryTask{Reason: "manual"}, task)
	case <-time.After(2 * time.Second):
		t.Fatal("backup was not enqueued")
	}
	assert.Empty(t, b.calls)
}

// Package scheduler runs periodic diary backups on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/mikestefanello/backlite"
	"github.com/robfig/cron/v3"

	"github.com/mrlokans/voicediary/internal/backup"
	"github.com/mrlokans/voicediary/internal/settingsstore"
	"github.com/mrlokans/voicediary/internal/tasks"
)

// ScheduleSettings provides the effective backup configuration.
type ScheduleSettings interface {
	BackupConfig(ctx context.Context) settingsstore.BackupConfig
}

// Backupper uploads the diary database.
type Backupper interface {
	Backup(ctx context.Context) (*backup.Result, error)
}

// Enqueuer hands work to the background task queue.
type Enqueuer interface {
	Enqueue(task backlite.Task) (string, error)
}

// BackupScheduler triggers backups on the configured cron schedule.
type BackupScheduler struct {
	settings  ScheduleSettings
	backupper Backupper
	queue     Enqueuer

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	cancelFunc context.CancelFunc
	lifetime   context.Context
}

// NewBackupScheduler creates a new scheduler instance. When queue is nil
// backups run inline on the cron goroutine.
func NewBackupScheduler(settings ScheduleSettings, backupper Backupper, queue Enqueuer) *BackupScheduler {
	return &BackupScheduler{
		settings:  settings,
		backupper: backupper,
		queue:     queue,
		cron:      newCron(),
	}
}

func newCron() *cron.Cron {
	return cron.New(cron.WithParser(cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)))
}

// Start begins the scheduler if scheduled backups are enabled. It keeps
// running until Stop is called or ctx ends.
func (s *BackupScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lifetime = ctx
	return s.startLocked(ctx, ctx)
}

// startLocked reads the settings with ctx and ties the cron to lifetime.
func (s *BackupScheduler) startLocked(ctx, lifetime context.Context) error {
	if s.isRunning || lifetime.Err() != nil {
		return nil
	}

	cfg := s.settings.BackupConfig(ctx)
	if !cfg.Enabled {
		log.Printf("[backup] Scheduler disabled")
		return nil
	}
	if cfg.Provider == "" {
		log.Printf("[backup] Scheduler: no provider configured, skipping")
		return nil
	}

	if err := settingsstore.ValidateCronSchedule(cfg.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", cfg.Schedule, err)
	}

	// Stopped crons cannot be restarted reliably with new entries.
	s.cron = newCron()
	entryID, err := s.cron.AddFunc(cfg.Schedule, func() {
		s.run("scheduled")
	})
	if err != nil {
		return fmt.Errorf("failed to schedule backup job: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(lifetime)

	s.cron.Start()
	s.isRunning = true

	nextRun, _ := settingsstore.NextRunTime(cfg.Schedule)
	log.Printf("[backup] Scheduler started with schedule '%s' (%s) using %s. Next run: %v",
		cfg.Schedule, settingsstore.CronDescription(cfg.Schedule), cfg.Provider, nextRun)

	current := s.cron
	go func() {
		<-cancelCtx.Done()
		s.stop(current)
	}()

	return nil
}

// Stop waits for a running job and stops the scheduler.
func (s *BackupScheduler) Stop() {
	s.stop(nil)
}

// stop halts the scheduler; a non-nil only limits it to that cron instance.
func (s *BackupScheduler) stop(only *cron.Cron) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.isRunning || (only != nil && only != s.cron) {
		return
	}

	ctx := s.cron.Stop()
	<-ctx.Done()

	cancel := s.cancelFunc
	s.isRunning = false
	s.cancelFunc = nil
	if cancel != nil {
		cancel()
	}

	log.Printf("[backup] Scheduler stopped")
}

// Reschedule applies changed settings. ctx is only used to read them; the
// scheduler stays bound to the context given to Start.
func (s *BackupScheduler) Reschedule(ctx context.Context) error {
	s.Stop()

	s.mu.Lock()
	defer s.mu.Unlock()
	lifetime := s.lifetime
	if lifetime == nil {
		lifetime = context.Background()
		s.lifetime = lifetime
	}
	return s.startLocked(ctx, lifetime)
}

// RunNow triggers a backup immediately without waiting for it.
func (s *BackupScheduler) RunNow() {
	go s.run("manual")
}

// IsRunning returns whether the scheduler is active
func (s *BackupScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// NextRunTime returns when the next backup will occur, or nil when stopped.
func (s *BackupScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}

	for _, entry := range s.cron.Entries() {
		if entry.ID == s.entryID {
			t := entry.Next
			return &t
		}
	}
	return nil
}

func (s *BackupScheduler) run(reason string) {
	if s.queue != nil {
		id, err := s.queue.Enqueue(tasks.BackupDiaryTask{Reason: reason})
		if err != nil {
			log.Printf("[backup] Failed to enqueue %s backup: %v", reason, err)
			return
		}
		log.Printf("[backup] Enqueued %s backup as task %s", reason, id)
		return
	}

	if err := tasks.BackupDiaryProcessor(s.backupper)(context.Background(), tasks.BackupDiaryTask{Reason: reason}); err != nil {
		log.Printf("[backup] %v", err)
	}
}

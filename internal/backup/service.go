// Package backup copies the diary database to a remote provider and
// restores it from there.
package backup

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mrlokans/voicediary/internal/audit"
	"github.com/mrlokans/voicediary/internal/database"
	"github.com/mrlokans/voicediary/internal/settingsstore"
	"github.com/mrlokans/voicediary/internal/storage"
)

// DefaultRemoteName is the file name of the backup on the provider.
const DefaultRemoteName = "diary.db"

const (
	statusSuccess = "success"
	statusFailed  = "failed"
)

var sqliteHeader = []byte("SQLite format 3\x00")

// StatusStore persists the outcome of the last backup or restore.
type StatusStore interface {
	SetBackupStatus(ctx context.Context, status, message string) error
	BackupStatus(ctx context.Context) settingsstore.BackupStatus
}

// Result describes a finished backup or restore.
type Result struct {
	Provider   string    `json:"provider"`
	RemoteName string    `json:"remote_name"`
	Size       int64     `json:"size"`
	Entries    int64     `json:"entries,omitempty"`
	At         time.Time `json:"at"`
}

// Status combines the remote backup metadata with the last local outcome.
type Status struct {
	Provider   string                     `json:"provider"`
	Configured bool                       `json:"configured"`
	Remote     *storage.FileInfo          `json:"remote,omitempty"`
	Last       settingsstore.BackupStatus `json:"last"`
	Error      string                     `json:"error,omitempty"`
}

// Service runs backups and restores. Only one runs at a time.
type Service struct {
	store      *database.Store
	resolver   Resolver
	status     StatusStore
	audit      *audit.Service
	remoteName string

	mu sync.Mutex
}

// NewService creates a backup service. status and auditService may be nil.
func NewService(store *database.Store, resolver Resolver, status StatusStore, auditService *audit.Service, remoteName string) *Service {
	if remoteName == "" {
		remoteName = DefaultRemoteName
	}
	return &Service{
		store:      store,
		resolver:   resolver,
		status:     status,
		audit:      auditService,
		remoteName: remoteName,
	}
}

// RemoteName returns the backup file name on the provider.
func (s *Service) RemoteName() string {
	return s.remoteName
}

// Backup snapshots the live database and uploads the snapshot.
func (s *Service) Backup(ctx context.Context) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, ErrInProgress
	}
	defer s.mu.Unlock()

	client, provider, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.backup(ctx, client, provider)
	s.finish(ctx, "backup", provider, result, err)
	if s.audit != nil {
		var size int64
		if result != nil {
			size = result.Size
		}
		s.audit.LogBackup("backup_upload", provider, size, err)
	}
	return result, err
}

func (s *Service) backup(ctx context.Context, client storage.Client, provider string) (*Result, error) {
	tmpDir, err := os.MkdirTemp("", "voicediary-backup-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	snapshot := filepath.Join(tmpDir, s.remoteName)
	if err := s.store.Snapshot(ctx, snapshot); err != nil {
		return nil, err
	}

	size, err := storage.UploadFile(ctx, client, snapshot, s.remoteName)
	if err != nil {
		return nil, fmt.Errorf("failed to upload backup: %w", err)
	}

	return &Result{Provider: provider, RemoteName: s.remoteName, Size: size, At: time.Now().UTC()}, nil
}

// Restore replaces the live database with the remote backup. The store is
// reset and reinitialized so every consumer sees the restored data.
func (s *Service) Restore(ctx context.Context) (*Result, error) {
	if !s.mu.TryLock() {
		return nil, ErrInProgress
	}
	defer s.mu.Unlock()

	client, provider, err := s.resolver.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	result, err := s.restore(ctx, client, provider)
	s.finish(ctx, "restore", provider, result, err)
	if s.audit != nil {
		var size int64
		if result != nil {
			size = result.Size
		}
		s.audit.LogRestore(provider, size, err)
	}
	return result, err
}

func (s *Service) restore(ctx context.Context, client storage.Client, provider string) (*Result, error) {
	dbPath := s.store.Path()
	tmpPath := filepath.Join(filepath.Dir(dbPath), fmt.Sprintf(".restore-%s.db", uuid.NewString()))
	defer os.Remove(tmpPath)

	size, err := storage.DownloadToFile(ctx, client, s.remoteName, tmpPath)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, ErrNoBackup
	}
	if err != nil {
		return nil, fmt.Errorf("failed to download backup: %w", err)
	}

	if err := checkHeader(tmpPath); err != nil {
		return nil, err
	}
	entries, err := database.VerifyFile(ctx, tmpPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBackup, err)
	}

	if err := s.store.Replace(tmpPath); err != nil {
		return nil, fmt.Errorf("failed to replace database: %w", err)
	}
	if err := s.store.Initialize(ctx); err != nil {
		return nil, fmt.Errorf("failed to reopen restored database: %w", err)
	}

	return &Result{
		Provider:   provider,
		RemoteName: s.remoteName,
		Size:       size,
		Entries:    entries,
		At:         time.Now().UTC(),
	}, nil
}

// DeleteBackup removes the remote backup.
func (s *Service) DeleteBackup(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	client, provider, err := s.resolver.Resolve(ctx)
	if err != nil {
		return err
	}

	err = client.Delete(ctx, s.remoteName)
	if errors.Is(err, storage.ErrNotFound) {
		err = ErrNoBackup
	}
	if s.audit != nil {
		s.audit.LogBackup("backup_delete", provider, 0, err)
	}
	if err != nil {
		return err
	}
	log.Printf("[backup] Deleted %s from %s", s.remoteName, provider)
	return nil
}

// Status reports the remote backup, if any, and the last recorded outcome.
// Provider errors are reported in Status.Error rather than returned.
func (s *Service) Status(ctx context.Context) *Status {
	status := &Status{}
	if s.status != nil {
		status.Last = s.status.BackupStatus(ctx)
	}

	client, provider, err := s.resolver.Resolve(ctx)
	status.Provider = provider
	if err != nil {
		if !errors.Is(err, ErrNotConfigured) {
			status.Configured = true
		}
		status.Error = err.Error()
		return status
	}
	status.Configured = true

	info, err := client.GetMetadata(ctx, s.remoteName)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		status.Error = err.Error()
	default:
		status.Remote = info
	}
	return status
}

func (s *Service) finish(ctx context.Context, op, provider string, result *Result, err error) {
	state, message := statusSuccess, ""
	if err != nil {
		state, message = statusFailed, fmt.Sprintf("%s failed: %v", op, err)
		log.Printf("[backup] %s via %s failed: %v", op, provider, err)
	} else {
		message = fmt.Sprintf("%s of %d bytes via %s", op, result.Size, provider)
		log.Printf("[backup] Completed %s", message)
	}

	if s.status == nil {
		return
	}
	if serr := s.status.SetBackupStatus(ctx, state, message); serr != nil {
		log.Printf("[backup] Failed to record status: %v", serr)
	}
}

func checkHeader(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open backup: %w", err)
	}
	defer f.Close()

	header := make([]byte, len(sqliteHeader))
	if _, err := io.ReadFull(f, header); err != nil || !bytes.Equal(header, sqliteHeader) {
		return ErrInvalidBackup
	}
	return nil
}

package database

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"sync/atomic"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/voicediary/internal/events"
)

//go:embed schema.sql
var schemaSQL string

// Store owns the connection to the diary database file.
//
// The connection is opened lazily on first use. Concurrent first users share
// one in-flight open. Reset drops the connection so the next operation
// reopens the file, which is how a restored backup becomes visible.
type Store struct {
	path string
	bus  *events.Bus
	open Opener

	mu      sync.Mutex
	current *handle
	closed  bool

	retiring   sync.WaitGroup
	schemaRuns atomic.Int64
}

// handle is one open (or opening) connection. ready is closed once db or err
// is set. active counts operations currently using db.
type handle struct {
	ready  chan struct{}
	db     *gorm.DB
	err    error
	active sync.WaitGroup

	// gate marks the placeholder Replace installs while it swaps the file.
	gate bool
}

// Option configures a Store.
type Option func(*Store)

// WithOpener replaces the default SQLite opener.
func WithOpener(open Opener) Option {
	return func(s *Store) {
		s.open = open
	}
}

// WithLogLevel sets the gorm log level used by the default opener.
func WithLogLevel(level logger.LogLevel) Option {
	return func(s *Store) {
		s.open = SQLiteOpener(level)
	}
}

// Open returns a store for the file at path. Nothing touches the disk until
// the first operation. bus may be nil.
func Open(path string, bus *events.Bus, opts ...Option) *Store {
	s := &Store{
		path: path,
		bus:  bus,
		open: SQLiteOpener(logger.Warn),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// SchemaRuns reports how many times the schema statement has executed.
func (s *Store) SchemaRuns() int64 {
	return s.schemaRuns.Load()
}

// Initialize opens the connection and ensures the schema exists.
// It is safe to call repeatedly and concurrently.
func (s *Store) Initialize(ctx context.Context) error {
	_, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	release()
	return nil
}

// Reset detaches the current connection without touching the file.
// Operations already running finish on the old connection, which is closed
// once they drain. The next operation opens the file again.
func (s *Store) Reset() {
	s.mu.Lock()
	old := s.detachLocked()
	s.mu.Unlock()

	if old != nil {
		go s.retire(old)
	}

	log.Printf("[store] connection to %s reset", s.path)
	s.bus.Publish(events.Event{Kind: events.KindReset})
}

// Replace swaps the diary file for the one at src. The current connection
// is detached and every retired connection is closed before the rename, so
// no journal of the old file is still in use when the sidecar files are
// removed. Operations issued meanwhile wait and then open the new file.
// It must not be called from inside an operation.
func (s *Store) Replace(src string) error {
	gate := &handle{ready: make(chan struct{}), gate: true}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return &InitError{Path: s.path, Err: ErrStoreClosed}
	}
	old := s.detachLocked()
	s.current = gate
	s.mu.Unlock()

	if old != nil {
		go s.retire(old)
	}
	s.retiring.Wait()

	err := os.Rename(src, s.path)
	if err == nil {
		for _, suffix := range []string{"-wal", "-shm", "-journal"} {
			if rerr := os.Remove(s.path + suffix); rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
				log.Printf("[store] failed to remove stale %s%s: %v", s.path, suffix, rerr)
			}
		}
	}

	s.mu.Lock()
	if s.current == gate {
		s.current = nil
	}
	s.mu.Unlock()
	close(gate.ready)

	if err != nil {
		return fmt.Errorf("failed to replace %s: %w", s.path, err)
	}
	log.Printf("[store] replaced %s, connection reset", s.path)
	s.bus.Publish(events.Event{Kind: events.KindReset})
	return nil
}

// detachLocked clears the current handle and registers it for retirement.
// A Replace gate has no connection and is not retired. s.mu must be held.
func (s *Store) detachLocked() *handle {
	old := s.current
	s.current = nil
	if old == nil || old.gate {
		return nil
	}
	s.retiring.Add(1)
	return old
}

// Close detaches the connection and waits until every retired connection
// has drained and closed. It must not be called from inside an operation.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	old := s.detachLocked()
	s.mu.Unlock()

	if old != nil {
		go s.retire(old)
	}
	s.retiring.Wait()
	return nil
}

// Ping checks that the connection can be opened and answers.
func (s *Store) Ping(ctx context.Context) error {
	return s.withDB(ctx, func(db *gorm.DB) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	})
}

// acquire returns a ready connection and a release func that must be called
// when the caller is done with it.
func (s *Store) acquire(ctx context.Context) (*gorm.DB, func(), error) {
	for {
		s.mu.Lock()
		if s.closed {
			s.mu.Unlock()
			return nil, nil, &InitError{Path: s.path, Err: ErrStoreClosed}
		}
		h := s.current
		opener := h == nil
		if opener {
			h = &handle{ready: make(chan struct{})}
			s.current = h
		}
		s.mu.Unlock()

		if opener {
			s.establish(h)
		} else {
			select {
			case <-h.ready:
			case <-ctx.Done():
				return nil, nil, ctx.Err()
			}
		}

		s.mu.Lock()
		if s.current != h {
			// Reset or replaced while this handle was opening.
			s.mu.Unlock()
			continue
		}
		if h.err != nil {
			s.current = nil
			s.mu.Unlock()
			return nil, nil, &InitError{Path: s.path, Err: h.err}
		}
		h.active.Add(1)
		s.mu.Unlock()

		if opener {
			log.Printf("[store] diary database ready at %s", s.path)
			s.bus.Publish(events.Event{Kind: events.KindInit})
		}
		return h.db, h.active.Done, nil
	}
}

// establish opens the file and applies the schema, then releases waiters.
func (s *Store) establish(h *handle) {
	defer close(h.ready)

	db, err := s.open(s.path)
	if err != nil {
		h.err = err
		return
	}

	if err := db.Exec(schemaSQL).Error; err != nil {
		if cerr := closeDB(db); cerr != nil {
			log.Printf("[store] failed to close connection after schema error: %v", cerr)
		}
		h.err = fmt.Errorf("failed to apply schema: %w", err)
		return
	}
	s.schemaRuns.Add(1)
	h.db = db
}

// retire waits for a detached handle to finish opening and for its in-flight
// operations to drain, then closes it.
func (s *Store) retire(h *handle) {
	defer s.retiring.Done()

	<-h.ready
	if h.db == nil {
		return
	}
	h.active.Wait()
	if err := closeDB(h.db); err != nil {
		log.Printf("[store] failed to close retired connection: %v", err)
	}
}

func (s *Store) withDB(ctx context.Context, fn func(db *gorm.DB) error) error {
	db, release, err := s.acquire(ctx)
	if err != nil {
		return err
	}
	defer release()
	return fn(db.WithContext(ctx))
}

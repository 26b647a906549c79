package database

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/voicediary/internal/entities"
	"github.com/mrlokans/voicediary/internal/events"
)

// eventRecorder collects published event kinds.
type eventRecorder struct {
	mu    sync.Mutex
	kinds []events.Kind
}

func (r *eventRecorder) listen(e events.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.kinds = append(r.kinds, e.Kind)
}

func (r *eventRecorder) all() []events.Kind {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]events.Kind(nil), r.kinds...)
}

func (r *eventRecorder) count(kind events.Kind) int {
	n := 0
	for _, k := range r.all() {
		if k == kind {
			n++
		}
	}
	return n
}

func setupTestStore(t *testing.T, opts ...Option) (*Store, *eventRecorder) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "diary.db")
	bus := events.NewBus()
	rec := &eventRecorder{}
	bus.Subscribe(rec.listen)

	opts = append([]Option{WithLogLevel(logger.Silent)}, opts...)
	store := Open(dbPath, bus, opts...)
	t.Cleanup(func() {
		store.Close()
	})
	return store, rec
}

func TestStore_Open(t *testing.T) {
	t.Run("does not touch the disk", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "lazy.db")
		store := Open(dbPath, nil)
		defer store.Close()

		_, err := os.Stat(dbPath)
		assert.True(t, os.IsNotExist(err))
		assert.Equal(t, dbPath, store.Path())
		assert.Equal(t, int64(0), store.SchemaRuns())
	})

	t.Run("first operation creates the file and schema", func(t *testing.T) {
		store, rec := setupTestStore(t)

		assert.Empty(t, store.List(context.Background()))
		assert.FileExists(t, store.Path())
		assert.Equal(t, int64(1), store.SchemaRuns())
		assert.Equal(t, []events.Kind{events.KindInit}, rec.all())
	})
}

func TestStore_Initialize(t *testing.T) {
	ctx := context.Background()

	t.Run("repeated calls run the schema once", func(t *testing.T) {
		store, rec := setupTestStore(t)

		for i := 0; i < 5; i++ {
			require.NoError(t, store.Initialize(ctx))
		}
		assert.Equal(t, int64(1), store.SchemaRuns())
		assert.Equal(t, 1, rec.count(events.KindInit))
	})

	t.Run("concurrent calls share one initialization", func(t *testing.T) {
		var opens atomic.Int32
		gate := make(chan struct{})
		opener := func(path string) (*gorm.DB, error) {
			opens.Add(1)
			<-gate
			return SQLiteOpener(logger.Silent)(path)
		}
		store, rec := setupTestStore(t, WithOpener(opener))

		const callers = 16
		var wg sync.WaitGroup
		errs := make(chan error, callers)
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				errs <- store.Initialize(ctx)
			}()
		}

		require.Eventually(t, func() bool { return opens.Load() == 1 }, time.Second, time.Millisecond)
		close(gate)
		wg.Wait()
		close(errs)

		for err := range errs {
			assert.NoError(t, err)
		}
		assert.Equal(t, int32(1), opens.Load())
		assert.Equal(t, int64(1), store.SchemaRuns())
		assert.Equal(t, 1, rec.count(events.KindInit))

		_, err := store.Create(ctx, "After", "Concurrent init")
		assert.NoError(t, err)
	})

	t.Run("open failure is an InitError and is retried", func(t *testing.T) {
		var attempts atomic.Int32
		opener := func(path string) (*gorm.DB, error) {
			if attempts.Add(1) == 1 {
				return nil, errors.New("disk unavailable")
			}
			return SQLiteOpener(logger.Silent)(path)
		}
		store, rec := setupTestStore(t, WithOpener(opener))

		err := store.Initialize(ctx)
		var initErr *InitError
		require.ErrorAs(t, err, &initErr)
		assert.Contains(t, initErr.Error(), "disk unavailable")
		assert.Equal(t, 0, rec.count(events.KindInit))

		require.NoError(t, store.Initialize(ctx))
		assert.Equal(t, int32(2), attempts.Load())
		assert.Equal(t, 1, rec.count(events.KindInit))
	})

	t.Run("unreachable path fails writes with InitError", func(t *testing.T) {
		dbPath := filepath.Join(t.TempDir(), "missing", "dir", "diary.db")
		store := Open(dbPath, nil, WithLogLevel(logger.Silent))
		defer store.Close()

		_, err := store.Create(ctx, "Title", "Body")
		var initErr *InitError
		assert.ErrorAs(t, err, &initErr)
		assert.Empty(t, store.List(ctx))
	})

	t.Run("waiting caller honours context cancellation", func(t *testing.T) {
		gate := make(chan struct{})
		opener := func(path string) (*gorm.DB, error) {
			<-gate
			return SQLiteOpener(logger.Silent)(path)
		}
		store, _ := setupTestStore(t, WithOpener(opener))
		defer close(gate)

		go func() { _ = store.Initialize(context.Background()) }()
		require.Eventually(t, func() bool {
			store.mu.Lock()
			defer store.mu.Unlock()
			return store.current != nil
		}, time.Second, time.Millisecond)

		cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, store.Initialize(cctx), context.DeadlineExceeded)
	})
}

func TestStore_Reset(t *testing.T) {
	ctx := context.Background()

	t.Run("next operation reopens transparently", func(t *testing.T) {
		store, rec := setupTestStore(t)

		_, err := store.Create(ctx, "Before", "reset")
		require.NoError(t, err)

		store.Reset()

		_, err = store.Create(ctx, "After", "reset")
		require.NoError(t, err)

		entries := store.List(ctx)
		require.Len(t, entries, 2)
		assert.Equal(t, "After", entries[0].Title)
		assert.Equal(t, int64(2), store.SchemaRuns())
		assert.Equal(t, []events.Kind{
			events.KindInit, events.KindWrite,
			events.KindReset,
			events.KindInit, events.KindWrite,
		}, rec.all())
	})

	t.Run("survives many cycles", func(t *testing.T) {
		store, rec := setupTestStore(t)

		for i := 0; i < 10; i++ {
			_, err := store.Create(ctx, "Cycle", "entry")
			require.NoError(t, err)
			store.Reset()
		}

		assert.Len(t, store.List(ctx), 10)
		assert.Equal(t, 10, rec.count(events.KindReset))
		assert.Equal(t, 11, rec.count(events.KindInit))
	})

	t.Run("reset before first use only publishes reset", func(t *testing.T) {
		store, rec := setupTestStore(t)
		store.Reset()
		assert.Equal(t, []events.Kind{events.KindReset}, rec.all())
		assert.Equal(t, int64(0), store.SchemaRuns())
	})

	t.Run("in-flight operation finishes on the old connection", func(t *testing.T) {
		store, _ := setupTestStore(t)
		_, err := store.Create(ctx, "Kept", "on old connection")
		require.NoError(t, err)

		db, release, err := store.acquire(ctx)
		require.NoError(t, err)

		store.Reset()

		var n int64
		require.NoError(t, db.Model(&entities.DiaryEntry{}).Count(&n).Error)
		assert.Equal(t, int64(1), n)

		closed := make(chan struct{})
		go func() {
			store.Close()
			close(closed)
		}()

		select {
		case <-closed:
			t.Fatal("retired connection closed while still in use")
		case <-time.After(50 * time.Millisecond):
		}

		release()
		select {
		case <-closed:
		case <-time.After(5 * time.Second):
			t.Fatal("retired connection was never closed")
		}
	})

	t.Run("reset during opening moves waiters to a fresh connection", func(t *testing.T) {
		var opens atomic.Int32
		gate := make(chan struct{})
		opener := func(path string) (*gorm.DB, error) {
			if opens.Add(1) == 1 {
				<-gate
			}
			return SQLiteOpener(logger.Silent)(path)
		}
		store, rec := setupTestStore(t, WithOpener(opener))

		done := make(chan error, 1)
		go func() { done <- store.Initialize(ctx) }()
		require.Eventually(t, func() bool { return opens.Load() == 1 }, time.Second, time.Millisecond)

		store.Reset()
		close(gate)

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("initialize did not finish")
		}
		assert.Equal(t, int32(2), opens.Load())
		assert.Equal(t, int64(2), store.SchemaRuns())
		assert.Equal(t, []events.Kind{events.KindReset, events.KindInit}, rec.all())
	})

	t.Run("failed open after reset retries on a fresh connection", func(t *testing.T) {
		var opens atomic.Int32
		gate := make(chan struct{})
		opener := func(path string) (*gorm.DB, error) {
			if opens.Add(1) == 1 {
				<-gate
				return nil, errors.New("old file locked")
			}
			return SQLiteOpener(logger.Silent)(path)
		}
		store, rec := setupTestStore(t, WithOpener(opener))

		done := make(chan error, 1)
		go func() { done <- store.Initialize(ctx) }()
		require.Eventually(t, func() bool { return opens.Load() == 1 }, time.Second, time.Millisecond)

		store.Reset()
		close(gate)

		select {
		case err := <-done:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("initialize did not finish")
		}
		assert.Equal(t, int32(2), opens.Load())
		assert.Equal(t, int64(1), store.SchemaRuns())
		assert.Equal(t, []events.Kind{events.KindReset, events.KindInit}, rec.all())
	})

	t.Run("sees a file replaced on disk", func(t *testing.T) {
		store, _ := setupTestStore(t)
		_, err := store.Create(ctx, "Original", "content")
		require.NoError(t, err)

		replacementPath := filepath.Join(t.TempDir(), "replacement.db")
		replacement := Open(replacementPath, nil, WithLogLevel(logger.Silent))
		_, err = replacement.Create(ctx, "Restored", "from backup")
		require.NoError(t, err)
		_, err = replacement.Create(ctx, "Restored 2", "from backup")
		require.NoError(t, err)
		require.NoError(t, replacement.Close())

		require.NoError(t, os.Rename(replacementPath, store.Path()))
		store.Reset()

		entries := store.List(ctx)
		require.Len(t, entries, 2)
		assert.Equal(t, "Restored 2", entries[0].Title)
	})
}

func TestStore_Replace(t *testing.T) {
	ctx := context.Background()

	newDiary := func(t *testing.T, titles ...string) string {
		t.Helper()
		path := filepath.Join(t.TempDir(), "incoming.db")
		other := Open(path, nil, WithLogLevel(logger.Silent))
		for _, title := range titles {
			_, err := other.Create(ctx, title, "from backup")
			require.NoError(t, err)
		}
		require.NoError(t, other.Close())
		return path
	}

	t.Run("swaps the file and publishes reset", func(t *testing.T) {
		store, rec := setupTestStore(t)
		_, err := store.Create(ctx, "Original", "content")
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(store.Path()+"-journal", []byte("stale"), 0o600))

		mark := len(rec.all())
		require.NoError(t, store.Replace(newDiary(t, "Restored", "Restored 2")))

		assert.NoFileExists(t, store.Path()+"-journal")
		entries := store.List(ctx)
		require.Len(t, entries, 2)
		assert.Equal(t, "Restored 2", entries[0].Title)
		assert.Equal(t, []events.Kind{events.KindReset, events.KindInit}, rec.all()[mark:])
	})

	t.Run("waits for in-flight operations on the old file", func(t *testing.T) {
		store, _ := setupTestStore(t)
		_, err := store.Create(ctx, "Original", "content")
		require.NoError(t, err)
		src := newDiary(t, "Restored")

		db, release, err := store.acquire(ctx)
		require.NoError(t, err)

		replaced := make(chan error, 1)
		go func() { replaced <- store.Replace(src) }()

		select {
		case <-replaced:
			t.Fatal("file replaced while the old connection was in use")
		case <-time.After(50 * time.Millisecond):
		}
		assert.FileExists(t, src)

		var n int64
		require.NoError(t, db.Model(&entities.DiaryEntry{}).Count(&n).Error)
		assert.Equal(t, int64(1), n)
		release()

		select {
		case err := <-replaced:
			require.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Fatal("replace never finished")
		}
		entries := store.List(ctx)
		require.Len(t, entries, 1)
		assert.Equal(t, "Restored", entries[0].Title)
	})

	t.Run("missing source leaves the diary in place", func(t *testing.T) {
		store, rec := setupTestStore(t)
		_, err := store.Create(ctx, "Original", "content")
		require.NoError(t, err)

		mark := len(rec.all())
		require.Error(t, store.Replace(filepath.Join(t.TempDir(), "missing.db")))

		entries := store.List(ctx)
		require.Len(t, entries, 1)
		assert.Equal(t, "Original", entries[0].Title)
		assert.Equal(t, []events.Kind{events.KindInit}, rec.all()[mark:])
	})

	t.Run("closed store refuses", func(t *testing.T) {
		store, _ := setupTestStore(t)
		require.NoError(t, store.Close())

		var initErr *InitError
		require.ErrorAs(t, store.Replace(newDiary(t)), &initErr)
	})
}

func TestStore_Close(t *testing.T) {
	ctx := context.Background()
	store, _ := setupTestStore(t)

	_, err := store.Create(ctx, "Title", "Body")
	require.NoError(t, err)
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	_, err = store.Create(ctx, "Title", "Body")
	assert.ErrorIs(t, err, ErrStoreClosed)
	assert.Empty(t, store.List(ctx))
}

func TestStore_Ping(t *testing.T) {
	store, _ := setupTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, logger.Silent, ParseLogLevel("silent"))
	assert.Equal(t, logger.Error, ParseLogLevel("ERROR"))
	assert.Equal(t, logger.Info, ParseLogLevel(" info "))
	assert.Equal(t, logger.Warn, ParseLogLevel("warn"))
	assert.Equal(t, logger.Warn, ParseLogLevel("loud"))
}

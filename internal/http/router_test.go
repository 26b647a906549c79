package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/mikestefanello/backlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/voicediary/internal/database"
	"github.com/mrlokans/voicediary/internal/events"
)

type fakeQueue struct {
	mu     sync.Mutex
	tasks  []backlite.Task
	status backlite.TaskStatus
	err    error
}

func (q *fakeQueue) Enqueue(task backlite.Task) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.err != nil {
		return "", q.err
	}
	q.tasks = append(q.tasks, task)
	return fmt.Sprintf("task-%d", len(q.tasks)), nil
}

func (q *fakeQueue) Status(ctx context.Context, taskID string) (backlite.TaskStatus, error) {
	return q.status, q.err
}

func (q *fakeQueue) enqueued() []backlite.Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]backlite.Task(nil), q.tasks...)
}

type testServer struct {
	router *gin.Engine
	store  *database.Store
	bus    *events.Bus
}

// setupTestServer builds a router over a real diary store. Callers fill in
// the optional dependencies they exercise through mutate.
func setupTestServer(t *testing.T, mutate func(cfg *RouterConfig)) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	bus := events.NewBus()
	store := database.Open(filepath.Join(t.TempDir(), "diary.db"), bus, database.WithLogLevel(logger.Silent))
	t.Cleanup(func() { store.Close() })

	cfg := RouterConfig{
		Entries:  store,
		Bus:      bus,
		Checks:   map[string]Pinger{"diary": store},
		AudioDir: filepath.Join(t.TempDir(), "audio"),
		Version:  "test",
	}
	if mutate != nil {
		mutate(&cfg)
	}

	return &testServer{router: NewRouter(cfg), store: store, bus: bus}
}

func (s *testServer) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		var buf bytes.Buffer
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
		reader = &buf
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func requireStatus(t *testing.T, w *httptest.ResponseRecorder, status int) {
	t.Helper()
	require.Equal(t, status, w.Code, w.Body.String())
}

package http

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm/logger"

	"github.com/mrlokans/voicediary/internal/auth"
	"github.com/mrlokans/voicediary/internal/config"
	"github.com/mrlokans/voicediary/internal/database"
	"github.com/mrlokans/voicediary/internal/database/settings"
)

func setupAuthServer(t *testing.T) *testServer {
	t.Helper()
	cfg := config.Auth{
		Mode:             config.AuthModeLocal,
		SessionLifetime:  time.Hour,
		BcryptCost:       bcrypt.MinCost,
		MaxLoginAttempts: 5,
		RateLimitWindow:  time.Minute,
		LockoutDuration:  time.Minute,
	}

	state, err := database.OpenState(filepath.Join(t.TempDir(), "state.db"), logger.Silent)
	require.NoError(t, err)
	t.Cleanup(func() { state.Close() })

	svc := auth.NewService(settings.NewRepository(state.DB), cfg)
	sqlDB, err := state.DB.DB()
	require.NoError(t, err)
	sm, err := auth.NewSessionManager(sqlDB, cfg)
	require.NoError(t, err)
	controller := auth.NewAuthController(svc, sm, cfg, nil)
	t.Cleanup(controller.Stop)

	return setupTestServer(t, func(rc *RouterConfig) {
		rc.AuthConfig = cfg
		rc.AuthService = svc
		rc.SessionManager = sm
		rc.AuthMiddleware = auth.NewMiddleware(svc, sm, cfg)
		rc.AuthController = controller
	})
}

func TestRouter_LocalAuth(t *testing.T) {
	s := setupAuthServer(t)

	requireStatus(t, s.do(t, http.MethodGet, "/health", nil), http.StatusOK)
	requireStatus(t, s.do(t, http.MethodGet, "/api/entries", nil), http.StatusUnauthorized)
	requireStatus(t, s.do(t, http.MethodGet, "/api/events", nil), http.StatusUnauthorized)

	w := s.do(t, http.MethodPost, "/api/auth/setup", map[string]string{"passphrase": "a quiet morning walk"})
	requireStatus(t, w, http.StatusCreated)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	requireStatus(t, w, http.StatusOK)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/token", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	requireStatus(t, w, http.StatusOK)
	token := decode[map[string]any](t, w)["token"].(string)

	req = httptest.NewRequest(http.MethodPost, "/api/entries", strings.NewReader(`{"title":"t","content":"c"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	requireStatus(t, w, http.StatusCreated)
}

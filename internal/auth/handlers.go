package auth

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/voicediary/internal/config"
)

// AuthAuditor records authentication outcomes.
type AuthAuditor interface {
	LogAuth(action string, ipAddr, userAgent string, success bool)
}

// AuthController serves the /api/auth endpoints.
type AuthController struct {
	service        *Service
	sessionManager *SessionManager
	rateLimiter    *RateLimiter
	auditor        AuthAuditor
}

// NewAuthController creates a new authentication controller. auditor may be nil.
func NewAuthController(service *Service, sessionManager *SessionManager, cfg config.Auth, auditor AuthAuditor) *AuthController {
	return &AuthController{
		service:        service,
		sessionManager: sessionManager,
		auditor:        auditor,
		rateLimiter: NewRateLimiter(RateLimitConfig{
			MaxAttempts:     cfg.MaxLoginAttempts,
			WindowDuration:  cfg.RateLimitWindow,
			LockoutDuration: cfg.LockoutDuration,
		}),
	}
}

// RegisterRoutes registers authentication routes under group.
func (ac *AuthController) RegisterRoutes(group *gin.RouterGroup) {
	group.GET("/status", ac.Status)
	group.POST("/setup", ac.Setup)
	group.POST("/login", ac.Login)
	group.POST("/logout", ac.Logout)
	group.POST("/passphrase", ac.ChangePassphrase)
	group.POST("/token", ac.GenerateToken)
	group.DELETE("/token", ac.RevokeToken)
}

// Stop cleans up resources (rate limiter background goroutine).
func (ac *AuthController) Stop() {
	ac.rateLimiter.Stop()
}

type passphraseRequest struct {
	Passphrase string `json:"passphrase" binding:"required"`
}

type changePassphraseRequest struct {
	Current string `json:"current" binding:"required"`
	New     string `json:"new" binding:"required"`
}

// Status reports the auth mode and whether this request is logged in. It
// also hands out the CSRF token for the session.
func (ac *AuthController) Status(c *gin.Context) {
	setUp, err := ac.service.IsSetUp(c.Request.Context())
	if err != nil {
		log.Printf("[auth] Failed to check setup: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	authenticated := !ac.service.IsAuthEnabled() || IsAuthenticated(c) ||
		(ac.sessionManager != nil && ac.sessionManager.IsAuthenticated(c.Request))

	c.JSON(http.StatusOK, gin.H{
		"mode":           ac.service.Mode(),
		"setup_required": ac.service.IsAuthEnabled() && !setUp,
		"authenticated":  authenticated,
		"has_api_token":  ac.service.HasToken(c.Request.Context()),
		"csrf_token":     GetCSRFToken(c),
	})
}

// Setup stores the first owner passphrase and logs the caller in.
func (ac *AuthController) Setup(c *gin.Context) {
	var req passphraseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "passphrase is required"})
		return
	}

	err := ac.service.Setup(c.Request.Context(), req.Passphrase)
	switch {
	case errors.Is(err, ErrAlreadySetUp):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ErrPassphraseTooShort), errors.Is(err, ErrPassphraseTooLong):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Printf("[auth] Setup failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	ac.audit(c, "auth_setup", true)
	ac.startSession(c, http.StatusCreated, "passphrase set")
}

// Login checks the passphrase and starts a session.
func (ac *AuthController) Login(c *gin.Context) {
	var req passphraseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "passphrase is required"})
		return
	}

	ip := c.ClientIP()
	if allowed, retryAfter := ac.rateLimiter.Allow(ip); !allowed {
		c.Header("Retry-After", fmt.Sprintf("%d", int(retryAfter.Round(time.Second).Seconds())))
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":       "too many login attempts",
			"retry_after": retryAfter.Round(time.Second).String(),
		})
		return
	}

	err := ac.service.Authenticate(c.Request.Context(), req.Passphrase)
	switch {
	case errors.Is(err, ErrNotSetUp):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case errors.Is(err, ErrInvalidPassphrase):
		ac.rateLimiter.RecordFailure(ip)
		ac.audit(c, "auth_login", false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid passphrase"})
		return
	case err != nil:
		log.Printf("[auth] Login failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	ac.rateLimiter.RecordSuccess(ip)
	ac.audit(c, "auth_login", true)
	ac.startSession(c, http.StatusOK, "logged in")
}

func (ac *AuthController) startSession(c *gin.Context, status int, message string) {
	if ac.sessionManager != nil {
		if err := ac.sessionManager.CreateSession(c.Request); err != nil {
			log.Printf("[auth] Failed to create session: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create session"})
			return
		}
	}
	c.JSON(status, gin.H{"message": message})
}

// Logout destroys the session.
func (ac *AuthController) Logout(c *gin.Context) {
	if ac.sessionManager != nil {
		_ = ac.sessionManager.DestroySession(c.Request)
	}
	ac.audit(c, "auth_logout", true)
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

// ChangePassphrase replaces the passphrase and revokes the API token.
func (ac *AuthController) ChangePassphrase(c *gin.Context) {
	var req changePassphraseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "current and new passphrase are required"})
		return
	}

	err := ac.service.ChangePassphrase(c.Request.Context(), req.Current, req.New)
	switch {
	case errors.Is(err, ErrInvalidPassphrase):
		ac.audit(c, "auth_passphrase_change", false)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid passphrase"})
		return
	case errors.Is(err, ErrPassphraseTooShort), errors.Is(err, ErrPassphraseTooLong), errors.Is(err, ErrPassphraseSame):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case err != nil:
		log.Printf("[auth] Passphrase change failed: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	ac.audit(c, "auth_passphrase_change", true)
	c.JSON(http.StatusOK, gin.H{"message": "passphrase changed"})
}

// GenerateToken issues a new API token, replacing the previous one.
func (ac *AuthController) GenerateToken(c *gin.Context) {
	token, err := ac.service.GenerateToken(c.Request.Context())
	if err != nil {
		log.Printf("[auth] %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	ac.audit(c, "auth_token_generate", true)
	c.JSON(http.StatusOK, gin.H{
		"token":   token,
		"message": "Store this token securely - it will not be shown again",
	})
}

// RevokeToken deletes the API token.
func (ac *AuthController) RevokeToken(c *gin.Context) {
	if err := ac.service.RevokeToken(c.Request.Context()); err != nil {
		log.Printf("[auth] %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to revoke token"})
		return
	}

	ac.audit(c, "auth_token_revoke", true)
	c.JSON(http.StatusOK, gin.H{"message": "token revoked"})
}

func (ac *AuthController) audit(c *gin.Context, action string, success bool) {
	if ac.auditor == nil {
		return
	}
	ac.auditor.LogAuth(action, c.ClientIP(), c.Request.UserAgent(), success)
}

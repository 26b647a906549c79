package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(t *testing.T, now *time.Time) *RateLimiter {
	t.Helper()
	rl := NewRateLimiter(RateLimitConfig{
		MaxAttempts:     3,
		WindowDuration:  time.Minute,
		LockoutDuration: 10 * time.Minute,
	})
	rl.now = func() time.Time { return *now }
	t.Cleanup(rl.Stop)
	return rl
}

func TestRateLimiter_LocksAfterMaxAttempts(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, &now)

	for i := 0; i < 2; i++ {
		locked, _ := rl.RecordFailure("10.0.0.1")
		assert.False(t, locked)
		allowed, _ := rl.Allow("10.0.0.1")
		assert.True(t, allowed)
	}

	locked, retry := rl.RecordFailure("10.0.0.1")
	assert.True(t, locked)
	assert.Equal(t, 10*time.Minute, retry)

	allowed, retry := rl.Allow("10.0.0.1")
	assert.False(t, allowed)
	assert.Equal(t, 10*time.Minute, retry)

	// Other clients are unaffected.
	allowed, _ = rl.Allow("10.0.0.2")
	assert.True(t, allowed)

	now = now.Add(11 * time.Minute)
	allowed, _ = rl.Allow("10.0.0.1")
	assert.True(t, allowed)
}

func TestRateLimiter_WindowResets(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, &now)

	rl.RecordFailure("10.0.0.1")
	rl.RecordFailure("10.0.0.1")

	now = now.Add(2 * time.Minute)
	locked, _ := rl.RecordFailure("10.0.0.1")
	assert.False(t, locked)
}

func TestRateLimiter_SuccessClears(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, &now)

	rl.RecordFailure("10.0.0.1")
	rl.RecordFailure("10.0.0.1")
	rl.RecordSuccess("10.0.0.1")

	locked, _ := rl.RecordFailure("10.0.0.1")
	assert.False(t, locked)
}

func TestRateLimiter_Cleanup(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rl := newTestLimiter(t, &now)

	rl.RecordFailure("10.0.0.1")
	now = now.Add(5 * time.Minute)
	rl.cleanup()

	rl.mu.Lock()
	defer rl.mu.Unlock()
	assert.Empty(t, rl.attempts)
}

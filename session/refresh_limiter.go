package session

import (
	"sync"
	"time"
)

const (
	DefaultRefreshMaxAttempts = 3
	DefaultRefreshCooldown    = 30 * time.Second
)

// RefreshLimiter bounds how many provider token-refresh events are acted on.
// An event is accepted while fewer than maxAttempts have been accepted, or
// once cooldown has passed since the last accepted one.
type RefreshLimiter struct {
	mu          sync.Mutex
	maxAttempts int
	cooldown    time.Duration
	attempts    int
	lastAttempt time.Time
}

func NewRefreshLimiter(maxAttempts int, cooldown time.Duration) *RefreshLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultRefreshMaxAttempts
	}
	if cooldown <= 0 {
		cooldown = DefaultRefreshCooldown
	}
	return &RefreshLimiter{
		maxAttempts: maxAttempts,
		cooldown:    cooldown,
	}
}

// Allow records an attempt at now and reports whether it was accepted.
// Rejected attempts leave the counter untouched.
func (l *RefreshLimiter) Allow(now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.attempts < l.maxAttempts || now.Sub(l.lastAttempt) >= l.cooldown {
		l.attempts++
		l.lastAttempt = now
		return true
	}
	return false
}

func (l *RefreshLimiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.attempts = 0
	l.lastAttempt = time.Time{}
}

// Attempts returns the number of accepted attempts since the last reset.
func (l *RefreshLimiter) Attempts() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.attempts
}

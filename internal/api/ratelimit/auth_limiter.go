// Package ratelimit throttles authentication endpoints: a per-IP
// request budget plus per-account lockout after repeated failures.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"
)

const (
	requestsPerMinute = 10
	maxFailedAttempts = 5
	lockoutDuration   = 15 * time.Minute
)

type ipBucket struct {
	count     int
	resetTime time.Time
}

type lockout struct {
	failures    int
	lockedUntil time.Time
}

// AuthLimiter rate-limits login traffic. All state is in-memory;
// restarts clear it, which is acceptable for a lockout cache.
type AuthLimiter struct {
	mu       sync.Mutex
	buckets  map[string]*ipBucket
	lockouts map[string]*lockout
}

func NewAuthLimiter() *AuthLimiter {
	return &AuthLimiter{
		buckets:  make(map[string]*ipBucket),
		lockouts: make(map[string]*lockout),
	}
}

// Middleware enforces the per-IP request budget on auth routes.
func (l *AuthLimiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.allowIP(c.RealIP()) {
				return echo.NewHTTPError(http.StatusTooManyRequests, "too many requests, please try again later")
			}
			return next(c)
		}
	}
}

func (l *AuthLimiter) allowIP(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	bucket, ok := l.buckets[ip]
	if !ok || now.After(bucket.resetTime) {
		l.buckets[ip] = &ipBucket{count: 1, resetTime: now.Add(time.Minute)}
		return true
	}
	if bucket.count >= requestsPerMinute {
		return false
	}
	bucket.count++
	return true
}

// IsAccountLocked reports whether a username is currently locked out.
func (l *AuthLimiter) IsAccountLocked(username string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	lo, ok := l.lockouts[username]
	return ok && time.Now().Before(lo.lockedUntil)
}

// RecordFailedAttempt counts a failed login. Enough failures in a row
// lock the account for a fixed window.
func (l *AuthLimiter) RecordFailedAttempt(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	lo, ok := l.lockouts[username]
	if !ok {
		lo = &lockout{}
		l.lockouts[username] = lo
	}

	// A fresh failure after an expired lockout starts a new count.
	if lo.failures >= maxFailedAttempts && time.Now().After(lo.lockedUntil) {
		lo.failures = 0
	}

	lo.failures++
	if lo.failures >= maxFailedAttempts {
		lo.lockedUntil = time.Now().Add(lockoutDuration)
	}
}

// RecordSuccessfulLogin clears any lockout state for the account.
func (l *AuthLimiter) RecordSuccessfulLogin(username string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	delete(l.lockouts, username)
}

package server

import (
	"strings"
	"sync"
	"time"
)

const (
	maxFailedLogins   = 5
	failedLoginWindow = 30 * time.Minute
	failedLoginBlock  = 15 * time.Minute

	// Wrong codes allowed before a two-factor challenge is discarded
	maxTwoFactorAttempts = 3
)

// attemptTracker locks an identifier out after too many failed logins within
// a window.
type attemptTracker struct {
	mu       sync.Mutex
	max      int
	window   time.Duration
	block    time.Duration
	failures map[string][]time.Time
	blocked  map[string]time.Time
}

func newAttemptTracker(max int, window, block time.Duration) *attemptTracker {
	return &attemptTracker{
		max:      max,
		window:   window,
		block:    block,
		failures: make(map[string][]time.Time),
		blocked:  make(map[string]time.Time),
	}
}

// BlockedUntil reports whether identifier is locked out at now, and until when.
func (t *attemptTracker) BlockedUntil(identifier string, now time.Time) (time.Time, bool) {
	key := attemptKey(identifier)
	t.mu.Lock()
	defer t.mu.Unlock()

	until, ok := t.blocked[key]
	if !ok {
		return time.Time{}, false
	}
	if !now.Before(until) {
		delete(t.blocked, key)
		return time.Time{}, false
	}
	return until, true
}

// Fail records a failed login and reports whether it triggered a lockout.
func (t *attemptTracker) Fail(identifier string, now time.Time) (time.Time, bool) {
	key := attemptKey(identifier)
	t.mu.Lock()
	defer t.mu.Unlock()

	recent := t.failures[key][:0]
	for _, at := range t.failures[key] {
		if now.Sub(at) < t.window {
			recent = append(recent, at)
		}
	}
	recent = append(recent, now)

	if len(recent) >= t.max {
		delete(t.failures, key)
		until := now.Add(t.block)
		t.blocked[key] = until
		return until, true
	}
	t.failures[key] = recent
	return time.Time{}, false
}

func (t *attemptTracker) Reset(identifier string) {
	key := attemptKey(identifier)
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.failures, key)
	delete(t.blocked, key)
}

func attemptKey(identifier string) string {
	return strings.ToLower(strings.TrimSpace(identifier))
}

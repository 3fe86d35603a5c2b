package token

import (
	"sync"
	"time"
)

// RevokedSessionCache remembers logged out session ids (by jti) until they
// would have expired anyway.
type RevokedSessionCache interface {
	Add(jti string, expiresAt time.Time) error
	IsRevoked(jti string) (bool, error)
	// Cleanup drops revocations that expired before now and reports how many.
	Cleanup(now time.Time) int
}

var _ RevokedSessionCache = (*InMemoryRevokedSessionCache)(nil)

// InMemoryRevokedSessionCache loses its revocations on restart, which
// re-activates logged out sessions that have not expired yet.
type InMemoryRevokedSessionCache struct {
	mu        sync.RWMutex
	expiresAt map[string]time.Time
}

func NewInMemoryRevokedSessionCache() *InMemoryRevokedSessionCache {
	return &InMemoryRevokedSessionCache{expiresAt: make(map[string]time.Time)}
}

func (c *InMemoryRevokedSessionCache) Add(jti string, expiresAt time.Time) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if prev, ok := c.expiresAt[jti]; !ok || expiresAt.After(prev) {
		c.expiresAt[jti] = expiresAt
	}
	return nil
}

func (c *InMemoryRevokedSessionCache) IsRevoked(jti string) (bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.expiresAt[jti]
	return ok, nil
}

func (c *InMemoryRevokedSessionCache) Cleanup(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for jti, exp := range c.expiresAt {
		if exp.Before(now) {
			delete(c.expiresAt, jti)
			removed++
		}
	}
	return removed
}

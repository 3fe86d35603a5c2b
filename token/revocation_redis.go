package token

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

var _ RevokedSessionCache = (*RedisRevokedSessionCache)(nil)

const redisRevocationTimeout = 2 * time.Second

// RedisRevokedSessionCache keeps revocations in Redis with a TTL matching the
// session's remaining lifetime, so they survive a restart of the service.
type RedisRevokedSessionCache struct {
	client  *redis.Client
	prefix  string
	nowFunc func() time.Time
}

type RedisRevocationOption func(*RedisRevokedSessionCache)

// WithRevocationClock sets the clock the remaining session lifetime is measured against.
func WithRevocationClock(now func() time.Time) RedisRevocationOption {
	return func(c *RedisRevokedSessionCache) {
		c.nowFunc = now
	}
}

func NewRedisRevokedSessionCache(client *redis.Client, prefix string, options ...RedisRevocationOption) *RedisRevokedSessionCache {
	c := &RedisRevokedSessionCache{
		client:  client,
		prefix:  prefix,
		nowFunc: time.Now,
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *RedisRevokedSessionCache) key(jti string) string {
	return c.prefix + "revoked:" + jti
}

func (c *RedisRevokedSessionCache) Add(jti string, expiresAt time.Time) error {
	ttl := expiresAt.Sub(c.nowFunc())
	if ttl <= 0 {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisRevocationTimeout)
	defer cancel()

	if err := c.client.Set(ctx, c.key(jti), expiresAt.Unix(), ttl).Err(); err != nil {
		return errors.Wrap(err, "[RedisRevokedSessionCache.Add]")
	}
	return nil
}

func (c *RedisRevokedSessionCache) IsRevoked(jti string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisRevocationTimeout)
	defer cancel()

	n, err := c.client.Exists(ctx, c.key(jti)).Result()
	if err != nil {
		return false, errors.Wrap(err, "[RedisRevokedSessionCache.IsRevoked]")
	}
	return n > 0, nil
}

// Cleanup is a no-op; Redis expires the keys itself.
func (c *RedisRevokedSessionCache) Cleanup(time.Time) int {
	return 0
}

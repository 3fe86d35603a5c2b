package token_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-auth-session/token"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newRedisCache(t *testing.T, now time.Time) (*token.RedisRevokedSessionCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return token.NewRedisRevokedSessionCache(client, "stub:", token.WithRevocationClock(func() time.Time { return now })), mr
}

func TestRedisRevokedSessionCache(t *testing.T) {
	now := time.Now()
	cache, mr := newRedisCache(t, now)

	require.NoError(t, cache.Add("jti-1", now.Add(time.Minute)))
	require.True(t, mr.Exists("stub:revoked:jti-1"))
	require.Equal(t, time.Minute, mr.TTL("stub:revoked:jti-1"))

	revoked, err := cache.IsRevoked("jti-1")
	require.NoError(t, err)
	require.True(t, revoked)

	revoked, err = cache.IsRevoked("jti-2")
	require.NoError(t, err)
	require.False(t, revoked)

	mr.FastForward(time.Minute + time.Second)
	revoked, err = cache.IsRevoked("jti-1")
	require.NoError(t, err)
	require.False(t, revoked)
	require.Equal(t, 0, cache.Cleanup(now))
}

func TestRedisRevokedSessionCacheSkipsExpired(t *testing.T) {
	now := time.Now()
	cache, mr := newRedisCache(t, now)

	require.NoError(t, cache.Add("gone", now.Add(-time.Second)))
	require.False(t, mr.Exists("stub:revoked:gone"))
}

func TestRedisRevocationSurvivesManagerRestart(t *testing.T) {
	now := time.Now()
	cache, _ := newRedisCache(t, now)
	clock := token.WithNowFunc(func() time.Time { return now })

	first := token.New(token.NewHMACSigner(secretStr), clock, token.WithRevokedSessionCache(cache))
	raw, _, err := first.CreateSession(testUser(t), time.Hour, false)
	require.NoError(t, err)
	require.NoError(t, first.Revoke(raw))

	restarted := token.New(token.NewHMACSigner(secretStr), clock, token.WithRevokedSessionCache(cache))
	info, err := restarted.Introspection(raw)
	require.NoError(t, err)
	require.False(t, info.Active)
}

func TestRedisRevokedSessionCacheUnavailable(t *testing.T) {
	now := time.Now()
	cache, mr := newRedisCache(t, now)
	m := token.New(token.NewHMACSigner(secretStr), token.WithNowFunc(func() time.Time { return now }), token.WithRevokedSessionCache(cache))
	raw, _, err := m.CreateSession(testUser(t), time.Hour, false)
	require.NoError(t, err)

	mr.Close()
	info, err := m.Introspection(raw)
	require.Error(t, err)
	require.False(t, info.Active)
}

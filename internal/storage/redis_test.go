package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedis(t *testing.T) {
	_, client := newTestRedis(t)
	exercise(t, NewRedis(client))
}

func TestRedisPrefix(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedis(client, WithPrefix("tenant-a"))

	require.NoError(t, s.Set("token", "abc"))

	got, err := mr.Get("tenant-a:token")
	require.NoError(t, err)
	assert.Equal(t, "abc", got)
	assert.False(t, mr.Exists("token"))
	assert.Zero(t, mr.TTL("tenant-a:token"), "keys do not expire")
}

func TestRedisPing(t *testing.T) {
	_, client := newTestRedis(t)
	s := NewRedis(client)
	assert.NoError(t, s.Ping(context.Background()))
}

func TestRedisUnavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	s := NewRedis(client, WithTimeout(200*time.Millisecond))
	require.NoError(t, s.Set("token", "abc"))

	mr.Close()

	_, ok, err := s.Get("token")
	assert.False(t, ok)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.True(t, errors.Is(s.Set("token", "x"), ErrUnavailable))
	assert.True(t, errors.Is(s.Remove("token"), ErrUnavailable))
}

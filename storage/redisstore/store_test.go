package redisstore_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jrsteele09/go-course-portal/storage/redisstore"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T, expiry time.Duration) (*miniredis.Miniredis, *redisstore.Store) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err, "failed to start miniredis")
	t.Cleanup(mr.Close)

	s := redisstore.New(mr.Addr(), expiry)
	t.Cleanup(func() { _ = s.Close() })
	return mr, s
}

func TestStore_SetGetDelete(t *testing.T) {
	ctx := context.Background()
	_, s := setupTestRedis(t, 0)

	require.NoError(t, s.Ping(ctx))

	_, ok, err := s.Get(ctx, "missing")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Set(ctx, "a", "1"))
	v, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "1", v)

	require.NoError(t, s.Delete(ctx, "a", "b"))
	_, ok, err = s.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, s.Delete(ctx))
}

func TestStore_KeysExpire(t *testing.T) {
	ctx := context.Background()
	mr, s := setupTestRedis(t, time.Hour)

	require.NoError(t, s.Set(ctx, "a", "1"))
	require.Equal(t, time.Hour, mr.TTL("a"))

	mr.FastForward(2 * time.Hour)

	_, ok, err := s.Get(ctx, "a")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestStore_ServerDown(t *testing.T) {
	ctx := context.Background()
	mr, s := setupTestRedis(t, 0)
	mr.Close()

	_, _, err := s.Get(ctx, "a")
	require.Error(t, err)
}

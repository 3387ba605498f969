package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/aretw0/thicket/pkg/adapters/redis"
	"github.com/aretw0/thicket/pkg/domain"
	"github.com/aretw0/thicket/pkg/scopelock"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setup(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLocker_LockUnlock(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "test:")
	ctx := context.Background()

	// 1. Acquire Lock
	unlock, err := locker.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)
	require.NotNil(t, unlock)

	assert.True(t, mr.Exists("test:lock:shared"), "Lock key should be set in Redis")
	assert.Equal(t, 5*time.Second, mr.TTL("test:lock:shared"))

	// 2. Release Lock
	require.NoError(t, unlock(ctx))
	assert.False(t, mr.Exists("test:lock:shared"), "Lock key should be removed after unlock")
}

func TestRedisLocker_Contention(t *testing.T) {
	_, client := setup(t)
	locker1 := redis.NewLocker(client, "test:")
	locker2 := redis.NewLocker(client, "test:") // Same prefix -> contention
	ctx := context.Background()

	unlock1, err := locker1.Lock(ctx, "nsfw", 5*time.Second)
	require.NoError(t, err)

	// Client 2 blocks until its context times out.
	ctxTimeout, cancel := context.WithTimeout(ctx, 300*time.Millisecond)
	defer cancel()
	start := time.Now()
	_, err = locker2.Lock(ctxTimeout, "nsfw", 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.WithinDuration(t, start.Add(300*time.Millisecond), time.Now(), 150*time.Millisecond, "Should block until timeout")

	require.NoError(t, unlock1(ctx))

	unlock2, err := locker2.Lock(ctx, "nsfw", 5*time.Second)
	require.NoError(t, err)
	defer unlock2(ctx)
}

func TestRedisLocker_ExpiredHolderCannotReleaseNewLock(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "")
	ctx := context.Background()

	stale, err := locker.Lock(ctx, "shared", time.Second)
	require.NoError(t, err)
	mr.FastForward(2 * time.Second)

	fresh, err := locker.Lock(ctx, "shared", 5*time.Second)
	require.NoError(t, err)

	require.NoError(t, stale(ctx))
	assert.True(t, mr.Exists(locker.Key("shared")), "stale unlock must not delete the new holder's key")
	require.NoError(t, fresh(ctx))
	assert.False(t, mr.Exists(locker.Key("shared")))
}

func TestRedisLocker_WithScopeManager(t *testing.T) {
	mr, client := setup(t)
	locker := redis.NewLocker(client, "thicket:")
	mgr := scopelock.NewManager(scopelock.WithLocker(locker))

	err := mgr.WithLock(context.Background(), []domain.Scope{domain.ScopeShared}, func(context.Context) error {
		assert.True(t, mr.Exists("thicket:lock:shared"))
		return nil
	})
	require.NoError(t, err)
	assert.False(t, mr.Exists("thicket:lock:shared"))
}

package db_test

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuvault/api/db"
	logger "github.com/docuvault/api/logging"
)

func TestMain(m *testing.M) {
	logger.InitLogger("")
	os.Exit(m.Run())
}

func setupStore(t *testing.T) (*db.RedisStore, *redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return db.NewRedisStore(client), client, mr
}

func TestStoreRoundtrip(t *testing.T) {
	store, _, _ := setupStore(t)
	ctx := context.Background()

	_, found, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, store.Set(ctx, "k1", "v1", time.Minute))
	val, found, err := store.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "v1", val)

	removed, err := store.Delete(ctx, "k1", "missing")
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	removed, err = store.Delete(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), removed)
}

func TestStoreKeys(t *testing.T) {
	store, _, _ := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "perm:user:alice", "a", 0))
	require.NoError(t, store.Set(ctx, "perm:user:bob", "b", 0))
	require.NoError(t, store.Set(ctx, "perf:report:1", "r", 0))

	keys, err := store.Keys(ctx, "perm:user:*")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"perm:user:alice", "perm:user:bob"}, keys)

	keys, err = store.Keys(ctx, "perm:*")
	require.NoError(t, err)
	assert.Len(t, keys, 2)

	count, err := store.KeyCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count)
}

func TestStoreTTLSemantics(t *testing.T) {
	store, _, mr := setupStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "expiring", "v", time.Minute))
	require.NoError(t, store.Set(ctx, "persistent", "v", 0))

	ttl, err := store.TTL(ctx, "expiring")
	require.NoError(t, err)
	assert.Equal(t, time.Minute, ttl)

	ttl, err = store.TTL(ctx, "persistent")
	require.NoError(t, err)
	assert.Equal(t, -1*time.Second, ttl)

	ttl, err = store.TTL(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, -2*time.Second, ttl)

	mr.FastForward(2 * time.Minute)
	_, found, err := store.Get(ctx, "expiring")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestStorePing(t *testing.T) {
	store, _, mr := setupStore(t)
	require.NoError(t, store.Ping(context.Background()))

	mr.Close()
	assert.Error(t, store.Ping(context.Background()))
}

func TestRateLimit(t *testing.T) {
	_, client, _ := setupStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		allowed, err := db.RateLimit(ctx, client, "client-1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, allowed)
	}

	allowed, err := db.RateLimit(ctx, client, "client-1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, allowed)

	// A different key has its own window.
	allowed, err = db.RateLimit(ctx, client, "client-2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, allowed)
}

package cache_test

import (
	"context"
	"path"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuvault/api/cache"
	"github.com/docuvault/api/model"
)

// fakeStore is an in-memory KeyValueStore for optimizer tests. miniredis
// does not serve memory or idle-time introspection, so those are scripted
// here directly.
type fakeStore struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
	idle   map[string]time.Duration

	used        int64
	max         int64
	bytesPerKey int64

	calls int
}

var _ cache.KeyValueStore = (*fakeStore)(nil)

func newFakeStore() *fakeStore {
	return &fakeStore{
		values: make(map[string]string),
		ttls:   make(map[string]time.Duration),
		idle:   make(map[string]time.Duration),
	}
}

func (f *fakeStore) put(key string, ttl, idle time.Duration) {
	f.values[key] = "v"
	f.ttls[key] = ttl
	f.idle[key] = idle
}

func (f *fakeStore) Get(ctx context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *fakeStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.values[key] = value
	f.ttls[key] = ttl
	return nil
}

func (f *fakeStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var removed int64
	for _, key := range keys {
		if _, ok := f.values[key]; ok {
			delete(f.values, key)
			delete(f.ttls, key)
			delete(f.idle, key)
			removed++
		}
	}
	f.used -= removed * f.bytesPerKey
	return removed, nil
}

func (f *fakeStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	var keys []string
	for key := range f.values {
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *fakeStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if _, ok := f.values[key]; !ok {
		return -2 * time.Second, nil
	}
	return f.ttls[key], nil
}

func (f *fakeStore) IdleTime(ctx context.Context, key string) (time.Duration, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.idle[key], nil
}

func (f *fakeStore) MemoryInfo(ctx context.Context) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.used, f.max, nil
}

func (f *fakeStore) KeyCount(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return int64(len(f.values)), nil
}

func (f *fakeStore) Compact(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return nil
}

func (f *fakeStore) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newOptimizer(store *fakeStore) (*cache.CacheMemoryOptimizer, *cache.CachePerformanceAnalyzer) {
	analyzer := cache.NewCachePerformanceAnalyzer(cache.NewStats())
	return cache.NewCacheMemoryOptimizer(store, analyzer), analyzer
}

func TestMemoryUsageInfo(t *testing.T) {
	t.Run("reports usage ratio and per-type key counts", func(t *testing.T) {
		store := newFakeStore()
		store.used = 800
		store.max = 1000
		store.put("perm:user:alice", 30*time.Minute, 0)
		store.put("perm:user:bob", 30*time.Minute, 0)
		store.put("perm:docpub:doc-1", time.Hour, 0)
		store.put("unrelated:key", 0, 0)

		optimizer, _ := newOptimizer(store)
		info, err := optimizer.MemoryUsageInfo(context.Background())
		require.NoError(t, err)

		assert.Equal(t, int64(800), info.UsedMemory)
		assert.Equal(t, int64(1000), info.MaxMemory)
		assert.InDelta(t, 0.8, info.UsageRatio, 0.001)
		assert.Equal(t, int64(4), info.KeyCount)
		assert.Equal(t, int64(2), info.KeysByType[cache.TypeUserPermissions])
		assert.Equal(t, int64(1), info.KeysByType[cache.TypeDocumentPublic])
	})

	t.Run("falls back to process memory when no ceiling is configured", func(t *testing.T) {
		store := newFakeStore()
		store.used = 100
		store.max = 0

		optimizer, _ := newOptimizer(store)
		info, err := optimizer.MemoryUsageInfo(context.Background())
		require.NoError(t, err)

		assert.Greater(t, info.MaxMemory, int64(0))
		assert.Greater(t, info.UsageRatio, float64(0))
	})
}

func TestMemoryPressureThresholds(t *testing.T) {
	store := newFakeStore()
	store.max = 1000
	optimizer, _ := newOptimizer(store)
	ctx := context.Background()

	store.used = 810
	pressure, err := optimizer.IsMemoryPressure(ctx)
	require.NoError(t, err)
	assert.True(t, pressure)

	cleanup, err := optimizer.RequiresCleanup(ctx)
	require.NoError(t, err)
	assert.False(t, cleanup)

	store.used = 950
	cleanup, err = optimizer.RequiresCleanup(ctx)
	require.NoError(t, err)
	assert.True(t, cleanup)

	store.used = 500
	pressure, err = optimizer.IsMemoryPressure(ctx)
	require.NoError(t, err)
	assert.False(t, pressure)
}

func TestPerformCleanupDisabled(t *testing.T) {
	viper.Set("optimizer.enabled", false)
	defer viper.Set("optimizer.enabled", true)

	store := newFakeStore()
	optimizer, _ := newOptimizer(store)

	result := <-optimizer.PerformCleanup(context.Background())
	assert.Equal(t, int64(0), result.KeysRemoved)
	assert.Equal(t, int64(0), result.MemoryFreed)
	assert.Empty(t, result.RemovedByCategory)
	assert.Equal(t, 0, store.callCount())
}

func TestPerformCleanup(t *testing.T) {
	store := newFakeStore()
	store.bytesPerKey = 100
	store.max = 10_000

	// Orphaned performance entries carry no TTL.
	store.put("perf:report:stale-1", -1*time.Second, 0)
	store.put("perf:report:stale-2", -1*time.Second, 0)
	store.put("perf:report:fresh", 5*time.Minute, 0)

	// Idle sweep uses a strict threshold of 3600s.
	store.put("perm:user:idle", 30*time.Minute, 3601*time.Second)
	store.put("perm:user:almost", 30*time.Minute, 3599*time.Second)
	store.put("perm:user:active", 30*time.Minute, time.Second)

	store.used = int64(len(store.values)) * store.bytesPerKey

	optimizer, _ := newOptimizer(store)
	result := <-optimizer.PerformCleanup(context.Background())

	assert.Equal(t, int64(3), result.KeysRemoved)
	assert.Equal(t, int64(2), result.RemovedByCategory["stale"])
	assert.Equal(t, int64(0), result.RemovedByCategory["low_hit_rate"])
	assert.Equal(t, int64(1), result.RemovedByCategory["idle"])
	assert.Equal(t, int64(300), result.MemoryFreed)

	_, found, err := store.Get(context.Background(), "perf:report:fresh")
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = store.Get(context.Background(), "perm:user:almost")
	require.NoError(t, err)
	assert.True(t, found)
	_, found, err = store.Get(context.Background(), "perm:user:idle")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestOptimizationRecommendations(t *testing.T) {
	t.Run("critical memory outranks every other finding", func(t *testing.T) {
		store := newFakeStore()
		store.used = 950
		store.max = 1000
		store.put("perm:user:alice", 0, 0)
		store.put("perm:user:bob", 0, 0)
		store.put("perm:user:carol", 0, 0)

		optimizer, analyzer := newOptimizer(store)
		analyzer.RecordCacheOperation("x", 80*time.Millisecond, false)
		analyzer.RecordCacheOperation("x", 80*time.Millisecond, false)
		analyzer.RecordCacheOperation("x", 80*time.Millisecond, true)

		recs, err := optimizer.OptimizationRecommendations(context.Background())
		require.NoError(t, err)
		require.NotEmpty(t, recs)

		assert.Equal(t, "MEMORY_CRITICAL", recs[0].Type)
		assert.Equal(t, 5, recs[0].Priority)
		for i := 1; i < len(recs); i++ {
			assert.GreaterOrEqual(t, recs[i-1].Priority, recs[i].Priority)
		}

		types := make([]string, 0, len(recs))
		for _, rec := range recs {
			types = append(types, rec.Type)
		}
		assert.Contains(t, types, "LOW_HIT_RATE")
		assert.Contains(t, types, "HIGH_LATENCY")
		assert.Contains(t, types, "KEYSPACE_SKEW")
	})

	t.Run("memory pressure alone yields a single medium-priority finding", func(t *testing.T) {
		store := newFakeStore()
		store.used = 850
		store.max = 1000

		optimizer, _ := newOptimizer(store)
		recs, err := optimizer.OptimizationRecommendations(context.Background())
		require.NoError(t, err)
		require.Len(t, recs, 1)
		assert.Equal(t, "MEMORY_PRESSURE", recs[0].Type)
		assert.Equal(t, 3, recs[0].Priority)
	})

	t.Run("healthy store yields no findings", func(t *testing.T) {
		store := newFakeStore()
		store.used = 100
		store.max = 1000
		store.put("perm:user:alice", 0, 0)
		store.put("perm:docpub:doc-1", 0, 0)

		optimizer, _ := newOptimizer(store)
		recs, err := optimizer.OptimizationRecommendations(context.Background())
		require.NoError(t, err)
		assert.Empty(t, recs)
	})
}

func TestScheduledMemoryCheckTriggersCleanup(t *testing.T) {
	store := newFakeStore()
	store.bytesPerKey = 100
	store.used = 950
	store.max = 1000
	store.put("perf:report:stale", -1*time.Second, 0)

	optimizer, _ := newOptimizer(store)
	optimizer.ScheduledMemoryCheck(context.Background())

	require.Eventually(t, func() bool {
		_, found, err := store.Get(context.Background(), "perf:report:stale")
		return err == nil && !found
	}, 2*time.Second, 10*time.Millisecond)
}

func TestCleanupResultCategories(t *testing.T) {
	store := newFakeStore()
	store.max = 10_000
	optimizer, _ := newOptimizer(store)

	result := <-optimizer.PerformCleanup(context.Background())
	assert.Equal(t, int64(0), result.KeysRemoved)
	assert.Equal(t, map[string]int64{
		"stale":        0,
		"low_hit_rate": 0,
		"idle":         0,
	}, result.RemovedByCategory)
	assert.Equal(t, model.CleanupResult{
		RemovedByCategory: result.RemovedByCategory,
		DurationMillis:    result.DurationMillis,
	}, result)
}

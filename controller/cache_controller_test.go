package controller_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuvault/api/cache"
	"github.com/docuvault/api/config"
	"github.com/docuvault/api/controller"
	dv_errors "github.com/docuvault/api/errors"
	logger "github.com/docuvault/api/logging"
	"github.com/docuvault/api/model"
	"github.com/docuvault/api/warmup"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	logger.InitLogger("")
	if err := config.InitConfig(); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

// memStore is an in-memory KeyValueStore with scripted memory statistics,
// so the memory and recommendation endpoints can be exercised end to end.
type memStore struct {
	mu     sync.Mutex
	values map[string]string
	used   int64
	max    int64
}

func newMemStore() *memStore {
	return &memStore{values: make(map[string]string), used: 100, max: 10_000}
}

func (s *memStore) Get(ctx context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

func (s *memStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	return nil
}

func (s *memStore) Delete(ctx context.Context, keys ...string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for _, key := range keys {
		if _, ok := s.values[key]; ok {
			delete(s.values, key)
			removed++
		}
	}
	return removed, nil
}

func (s *memStore) Keys(ctx context.Context, pattern string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var keys []string
	for key := range s.values {
		if ok, _ := path.Match(pattern, key); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *memStore) TTL(ctx context.Context, key string) (time.Duration, error) {
	return time.Minute, nil
}

func (s *memStore) IdleTime(ctx context.Context, key string) (time.Duration, error) {
	return 0, nil
}

func (s *memStore) MemoryInfo(ctx context.Context) (int64, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.used, s.max, nil
}

func (s *memStore) KeyCount(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.values)), nil
}

func (s *memStore) Compact(ctx context.Context) error { return nil }

func (s *memStore) Ping(ctx context.Context) error { return nil }

func (s *memStore) has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.values[key]
	return ok
}

// adminSource serves a single user and document.
type adminSource struct{}

func (adminSource) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	if username != "alice" {
		return nil, dv_errors.ErrUserNotFound
	}
	return &model.User{
		ID:       "u1",
		Username: "alice",
		Roles: []model.Role{
			{
				ID:          "r1",
				Name:        "viewer",
				Permissions: []model.Permission{{ID: "p1", Code: "document:read"}},
			},
		},
	}, nil
}

func (s adminSource) FindUserByID(ctx context.Context, userID string) (*model.User, error) {
	if userID != "u1" {
		return nil, dv_errors.ErrUserNotFound
	}
	return s.FindUserByUsername(ctx, "alice")
}

func (adminSource) FindDocumentByID(ctx context.Context, documentID string) (*model.Document, error) {
	if documentID != "doc-1" {
		return nil, dv_errors.ErrDocumentNotFound
	}
	return &model.Document{ID: "doc-1", Public: true}, nil
}

func (adminSource) FindDocumentAssignmentsByUserID(ctx context.Context, userID string) ([]model.DocumentAssignment, error) {
	return nil, nil
}

func (adminSource) FindDocumentAssignmentsByDocumentID(ctx context.Context, documentID string) ([]model.DocumentAssignment, error) {
	return nil, nil
}

func (adminSource) UserExists(ctx context.Context, userID string) (bool, error) {
	return userID == "u1", nil
}

func (adminSource) DocumentExists(ctx context.Context, documentID string) (bool, error) {
	return documentID == "doc-1", nil
}

func (adminSource) ListUsernames(ctx context.Context, limit int) ([]string, error) {
	return []string{"alice"}, nil
}

func (adminSource) ListDocumentIDs(ctx context.Context, limit int) ([]string, error) {
	return []string{"doc-1"}, nil
}

type testEnv struct {
	router       *gin.Engine
	store        *memStore
	cacheService *cache.PermissionCacheService
	analyzer     *cache.CachePerformanceAnalyzer
	engine       *warmup.StrategyEngine
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	store := newMemStore()
	stats := cache.NewStats()
	analyzer := cache.NewCachePerformanceAnalyzer(stats)
	cacheService := cache.NewPermissionCacheService(store, adminSource{}, analyzer, stats)
	optimizer := cache.NewCacheMemoryOptimizer(store, analyzer)
	warmupService := warmup.NewCacheWarmupService(adminSource{}, cacheService)
	engine := warmup.NewStrategyEngine(optimizer, warmupService)

	cc := controller.NewCacheController(cacheService, analyzer, optimizer, engine)

	router := gin.New()
	cc.RegisterRoutes(router.Group("/api/v1"))

	return &testEnv{
		router:       router,
		store:        store,
		cacheService: cacheService,
		analyzer:     analyzer,
		engine:       engine,
	}
}

func (env *testEnv) do(t *testing.T, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestGetStats(t *testing.T) {
	env := setupEnv(t)
	_, err := env.cacheService.GetUserPermissions(context.Background(), "alice")
	require.NoError(t, err)

	rec := env.do(t, http.MethodGet, "/api/v1/cache/stats")
	require.Equal(t, http.StatusOK, rec.Code)

	var stats model.CacheStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, int64(1), stats.TotalMisses)
	assert.Equal(t, int64(1), stats.TotalKeys)
}

func TestGetReport(t *testing.T) {
	env := setupEnv(t)
	env.analyzer.RecordCacheOperation(cache.TypeUserPermissions, 10*time.Millisecond, true)

	rec := env.do(t, http.MethodGet, "/api/v1/cache/report")
	require.Equal(t, http.StatusOK, rec.Code)

	var report model.PerformanceReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, int64(1), report.TotalRequests)
	assert.InDelta(t, 100.0, report.HitRate, 0.001)
}

func TestGetMemoryInfo(t *testing.T) {
	env := setupEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/cache/memory")
	require.Equal(t, http.StatusOK, rec.Code)

	var info model.MemoryUsageInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &info))
	assert.Equal(t, int64(100), info.UsedMemory)
	assert.Equal(t, int64(10_000), info.MaxMemory)
	assert.InDelta(t, 0.01, info.UsageRatio, 0.001)
}

func TestGetRecommendations(t *testing.T) {
	env := setupEnv(t)
	env.store.used = 9_500

	rec := env.do(t, http.MethodGet, "/api/v1/cache/recommendations")
	require.Equal(t, http.StatusOK, rec.Code)

	var recommendations []model.OptimizationRecommendation
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recommendations))
	require.NotEmpty(t, recommendations)
	assert.Equal(t, "MEMORY_CRITICAL", recommendations[0].Type)
}

func TestTriggerCleanup(t *testing.T) {
	env := setupEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cache/cleanup")
	require.Equal(t, http.StatusOK, rec.Code)

	var result model.CleanupResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, int64(0), result.KeysRemoved)
}

func TestTriggerWarmupAndHistory(t *testing.T) {
	env := setupEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/cache/warmup")
	require.Equal(t, http.StatusOK, rec.Code)

	var execution model.WarmupExecution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &execution))
	assert.True(t, execution.Success)
	assert.NotEmpty(t, execution.ID)

	rec = env.do(t, http.MethodGet, "/api/v1/cache/warmup/history")
	require.Equal(t, http.StatusOK, rec.Code)

	var history []model.WarmupExecution
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 1)
	assert.Equal(t, execution.ID, history[0].ID)
}

func TestGetAccessPatterns(t *testing.T) {
	env := setupEnv(t)
	env.engine.RecordCacheAccess(cache.TypeUserPermissions, "alice")

	rec := env.do(t, http.MethodGet, "/api/v1/cache/warmup/patterns")
	require.Equal(t, http.StatusOK, rec.Code)

	var patterns []model.AccessPatternInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &patterns))
	require.Len(t, patterns, 1)
	assert.Equal(t, cache.TypeUserPermissions, patterns[0].CacheType)
	assert.Equal(t, int64(1), patterns[0].TotalAccesses)
}

func TestEvictUser(t *testing.T) {
	env := setupEnv(t)
	_, err := env.cacheService.GetUserPermissions(context.Background(), "alice")
	require.NoError(t, err)
	require.True(t, env.store.has("perm:user:alice"))

	rec := env.do(t, http.MethodPost, "/api/v1/cache/evict/users/alice")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, env.store.has("perm:user:alice"))
}

func TestEvictDocument(t *testing.T) {
	env := setupEnv(t)
	_, err := env.cacheService.IsDocumentPublic(context.Background(), "doc-1")
	require.NoError(t, err)
	require.True(t, env.store.has("perm:docpub:doc-1"))

	rec := env.do(t, http.MethodPost, "/api/v1/cache/evict/documents/doc-1")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.False(t, env.store.has("perm:docpub:doc-1"))
}

func TestResetStatistics(t *testing.T) {
	env := setupEnv(t)
	env.analyzer.RecordCacheOperation(cache.TypeUserPermissions, time.Millisecond, true)

	rec := env.do(t, http.MethodPost, "/api/v1/cache/reset/statistics")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, int64(0), env.analyzer.PerformanceReport().TotalRequests)
}

func TestResetAccessPatterns(t *testing.T) {
	env := setupEnv(t)
	env.engine.RecordCacheAccess(cache.TypeUserPermissions, "alice")

	rec := env.do(t, http.MethodPost, "/api/v1/cache/reset/patterns")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, env.engine.AccessPatterns())
}

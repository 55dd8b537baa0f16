package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/docuvault/api/config"
)

func TestInitConfigDefaults(t *testing.T) {
	require.NoError(t, config.InitConfig())

	assert.Equal(t, "8080", config.GetString("server.port"))
	assert.Equal(t, "bolt://localhost:7687", config.GetString("neo4j.uri"))
	assert.Equal(t, "localhost:6379", config.GetString("redis.addr"))
	assert.Equal(t, 0, config.GetInt("redis.db"))

	assert.Equal(t, 30*time.Minute, config.GetDuration("cache.userPermissionsTTL"))
	assert.Equal(t, time.Hour, config.GetDuration("cache.documentPublicTTL"))
	assert.Equal(t, 30*time.Minute, config.GetDuration("cache.assignmentTTL"))

	assert.True(t, config.GetBool("optimizer.enabled"))
	assert.InDelta(t, 0.8, config.GetFloat64("optimizer.maxMemoryUsageRatio"), 0.001)
	assert.InDelta(t, 0.9, config.GetFloat64("optimizer.cleanupThresholdRatio"), 0.001)
	assert.Equal(t, 100, config.GetInt("optimizer.batchSize"))
	assert.InDelta(t, 1.5, config.GetFloat64("optimizer.ttlExtensionFactor"), 0.001)
	assert.Equal(t, 3600, config.GetInt("optimizer.idleThresholdSeconds"))

	assert.True(t, config.GetBool("warmup.enabled"))
	assert.Equal(t, []int{9, 10, 11, 14, 15, 16}, config.GetIntSlice("warmup.peakHours"))
	assert.InDelta(t, 0.7, config.GetFloat64("warmup.minHitRate"), 0.001)
	assert.InDelta(t, 0.8, config.GetFloat64("warmup.maxMemoryUsage"), 0.001)
	assert.Equal(t, 100, config.GetInt("warmup.batchSize"))

	assert.Equal(t, "*/5 * * * *", config.GetString("scheduler.memoryCheckSpec"))
	assert.Equal(t, "*/30 * * * *", config.GetString("scheduler.healthCheckSpec"))
	assert.Equal(t, "0 * * * *", config.GetString("scheduler.warmupSpec"))
	assert.Equal(t, "0 3 * * *", config.GetString("scheduler.deepOptimizationSpec"))
	assert.Equal(t, "0 6 * * 1", config.GetString("scheduler.weeklyReportSpec"))
}

func TestGetConfigUnmarshalsTypedSections(t *testing.T) {
	require.NoError(t, config.InitConfig())

	cfg := config.GetConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.True(t, cfg.Optimizer.Enabled)
	assert.Equal(t, 100, cfg.Warmup.BatchSize)
}

// api/cache/memory_optimizer.go
package cache

import (
	"context"
	"runtime"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/docuvault/api/config"
	logger "github.com/docuvault/api/logging"
	"github.com/docuvault/api/model"
)

// Cleanup category names reported in CleanupResult.RemovedByCategory.
const (
	categoryStale      = "stale"
	categoryLowHitRate = "low_hit_rate"
	categoryIdle       = "idle"
)

// CacheMemoryOptimizer polls the backing store's memory and keyspace
// statistics, classifies pressure, runs cleanup passes and emits prioritized
// optimization recommendations.
type CacheMemoryOptimizer struct {
	store    KeyValueStore
	analyzer *CachePerformanceAnalyzer
}

func NewCacheMemoryOptimizer(store KeyValueStore, analyzer *CachePerformanceAnalyzer) *CacheMemoryOptimizer {
	return &CacheMemoryOptimizer{store: store, analyzer: analyzer}
}

// MemoryUsageInfo returns a point-in-time snapshot of store memory and
// keyspace usage. When the store reports no memory ceiling, the process
// memory footprint serves as the ceiling so the ratio stays meaningful.
func (o *CacheMemoryOptimizer) MemoryUsageInfo(ctx context.Context) (model.MemoryUsageInfo, error) {
	used, max, err := o.store.MemoryInfo(ctx)
	if err != nil {
		return model.MemoryUsageInfo{}, err
	}
	if max == 0 {
		var ms runtime.MemStats
		runtime.ReadMemStats(&ms)
		max = int64(ms.Sys)
	}

	info := model.MemoryUsageInfo{
		UsedMemory: used,
		MaxMemory:  max,
		KeysByType: make(map[string]int64),
	}
	if max > 0 {
		info.UsageRatio = float64(used) / float64(max)
	}

	count, err := o.store.KeyCount(ctx)
	if err != nil {
		return model.MemoryUsageInfo{}, err
	}
	info.KeyCount = count

	keys, err := o.store.Keys(ctx, cacheNamespace)
	if err != nil {
		return model.MemoryUsageInfo{}, err
	}
	for _, key := range keys {
		if cacheType := cacheTypeForKey(key); cacheType != "" {
			info.KeysByType[cacheType]++
		}
	}
	return info, nil
}

// IsMemoryPressure reports whether usage exceeds the configured maximum
// ratio (default 0.8).
func (o *CacheMemoryOptimizer) IsMemoryPressure(ctx context.Context) (bool, error) {
	info, err := o.MemoryUsageInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.UsageRatio > config.GetFloat64("optimizer.maxMemoryUsageRatio"), nil
}

// RequiresCleanup reports whether usage exceeds the cleanup threshold
// (default 0.9).
func (o *CacheMemoryOptimizer) RequiresCleanup(ctx context.Context) (bool, error) {
	info, err := o.MemoryUsageInfo(ctx)
	if err != nil {
		return false, err
	}
	return info.UsageRatio > config.GetFloat64("optimizer.cleanupThresholdRatio"), nil
}

// PerformCleanup runs the cleanup passes asynchronously and delivers the
// result on the returned channel. When optimization is disabled the result
// is all zeros and the store is never touched.
func (o *CacheMemoryOptimizer) PerformCleanup(ctx context.Context) <-chan model.CleanupResult {
	out := make(chan model.CleanupResult, 1)
	if !config.GetBool("optimizer.enabled") {
		out <- model.CleanupResult{RemovedByCategory: map[string]int64{}}
		close(out)
		return out
	}
	go func() {
		out <- o.runCleanup(ctx)
		close(out)
	}()
	return out
}

func (o *CacheMemoryOptimizer) runCleanup(ctx context.Context) model.CleanupResult {
	start := time.Now()
	usedBefore, _, err := o.store.MemoryInfo(ctx)
	if err != nil {
		logger.Warn("Failed to read memory before cleanup", zap.Error(err))
	}

	result := model.CleanupResult{
		RemovedByCategory: map[string]int64{},
	}

	stale := o.sweepStale(ctx)
	result.RemovedByCategory[categoryStale] = stale

	lowHit := o.sweepLowHitRate(ctx)
	result.RemovedByCategory[categoryLowHitRate] = lowHit

	idle := o.sweepIdle(ctx)
	result.RemovedByCategory[categoryIdle] = idle

	result.KeysRemoved = stale + lowHit + idle

	if err := o.store.Compact(ctx); err != nil {
		logger.Warn("Background compaction failed", zap.Error(err))
	}

	usedAfter, _, err := o.store.MemoryInfo(ctx)
	if err != nil {
		logger.Warn("Failed to read memory after cleanup", zap.Error(err))
	}
	// Can go negative when concurrent writes grow usage during the sweep;
	// that is reported as-is.
	result.MemoryFreed = usedBefore - usedAfter
	result.DurationMillis = time.Since(start).Milliseconds()

	logger.Info("Cache cleanup completed",
		zap.Int64("keysRemoved", result.KeysRemoved),
		zap.Int64("memoryFreed", result.MemoryFreed),
		zap.Int64("durationMillis", result.DurationMillis))
	return result
}

// sweepStale deletes keys in the performance namespace that carry no TTL;
// entries there are short-lived by contract, so a missing TTL marks an
// orphan.
func (o *CacheMemoryOptimizer) sweepStale(ctx context.Context) int64 {
	keys, err := o.store.Keys(ctx, performanceNamespace)
	if err != nil {
		logger.Warn("Stale sweep scan failed", zap.Error(err))
		return 0
	}

	var orphans []string
	for _, key := range keys {
		ttl, err := o.store.TTL(ctx, key)
		if err != nil {
			logger.Warn("Stale sweep TTL check failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if ttl == -1*time.Second {
			orphans = append(orphans, key)
		}
	}
	if len(orphans) == 0 {
		return 0
	}

	removed, err := o.store.Delete(ctx, orphans...)
	if err != nil {
		logger.Warn("Stale sweep delete failed", zap.Error(err))
		return 0
	}
	return removed
}

// sweepLowHitRate is a reserved hook, pending integration with the
// analyzer's per-type efficiency. It always removes nothing.
func (o *CacheMemoryOptimizer) sweepLowHitRate(ctx context.Context) int64 {
	logger.Debug("Low-hit-rate sweep not yet implemented, skipping")
	return 0
}

// sweepIdle deletes cache-namespace keys whose store-reported idle time
// exceeds the configured threshold (default 3600s).
func (o *CacheMemoryOptimizer) sweepIdle(ctx context.Context) int64 {
	threshold := time.Duration(config.GetInt("optimizer.idleThresholdSeconds")) * time.Second

	keys, err := o.store.Keys(ctx, cacheNamespace)
	if err != nil {
		logger.Warn("Idle sweep scan failed", zap.Error(err))
		return 0
	}

	var idleKeys []string
	for _, key := range keys {
		idle, err := o.store.IdleTime(ctx, key)
		if err != nil {
			logger.Warn("Idle sweep introspection failed", zap.String("key", key), zap.Error(err))
			continue
		}
		if idle > threshold {
			idleKeys = append(idleKeys, key)
		}
	}
	if len(idleKeys) == 0 {
		return 0
	}

	removed, err := o.store.Delete(ctx, idleKeys...)
	if err != nil {
		logger.Warn("Idle sweep delete failed", zap.Error(err))
		return 0
	}
	return removed
}

// OptimizationRecommendations inspects memory, keyspace and analyzer state
// and returns recommendations sorted descending by priority.
func (o *CacheMemoryOptimizer) OptimizationRecommendations(ctx context.Context) ([]model.OptimizationRecommendation, error) {
	info, err := o.MemoryUsageInfo(ctx)
	if err != nil {
		return nil, err
	}

	recs := make([]model.OptimizationRecommendation, 0, 6)

	cleanupThreshold := config.GetFloat64("optimizer.cleanupThresholdRatio")
	pressureThreshold := config.GetFloat64("optimizer.maxMemoryUsageRatio")
	switch {
	case info.UsageRatio > cleanupThreshold:
		recs = append(recs, model.OptimizationRecommendation{
			Type:        "MEMORY_CRITICAL",
			Description: "Memory usage exceeds the cleanup threshold.",
			Action:      "Run an immediate cleanup pass.",
			Priority:    5,
		})
	case info.UsageRatio > pressureThreshold:
		recs = append(recs, model.OptimizationRecommendation{
			Type:        "MEMORY_PRESSURE",
			Description: "Memory usage exceeds the configured maximum ratio.",
			Action:      "Schedule a cleanup pass.",
			Priority:    3,
		})
	}

	if info.KeyCount > 100_000 {
		recs = append(recs, model.OptimizationRecommendation{
			Type:        "KEYSPACE_SIZE",
			Description: "Keyspace exceeds 100,000 keys.",
			Action:      "Review expiration policies or partition the keyspace.",
			Priority:    2,
		})
	}

	if info.KeyCount > 0 {
		for _, cacheType := range sortedTypes(info.KeysByType) {
			count := info.KeysByType[cacheType]
			if float64(count)/float64(info.KeyCount) > 0.5 {
				recs = append(recs, model.OptimizationRecommendation{
					Type:        "KEYSPACE_SKEW",
					Description: "Cache type " + cacheType + " holds more than half of all keys.",
					Action:      "Rebalance TTLs or capacity for " + cacheType + ".",
					Priority:    2,
				})
			}
		}
	}

	report := o.analyzer.PerformanceReport()
	if report.TotalRequests > 0 && report.HitRate < 70 {
		recs = append(recs, model.OptimizationRecommendation{
			Type:        "LOW_HIT_RATE",
			Description: "Overall cache hit rate is below 70%.",
			Action:      "Review the warmup strategy and TTL configuration.",
			Priority:    4,
		})
	}
	if report.AvgResponseTimeMillis > 50 {
		recs = append(recs, model.OptimizationRecommendation{
			Type:        "HIGH_LATENCY",
			Description: "Average cache response time exceeds 50ms.",
			Action:      "Check store connection pooling.",
			Priority:    3,
		})
	}

	sort.SliceStable(recs, func(i, j int) bool {
		return recs[i].Priority > recs[j].Priority
	})
	return recs, nil
}

// ScheduledMemoryCheck runs on each scheduler tick: it classifies current
// usage and fires an asynchronous cleanup when the threshold is crossed.
// It never blocks the caller on the cleanup itself.
func (o *CacheMemoryOptimizer) ScheduledMemoryCheck(ctx context.Context) {
	info, err := o.MemoryUsageInfo(ctx)
	if err != nil {
		logger.Error("Scheduled memory check failed", zap.Error(err))
		return
	}
	logger.Debug("Scheduled memory check",
		zap.Float64("usageRatio", info.UsageRatio),
		zap.Int64("keyCount", info.KeyCount))

	if info.UsageRatio > config.GetFloat64("optimizer.cleanupThresholdRatio") {
		logger.Warn("Memory usage over cleanup threshold, triggering cleanup",
			zap.Float64("usageRatio", info.UsageRatio))
		results := o.PerformCleanup(ctx)
		go func() {
			result := <-results
			logger.Info("Triggered cleanup finished", zap.Int64("keysRemoved", result.KeysRemoved))
		}()
	}
}

func sortedTypes(counts map[string]int64) []string {
	types := make([]string, 0, len(counts))
	for t := range counts {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// api/warmup/strategy.go
package warmup

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/docuvault/api/cache"
	"github.com/docuvault/api/config"
	logger "github.com/docuvault/api/logging"
	"github.com/docuvault/api/model"
)

// Strategy names, in selection priority order.
const (
	StrategyMemoryPressureRelief = "MEMORY_PRESSURE_RELIEF"
	StrategyPeakHourPreparation  = "PEAK_HOUR_PREPARATION"
	StrategyLowHitRateRecovery   = "LOW_HIT_RATE_RECOVERY"
	StrategyAdaptiveLearning     = "ADAPTIVE_LEARNING"
	StrategyScheduledMaintenance = "SCHEDULED_MAINTENANCE"
	strategyDisabled             = "DISABLED"
)

// maxExecutionHistory bounds the warmup execution history; the oldest
// execution is dropped once full.
const maxExecutionHistory = 100

// adaptiveCooldown is the minimum spacing between adaptive-learning runs.
const adaptiveCooldown = 6 * time.Hour

// MemoryUsageProvider supplies the current store memory snapshot for
// strategy decisions. CacheMemoryOptimizer is the production implementation.
type MemoryUsageProvider interface {
	MemoryUsageInfo(ctx context.Context) (model.MemoryUsageInfo, error)
}

// Service performs the actual bulk re-population reads. The engine treats
// its operations as opaque: it only consumes the success/failure counts.
type Service interface {
	WarmupUserPermissions(ctx context.Context, limit int) (model.WarmupResult, error)
	WarmupDocumentPublicStatus(ctx context.Context, limit int) (model.WarmupResult, error)
	WarmupPopularDocumentAssignments(ctx context.Context, keys []string) (model.WarmupResult, error)
	PerformCompleteWarmup(ctx context.Context) (map[string]model.WarmupResult, error)
}

// accessPattern is the per-cache-type mutable aggregate: hourly access
// histogram, per-key counters and the caller-supplied rolling hit rate.
// Guarded by the engine mutex.
type accessPattern struct {
	hourly        [24]int64
	keyAccesses   map[string]int64
	totalAccesses int64
	avgHitRate    float64
	hitRateKnown  bool
	lastUpdated   time.Time
}

func newAccessPattern() *accessPattern {
	return &accessPattern{keyAccesses: make(map[string]int64)}
}

// peakHours returns the three busiest hours, ties broken by the earlier hour.
func (p *accessPattern) peakHours() []int {
	hours := make([]int, 24)
	for i := range hours {
		hours[i] = i
	}
	sort.SliceStable(hours, func(i, j int) bool {
		return p.hourly[hours[i]] > p.hourly[hours[j]]
	})
	peaks := make([]int, 0, 3)
	for _, h := range hours[:3] {
		if p.hourly[h] > 0 {
			peaks = append(peaks, h)
		}
	}
	return peaks
}

// popularKeys returns the limit most-accessed keys, count descending with
// ties broken by key order so the result is deterministic.
func (p *accessPattern) popularKeys(limit int) []string {
	keys := make([]string, 0, len(p.keyAccesses))
	for k := range p.keyAccesses {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if p.keyAccesses[keys[i]] != p.keyAccesses[keys[j]] {
			return p.keyAccesses[keys[i]] > p.keyAccesses[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if limit < len(keys) {
		keys = keys[:limit]
	}
	return keys
}

// StrategyEngine maintains per-cache access patterns, picks one of the five
// warmup strategies from observed system state, delegates execution to the
// warmup Service and records execution history.
type StrategyEngine struct {
	memory  MemoryUsageProvider
	service Service
	now     func() time.Time

	mu              sync.Mutex
	patterns        map[string]*accessPattern
	history         []model.WarmupExecution
	lastAdaptiveRun time.Time
}

func NewStrategyEngine(memory MemoryUsageProvider, service Service) *StrategyEngine {
	return &StrategyEngine{
		memory:   memory,
		service:  service,
		now:      time.Now,
		patterns: make(map[string]*accessPattern),
		history:  make([]model.WarmupExecution, 0, maxExecutionHistory),
	}
}

// RecordCacheAccess increments the hourly bucket and per-key counter of one
// cache type's access pattern.
func (e *StrategyEngine) RecordCacheAccess(cacheType, key string) {
	now := e.now()
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.patterns[cacheType]
	if p == nil {
		p = newAccessPattern()
		e.patterns[cacheType] = p
	}
	p.hourly[now.Hour()]++
	p.keyAccesses[key]++
	p.totalAccesses++
	p.lastUpdated = now
}

// UpdateCacheHitRate overwrites the tracked average hit rate for a cache
// type. This rate is supplied by the caller and is distinct from the
// analyzer's own computation.
func (e *StrategyEngine) UpdateCacheHitRate(cacheType string, rate float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	p := e.patterns[cacheType]
	if p == nil {
		p = newAccessPattern()
		e.patterns[cacheType] = p
	}
	p.avgHitRate = rate
	p.hitRateKnown = true
	p.lastUpdated = e.now()
}

// DetermineOptimalStrategy picks the warmup strategy for the current system
// state using first-match priority: memory pressure, then upcoming peak
// hours, then a low-hit-rate cache, then adaptive learning, then the
// scheduled maintenance fallback. Given identical inputs it always returns
// the same strategy.
func (e *StrategyEngine) DetermineOptimalStrategy(ctx context.Context) string {
	now := e.now()

	if info, err := e.memory.MemoryUsageInfo(ctx); err != nil {
		logger.Warn("Memory snapshot unavailable for strategy decision", zap.Error(err))
	} else if info.UsageRatio > config.GetFloat64("warmup.maxMemoryUsage") {
		return StrategyMemoryPressureRelief
	}

	if e.isNearPeakHour(now) {
		return StrategyPeakHourPreparation
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if t := e.lowestHitRateTypeLocked(); t != "" {
		return StrategyLowHitRateRecovery
	}

	tracked := 0
	for _, p := range e.patterns {
		if p.totalAccesses > 0 {
			tracked++
		}
	}
	if tracked >= 2 && now.Sub(e.lastAdaptiveRun) > adaptiveCooldown {
		return StrategyAdaptiveLearning
	}

	return StrategyScheduledMaintenance
}

func (e *StrategyEngine) isNearPeakHour(now time.Time) bool {
	current := now.Hour()
	next := (current + 1) % 24
	for _, h := range config.GetIntSlice("warmup.peakHours") {
		if h == current || h == next {
			return true
		}
	}
	return false
}

// lowestHitRateTypeLocked returns the cache type with the lowest recorded
// hit rate below the configured minimum, or "" when none qualifies.
// Ties go to the lexically first type.
func (e *StrategyEngine) lowestHitRateTypeLocked() string {
	minRate := config.GetFloat64("warmup.minHitRate")
	lowest := ""
	lowestRate := minRate
	types := make([]string, 0, len(e.patterns))
	for t := range e.patterns {
		types = append(types, t)
	}
	sort.Strings(types)
	for _, t := range types {
		p := e.patterns[t]
		if p.hitRateKnown && p.avgHitRate < lowestRate {
			lowest = t
			lowestRate = p.avgHitRate
		}
	}
	return lowest
}

// ExecuteSmartWarmup picks and runs a strategy asynchronously, delivering
// the execution record on the returned channel. The record is appended to
// the bounded history regardless of outcome. When the engine is disabled by
// configuration a disabled-marker execution is returned and no cache is
// touched.
func (e *StrategyEngine) ExecuteSmartWarmup(ctx context.Context) <-chan model.WarmupExecution {
	out := make(chan model.WarmupExecution, 1)
	if !config.GetBool("warmup.enabled") {
		out <- model.WarmupExecution{
			ID:          uuid.New().String(),
			Strategy:    strategyDisabled,
			StartTime:   e.now(),
			ItemsWarmed: map[string]int{},
			Success:     false,
			Reason:      "Warmup is disabled by configuration",
		}
		close(out)
		return out
	}
	go func() {
		out <- e.runSmartWarmup(ctx)
		close(out)
	}()
	return out
}

func (e *StrategyEngine) runSmartWarmup(ctx context.Context) model.WarmupExecution {
	start := e.now()
	strategy := e.DetermineOptimalStrategy(ctx)
	logger.Info("Executing smart warmup", zap.String("strategy", strategy))

	execution := model.WarmupExecution{
		ID:          uuid.New().String(),
		Strategy:    strategy,
		StartTime:   start,
		ItemsWarmed: map[string]int{},
	}

	items, err := e.executeStrategy(ctx, strategy)
	execution.ItemsWarmed = items
	execution.DurationMillis = e.now().Sub(start).Milliseconds()
	if err != nil {
		execution.Success = false
		execution.Reason = err.Error()
		logger.Error("Smart warmup failed", zap.String("strategy", strategy), zap.Error(err))
	} else {
		execution.Success = true
		execution.Reason = "Completed successfully"
	}

	e.appendExecution(execution)
	return execution
}

func (e *StrategyEngine) executeStrategy(ctx context.Context, strategy string) (map[string]int, error) {
	batchSize := config.GetInt("warmup.batchSize")
	items := map[string]int{}

	switch strategy {
	case StrategyMemoryPressureRelief:
		// Under pressure only the highest-priority cache is warmed, at half
		// the usual batch size.
		result, err := e.service.WarmupUserPermissions(ctx, batchSize/2)
		items[cache.TypeUserPermissions] = result.Succeeded
		return items, err

	case StrategyPeakHourPreparation:
		permResult, err := e.service.WarmupUserPermissions(ctx, batchSize)
		items[cache.TypeUserPermissions] = permResult.Succeeded
		if err != nil {
			return items, err
		}
		pubResult, err := e.service.WarmupDocumentPublicStatus(ctx, batchSize)
		items[cache.TypeDocumentPublic] = pubResult.Succeeded
		return items, err

	case StrategyLowHitRateRecovery:
		e.mu.Lock()
		target := e.lowestHitRateTypeLocked()
		var keys []string
		if p := e.patterns[target]; p != nil {
			keys = p.popularKeys(batchSize)
		}
		e.mu.Unlock()
		return e.warmSingleType(ctx, target, batchSize, keys, items)

	case StrategyAdaptiveLearning:
		e.mu.Lock()
		targets := make(map[string][]string)
		for t, p := range e.patterns {
			if p.totalAccesses > 0 {
				targets[t] = p.popularKeys(batchSize)
			}
		}
		e.lastAdaptiveRun = e.now()
		e.mu.Unlock()

		var firstErr error
		for _, t := range sortedKeys(targets) {
			if _, err := e.warmSingleType(ctx, t, batchSize, targets[t], items); err != nil && firstErr == nil {
				firstErr = err
			}
		}
		return items, firstErr

	default: // StrategyScheduledMaintenance
		results, err := e.service.PerformCompleteWarmup(ctx)
		for t, r := range results {
			items[t] = r.Succeeded
		}
		return items, err
	}
}

// warmSingleType warms exactly one cache type through the matching service
// operation. Assignment caches are warmed from their popular keys; the other
// types are bulk-warmed up to the batch size.
func (e *StrategyEngine) warmSingleType(ctx context.Context, cacheType string, batchSize int, popularKeys []string, items map[string]int) (map[string]int, error) {
	switch cacheType {
	case cache.TypeUserPermissions:
		result, err := e.service.WarmupUserPermissions(ctx, batchSize)
		items[cacheType] = result.Succeeded
		return items, err
	case cache.TypeDocumentPublic:
		result, err := e.service.WarmupDocumentPublicStatus(ctx, batchSize)
		items[cacheType] = result.Succeeded
		return items, err
	case cache.TypeUserDocAssignments, cache.TypeDocumentAssignments:
		result, err := e.service.WarmupPopularDocumentAssignments(ctx, popularKeys)
		items[cacheType] = result.Succeeded
		return items, err
	default:
		logger.Warn("No warmup operation for cache type", zap.String("cacheType", cacheType))
		return items, nil
	}
}

func (e *StrategyEngine) appendExecution(execution model.WarmupExecution) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = append(e.history, execution)
	if len(e.history) > maxExecutionHistory {
		e.history = e.history[1:]
	}
}

// WarmupHistory returns a copy of the bounded execution history, oldest
// first.
func (e *StrategyEngine) WarmupHistory() []model.WarmupExecution {
	e.mu.Lock()
	defer e.mu.Unlock()
	history := make([]model.WarmupExecution, len(e.history))
	copy(history, e.history)
	return history
}

// AccessPatterns returns read-only snapshots of all tracked access patterns,
// sorted by cache type.
func (e *StrategyEngine) AccessPatterns() []model.AccessPatternInfo {
	e.mu.Lock()
	defer e.mu.Unlock()

	infos := make([]model.AccessPatternInfo, 0, len(e.patterns))
	for _, t := range sortedPatternTypes(e.patterns) {
		p := e.patterns[t]
		hourly := make([]int64, 24)
		copy(hourly, p.hourly[:])
		infos = append(infos, model.AccessPatternInfo{
			CacheType:      t,
			TotalAccesses:  p.totalAccesses,
			HourlyAccesses: hourly,
			AvgHitRate:     p.avgHitRate,
			PeakHours:      p.peakHours(),
			PopularKeys:    p.popularKeys(10),
			LastUpdated:    p.lastUpdated,
		})
	}
	return infos
}

// ResetAccessPatterns discards all tracked patterns. Explicit and
// irreversible; triggered by operators or the maintenance jobs.
func (e *StrategyEngine) ResetAccessPatterns() {
	e.mu.Lock()
	e.patterns = make(map[string]*accessPattern)
	e.mu.Unlock()
	logger.Info("Access patterns reset")
}

// ClearWarmupHistory discards the execution history.
func (e *StrategyEngine) ClearWarmupHistory() {
	e.mu.Lock()
	e.history = e.history[:0]
	e.mu.Unlock()
	logger.Info("Warmup history cleared")
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedPatternTypes(m map[string]*accessPattern) []string {
	types := make([]string, 0, len(m))
	for t := range m {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

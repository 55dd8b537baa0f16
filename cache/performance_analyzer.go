// api/cache/performance_analyzer.go
package cache

import (
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	logger "github.com/docuvault/api/logging"
	"github.com/docuvault/api/model"
)

// maxEventHistory bounds the in-memory ring of cache events; the oldest
// event is dropped once the ring is full.
const maxEventHistory = 1000

const hourBucketFormat = "2006-01-02 15"

// CachePerformanceAnalyzer ingests per-operation hit/miss and latency events
// and derives the performance report: hit/miss rate, average latency,
// hourly trend, per-cache-type efficiency and recommendations. Hit and miss
// totals live in the Stats aggregate owned by PermissionCacheService; this
// analyzer increments them on every recorded operation and reads them back
// when reporting, so the report covers all cache-type activity.
type CachePerformanceAnalyzer struct {
	stats *Stats

	mu                 sync.Mutex
	events             []model.CacheEvent
	totalLatencyMillis int64
	operationCount     int64
	evictions          int64
}

func NewCachePerformanceAnalyzer(stats *Stats) *CachePerformanceAnalyzer {
	return &CachePerformanceAnalyzer{
		stats:  stats,
		events: make([]model.CacheEvent, 0, maxEventHistory),
	}
}

// RecordCacheOperation records one cache lookup: its hit/miss outcome and
// execution time. The event lands in the bounded ring and the shared
// counters for the named operation's cache type.
func (a *CachePerformanceAnalyzer) RecordCacheOperation(operation string, executionTime time.Duration, hit bool) {
	if hit {
		a.stats.RecordHit(operation)
	} else {
		a.stats.RecordMiss(operation)
	}

	event := model.CacheEvent{
		Timestamp:           time.Now(),
		Operation:           operation,
		ExecutionTimeMillis: executionTime.Milliseconds(),
		Hit:                 hit,
	}

	a.mu.Lock()
	a.totalLatencyMillis += event.ExecutionTimeMillis
	a.operationCount++
	a.events = append(a.events, event)
	if len(a.events) > maxEventHistory {
		a.events = a.events[1:]
	}
	a.mu.Unlock()
}

// RecordCacheEviction increments the eviction counter only.
func (a *CachePerformanceAnalyzer) RecordCacheEviction(cacheName string) {
	a.stats.RecordEviction()
	a.mu.Lock()
	a.evictions++
	a.mu.Unlock()
	logger.Debug("Cache eviction recorded", zap.String("cache", cacheName))
}

// EventCount returns the number of events currently held in the ring.
func (a *CachePerformanceAnalyzer) EventCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.events)
}

// Evictions returns the cumulative eviction count.
func (a *CachePerformanceAnalyzer) Evictions() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.evictions
}

// PerformanceReport derives the full report from the shared counters and the
// event ring.
func (a *CachePerformanceAnalyzer) PerformanceReport() model.PerformanceReport {
	hits, misses := a.stats.Totals()
	total := hits + misses

	a.mu.Lock()
	events := make([]model.CacheEvent, len(a.events))
	copy(events, a.events)
	latencySum := a.totalLatencyMillis
	opCount := a.operationCount
	evictions := a.evictions
	a.mu.Unlock()

	report := model.PerformanceReport{
		TotalRequests:   total,
		TotalEvictions:  evictions,
		HourlyTrend:     hourlyTrend(events),
		CacheEfficiency: a.cacheEfficiency(),
		GeneratedAt:     time.Now(),
	}
	if total > 0 {
		report.HitRate = float64(hits) / float64(total) * 100
		report.MissRate = float64(misses) / float64(total) * 100
	}
	if opCount > 0 {
		report.AvgResponseTimeMillis = float64(latencySum) / float64(opCount)
	}
	report.Recommendations = recommendations(report)
	return report
}

func (a *CachePerformanceAnalyzer) cacheEfficiency() map[string]model.CacheTypeEfficiency {
	snapshot := a.stats.Snapshot(nil)
	efficiency := make(map[string]model.CacheTypeEfficiency, len(snapshot.ByType))
	for cacheType, st := range snapshot.ByType {
		efficiency[cacheType] = model.CacheTypeEfficiency{
			HitRate:  st.HitRate(),
			Requests: st.Requests(),
		}
	}
	return efficiency
}

// hourlyTrend groups the event history into "yyyy-MM-dd HH" buckets sorted
// ascending by bucket key.
func hourlyTrend(events []model.CacheEvent) []model.HourlyTrendPoint {
	type bucket struct {
		hits, requests int64
		latencySum     int64
	}
	buckets := make(map[string]*bucket)
	for _, e := range events {
		hour := e.Timestamp.Format(hourBucketFormat)
		b := buckets[hour]
		if b == nil {
			b = &bucket{}
			buckets[hour] = b
		}
		b.requests++
		b.latencySum += e.ExecutionTimeMillis
		if e.Hit {
			b.hits++
		}
	}

	hours := make([]string, 0, len(buckets))
	for hour := range buckets {
		hours = append(hours, hour)
	}
	sort.Strings(hours)

	trend := make([]model.HourlyTrendPoint, 0, len(hours))
	for _, hour := range hours {
		b := buckets[hour]
		trend = append(trend, model.HourlyTrendPoint{
			Hour:                  hour,
			HitRate:               float64(b.hits) / float64(b.requests) * 100,
			AvgResponseTimeMillis: float64(b.latencySum) / float64(b.requests),
			Requests:              b.requests,
		})
	}
	return trend
}

// recommendations applies the fixed thresholds in order; all that apply are
// included, and a healthy report gets exactly one line.
func recommendations(report model.PerformanceReport) []string {
	recs := make([]string, 0, 4)
	if report.TotalRequests > 0 && report.HitRate < 70 {
		recs = append(recs, "Cache hit rate is below 70%. Consider increasing TTL values.")
	}
	if report.TotalRequests > 0 && report.HitRate > 95 {
		recs = append(recs, "Cache hit rate is above 95%. TTL values could be reduced to free memory sooner.")
	}
	if report.AvgResponseTimeMillis > 100 {
		recs = append(recs, "Average cache response time exceeds 100ms. Check the store connection configuration.")
	}
	if report.TotalEvictions > 1000 {
		recs = append(recs, "High eviction count. Optimize the cache invalidation strategy.")
	}
	if len(recs) == 0 {
		recs = append(recs, "Cache performance is healthy.")
	}
	return recs
}

// ResetStatistics zeroes all counters and clears the event history. Invoked
// by the nightly and weekly maintenance jobs.
func (a *CachePerformanceAnalyzer) ResetStatistics() {
	a.stats.Reset()
	a.mu.Lock()
	a.events = a.events[:0]
	a.totalLatencyMillis = 0
	a.operationCount = 0
	a.evictions = 0
	a.mu.Unlock()
	logger.Info("Cache statistics reset")
}

// api/model/cache.go
package model

import "time"

// CacheEvent is a single recorded cache operation. Events live in a bounded
// in-memory ring consumed by the performance analyzer and are never persisted.
type CacheEvent struct {
	Timestamp           time.Time `json:"timestamp"`
	Operation           string    `json:"operation"`
	ExecutionTimeMillis int64     `json:"execution_time_millis"`
	Hit                 bool      `json:"hit"`
}

// CacheTypeStats is a point-in-time snapshot of one logical cache's counters.
type CacheTypeStats struct {
	Hits     int64 `json:"hits"`
	Misses   int64 `json:"misses"`
	KeyCount int64 `json:"key_count"`
}

func (s CacheTypeStats) Requests() int64 {
	return s.Hits + s.Misses
}

func (s CacheTypeStats) HitRate() float64 {
	total := s.Requests()
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// CacheStats aggregates the counters for all logical caches.
type CacheStats struct {
	TotalHits      int64                     `json:"total_hits"`
	TotalMisses    int64                     `json:"total_misses"`
	TotalEvictions int64                     `json:"total_evictions"`
	TotalKeys      int64                     `json:"total_keys"`
	ByType         map[string]CacheTypeStats `json:"by_type"`
}

type HourlyTrendPoint struct {
	Hour                  string  `json:"hour"` // "2006-01-02 15"
	HitRate               float64 `json:"hit_rate"`
	AvgResponseTimeMillis float64 `json:"avg_response_time_millis"`
	Requests              int64   `json:"requests"`
}

type CacheTypeEfficiency struct {
	HitRate  float64 `json:"hit_rate"`
	Requests int64   `json:"requests"`
}

type PerformanceReport struct {
	HitRate               float64                        `json:"hit_rate"`
	MissRate              float64                        `json:"miss_rate"`
	TotalRequests         int64                          `json:"total_requests"`
	AvgResponseTimeMillis float64                        `json:"avg_response_time_millis"`
	TotalEvictions        int64                          `json:"total_evictions"`
	HourlyTrend           []HourlyTrendPoint             `json:"hourly_trend"`
	CacheEfficiency       map[string]CacheTypeEfficiency `json:"cache_efficiency"`
	Recommendations       []string                       `json:"recommendations"`
	GeneratedAt           time.Time                      `json:"generated_at"`
}

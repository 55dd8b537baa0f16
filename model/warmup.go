// api/model/warmup.go
package model

import "time"

// WarmupExecution records one run of the warmup engine. Executions live in a
// bounded history (oldest dropped first) and are immutable once appended.
type WarmupExecution struct {
	ID             string         `json:"id"`
	Strategy       string         `json:"strategy"`
	StartTime      time.Time      `json:"start_time"`
	ItemsWarmed    map[string]int `json:"items_warmed"`
	DurationMillis int64          `json:"duration_millis"`
	Success        bool           `json:"success"`
	Reason         string         `json:"reason"`
}

// WarmupResult is the outcome of one bulk re-population pass.
type WarmupResult struct {
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// AccessPatternInfo is a read-only snapshot of one cache type's access
// pattern, exposed to the admin surface.
type AccessPatternInfo struct {
	CacheType      string    `json:"cache_type"`
	TotalAccesses  int64     `json:"total_accesses"`
	HourlyAccesses []int64   `json:"hourly_accesses"` // index 0-23
	AvgHitRate     float64   `json:"avg_hit_rate"`
	PeakHours      []int     `json:"peak_hours"`
	PopularKeys    []string  `json:"popular_keys"`
	LastUpdated    time.Time `json:"last_updated"`
}

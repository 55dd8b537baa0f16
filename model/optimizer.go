// api/model/optimizer.go
package model

// MemoryUsageInfo is a point-in-time snapshot of the backing store's memory
// and keyspace, computed on demand and never stored.
type MemoryUsageInfo struct {
	UsedMemory int64            `json:"used_memory"`
	MaxMemory  int64            `json:"max_memory"`
	UsageRatio float64          `json:"usage_ratio"`
	KeyCount   int64            `json:"key_count"`
	KeysByType map[string]int64 `json:"keys_by_type"`
}

type CleanupResult struct {
	KeysRemoved       int64            `json:"keys_removed"`
	MemoryFreed       int64            `json:"memory_freed"`
	DurationMillis    int64            `json:"duration_millis"`
	RemovedByCategory map[string]int64 `json:"removed_by_category"`
}

type OptimizationRecommendation struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	Action      string `json:"action"`
	Priority    int    `json:"priority"` // 1 (low) to 5 (critical)
}

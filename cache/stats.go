// api/cache/stats.go
package cache

import (
	"sync"

	"github.com/docuvault/api/model"
)

// Stats is the hit/miss counter aggregate for all logical caches. It is
// owned by PermissionCacheService and incremented through the analyzer's
// recording path; readers get point-in-time snapshots.
type Stats struct {
	mu        sync.RWMutex
	hits      map[string]int64
	misses    map[string]int64
	evictions int64
}

func NewStats() *Stats {
	return &Stats{
		hits:   make(map[string]int64),
		misses: make(map[string]int64),
	}
}

func (s *Stats) RecordHit(cacheType string) {
	s.mu.Lock()
	s.hits[cacheType]++
	s.mu.Unlock()
}

func (s *Stats) RecordMiss(cacheType string) {
	s.mu.Lock()
	s.misses[cacheType]++
	s.mu.Unlock()
}

func (s *Stats) RecordEviction() {
	s.mu.Lock()
	s.evictions++
	s.mu.Unlock()
}

// Totals returns the cumulative hit and miss counts across all cache types.
func (s *Stats) Totals() (hits int64, misses int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range s.hits {
		hits += h
	}
	for _, m := range s.misses {
		misses += m
	}
	return hits, misses
}

// Snapshot materializes the counters into a model.CacheStats, merging in the
// per-type key counts supplied by the caller.
func (s *Stats) Snapshot(keyCounts map[string]int64) model.CacheStats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byType := make(map[string]model.CacheTypeStats)
	for t, h := range s.hits {
		st := byType[t]
		st.Hits = h
		byType[t] = st
	}
	for t, m := range s.misses {
		st := byType[t]
		st.Misses = m
		byType[t] = st
	}

	var stats model.CacheStats
	for t, count := range keyCounts {
		st := byType[t]
		st.KeyCount = count
		byType[t] = st
		stats.TotalKeys += count
	}
	for _, st := range byType {
		stats.TotalHits += st.Hits
		stats.TotalMisses += st.Misses
	}
	stats.TotalEvictions = s.evictions
	stats.ByType = byType
	return stats
}

// Reset zeroes all counters. Used by the maintenance jobs via the analyzer.
func (s *Stats) Reset() {
	s.mu.Lock()
	s.hits = make(map[string]int64)
	s.misses = make(map[string]int64)
	s.evictions = 0
	s.mu.Unlock()
}

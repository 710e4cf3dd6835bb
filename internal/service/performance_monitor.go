package service

import (
	"sort"
	"sync"
	"time"
)

// slowQueryThreshold marks read-side queries worth a warning
const slowQueryThreshold = 250 * time.Millisecond

// PerformanceMonitor tracks read-side query latency and cache effectiveness
type PerformanceMonitor struct {
	mu          sync.RWMutex
	cachedTimes []time.Duration
	dbTimes     []time.Duration
	perQuery    map[string]int64
	cacheHits   int64
	cacheMisses int64
	slowQueries int64
	maxSamples  int
}

// NewPerformanceMonitor creates a new performance monitor
func NewPerformanceMonitor() *PerformanceMonitor {
	return &PerformanceMonitor{
		cachedTimes: make([]time.Duration, 0, 256),
		dbTimes:     make([]time.Duration, 0, 256),
		perQuery:    make(map[string]int64),
		maxSamples:  1000,
	}
}

// RecordQuery records one query execution. It reports whether the query was slow.
func (pm *PerformanceMonitor) RecordQuery(query string, duration time.Duration, cached bool) bool {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.perQuery[query]++
	if cached {
		pm.cacheHits++
		pm.cachedTimes = appendSample(pm.cachedTimes, duration, pm.maxSamples)
	} else {
		pm.cacheMisses++
		pm.dbTimes = appendSample(pm.dbTimes, duration, pm.maxSamples)
	}

	slow := duration > slowQueryThreshold
	if slow {
		pm.slowQueries++
	}
	return slow
}

// appendSample keeps only the newest max samples
func appendSample(samples []time.Duration, d time.Duration, max int) []time.Duration {
	samples = append(samples, d)
	if len(samples) > max {
		samples = samples[len(samples)-max:]
	}
	return samples
}

// GetStats returns current performance statistics
func (pm *PerformanceMonitor) GetStats() *PerformanceStats {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	total := pm.cacheHits + pm.cacheMisses
	stats := &PerformanceStats{
		TotalQueries: total,
		CacheHits:    pm.cacheHits,
		CacheMisses:  pm.cacheMisses,
		SlowQueries:  pm.slowQueries,
		PerQuery:     make(map[string]int64, len(pm.perQuery)),
	}
	for name, n := range pm.perQuery {
		stats.PerQuery[name] = n
	}

	if total > 0 {
		stats.CacheHitRate = float64(pm.cacheHits) / float64(total) * 100
	}
	stats.AvgCachedQueryMs = averageMs(pm.cachedTimes)
	stats.AvgDBQueryMs = averageMs(pm.dbTimes)
	stats.P95DBQueryMs = percentileMs(pm.dbTimes, 0.95)

	return stats
}

// Reset resets all performance metrics
func (pm *PerformanceMonitor) Reset() {
	pm.mu.Lock()
	defer pm.mu.Unlock()

	pm.cachedTimes = pm.cachedTimes[:0]
	pm.dbTimes = pm.dbTimes[:0]
	pm.perQuery = make(map[string]int64)
	pm.cacheHits = 0
	pm.cacheMisses = 0
	pm.slowQueries = 0
}

func averageMs(samples []time.Duration) float64 {
	if len(samples) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range samples {
		total += d
	}
	return float64(total.Microseconds()) / 1000 / float64(len(samples))
}

func percentileMs(samples []time.Duration, p float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return float64(sorted[idx].Microseconds()) / 1000
}

// PerformanceStats contains performance statistics
type PerformanceStats struct {
	TotalQueries     int64            `json:"totalQueries"`
	CacheHits        int64            `json:"cacheHits"`
	CacheMisses      int64            `json:"cacheMisses"`
	SlowQueries      int64            `json:"slowQueries"`
	CacheHitRate     float64          `json:"cacheHitRate"` // Percentage
	AvgCachedQueryMs float64          `json:"avgCachedQueryMs"`
	AvgDBQueryMs     float64          `json:"avgDBQueryMs"`
	P95DBQueryMs     float64          `json:"p95DBQueryMs"`
	PerQuery         map[string]int64 `json:"perQuery"`
}

package service

import (
	"testing"
	"time"
)

func TestPerformanceMonitor_RecordQuery(t *testing.T) {
	pm := NewPerformanceMonitor()

	pm.RecordQuery("balances", 50*time.Millisecond, true)
	pm.RecordQuery("balances", 70*time.Millisecond, true)
	pm.RecordQuery("summaries", 90*time.Millisecond, true)

	pm.RecordQuery("balances", 200*time.Millisecond, false)
	if slow := pm.RecordQuery("composition", 300*time.Millisecond, false); !slow {
		t.Error("Expected a 300ms query to be reported as slow")
	}

	stats := pm.GetStats()

	if stats.TotalQueries != 5 {
		t.Errorf("Expected 5 total queries, got %d", stats.TotalQueries)
	}
	if stats.CacheHits != 3 {
		t.Errorf("Expected 3 cache hits, got %d", stats.CacheHits)
	}
	if stats.CacheMisses != 2 {
		t.Errorf("Expected 2 cache misses, got %d", stats.CacheMisses)
	}
	if stats.CacheHitRate != 60.0 {
		t.Errorf("Expected cache hit rate 60%%, got %.2f%%", stats.CacheHitRate)
	}
	if stats.AvgCachedQueryMs != 70 {
		t.Errorf("Expected average cached query time 70ms, got %.2fms", stats.AvgCachedQueryMs)
	}
	if stats.AvgDBQueryMs != 250 {
		t.Errorf("Expected average DB query time 250ms, got %.2fms", stats.AvgDBQueryMs)
	}
	if stats.P95DBQueryMs != 300 {
		t.Errorf("Expected p95 DB query time 300ms, got %.2fms", stats.P95DBQueryMs)
	}
	if stats.SlowQueries != 1 {
		t.Errorf("Expected 1 slow query, got %d", stats.SlowQueries)
	}
	if stats.PerQuery["balances"] != 3 {
		t.Errorf("Expected 3 balances queries, got %d", stats.PerQuery["balances"])
	}
}

func TestPerformanceMonitor_SampleWindow(t *testing.T) {
	pm := NewPerformanceMonitor()
	pm.maxSamples = 3

	for _, ms := range []int{1000, 10, 20, 30} {
		pm.RecordQuery("categories", time.Duration(ms)*time.Millisecond, false)
	}

	stats := pm.GetStats()
	if stats.AvgDBQueryMs != 20 {
		t.Errorf("Expected the oldest sample to be evicted, got average %.2fms", stats.AvgDBQueryMs)
	}
	if stats.TotalQueries != 4 {
		t.Errorf("Expected counters to keep every query, got %d", stats.TotalQueries)
	}
}

func TestPerformanceMonitor_Reset(t *testing.T) {
	pm := NewPerformanceMonitor()
	pm.RecordQuery("balances", 50*time.Millisecond, true)
	pm.Reset()

	stats := pm.GetStats()
	if stats.TotalQueries != 0 || stats.CacheHitRate != 0 || stats.AvgCachedQueryMs != 0 {
		t.Errorf("Expected zeroed stats after Reset, got %+v", stats)
	}
	if len(stats.PerQuery) != 0 {
		t.Errorf("Expected no per-query counts after Reset, got %v", stats.PerQuery)
	}
}

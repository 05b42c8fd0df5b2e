package metrics

import (
	"sync"
	"testing"
)

func TestCollector_RecordDecision(t *testing.T) {
	collector := NewCollector()

	collector.RecordDecision(true)
	collector.RecordDecision(true)
	collector.RecordDecision(false)

	decisions := collector.GetDecisionMetrics()
	if decisions.Allowed != 2 {
		t.Errorf("expected 2 allowed decisions, got %d", decisions.Allowed)
	}
	if decisions.Denied != 1 {
		t.Errorf("expected 1 denied decision, got %d", decisions.Denied)
	}
}

func TestCollector_RecordDecision_Concurrent(t *testing.T) {
	collector := NewCollector()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(allowed bool) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				collector.RecordDecision(allowed)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	decisions := collector.GetDecisionMetrics()
	if decisions.Allowed != 500 {
		t.Errorf("expected 500 allowed decisions, got %d", decisions.Allowed)
	}
	if decisions.Denied != 500 {
		t.Errorf("expected 500 denied decisions, got %d", decisions.Denied)
	}
}

func TestCollector_GetCacheMetrics_NoCache(t *testing.T) {
	collector := NewCollector()

	cacheMetrics := collector.GetCacheMetrics()
	if cacheMetrics.Hits != 0 || cacheMetrics.Misses != 0 {
		t.Errorf("expected empty cache metrics without a cache, got %+v", cacheMetrics)
	}
}

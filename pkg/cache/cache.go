// Package cache defines the small cache contract used for resolved
// permission sets. Entries are invalidated by version comparison, not only by
// TTL, so consumers must treat a stale version as a miss.
package cache

import (
	"context"
	"time"
)

// Cache stores values with a bounded TTL.
type Cache interface {
	// Get retrieves a value. Returns the value and true if present and not expired.
	Get(ctx context.Context, key string) (interface{}, bool)

	// Set stores a value with the given TTL.
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error

	// Delete removes a value.
	Delete(ctx context.Context, key string) error

	// Clear removes all entries.
	Clear(ctx context.Context) error

	// Metrics returns cache statistics.
	Metrics() *Metrics
}

// Metrics holds cache performance statistics.
type Metrics struct {
	Hits        uint64
	Misses      uint64
	KeysAdded   uint64
	KeysEvicted uint64
}

// HitRate returns the cache hit rate between 0.0 and 1.0.
func (m *Metrics) HitRate() float64 {
	total := m.Hits + m.Misses
	if total == 0 {
		return 0.0
	}
	return float64(m.Hits) / float64(total)
}

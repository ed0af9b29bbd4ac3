// Package cache stores encoded clustering results so that repeated seeded
// runs over the same observations can be answered without re-running the
// swarm. Results are only cacheable when the run is reproducible, i.e. the
// seed is fixed.
package cache

import (
	"context"
	"errors"
	"time"
)

// Common errors.
var (
	ErrNotFound      = errors.New("key not found")
	ErrValueTooLarge = errors.New("value exceeds maximum size")
)

// Cache defines the interface for result caching.
type Cache interface {
	// Get retrieves a value by key. Returns ErrNotFound if not present.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with optional TTL. Zero TTL uses the default.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a key from the cache.
	Delete(ctx context.Context, key string) error

	// Clear removes all entries from the cache.
	Clear(ctx context.Context) error

	// Stats returns cache statistics.
	Stats() Stats

	// Close releases resources.
	Close() error
}

// Stats holds cache counters.
type Stats struct {
	Hits        int64
	Misses      int64
	Sets        int64
	Evictions   int64
	Expirations int64

	// Size is the current number of entries.
	Size int64

	// SizeBytes is the current memory usage in bytes.
	SizeBytes int64

	MaxSize      int64
	MaxSizeBytes int64
}

// HitRate returns the cache hit rate as a percentage.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total) * 100
}

// Config holds cache configuration.
type Config struct {
	// MaxSize is the maximum number of results kept (0 = default).
	MaxSize int64

	// MaxSizeBytes is the maximum memory in bytes (0 = unlimited).
	MaxSizeBytes int64

	// DefaultTTL is the expiration for entries stored without explicit TTL.
	// Zero keeps entries until evicted.
	DefaultTTL time.Duration

	// CleanupInterval is how often expired entries are swept.
	CleanupInterval time.Duration
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		MaxSize:         256,
		MaxSizeBytes:    64 * 1024 * 1024, // 64MB
		DefaultTTL:      time.Hour,
		CleanupInterval: time.Minute,
	}
}

// Entry is one cached result.
type Entry struct {
	Key       string
	Value     []byte
	ExpiresAt time.Time
	Size      int64
}

// IsExpired checks if the entry has expired at now.
func (e Entry) IsExpired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Package cache holds small in-process caches shared by lookup-heavy components.
package cache

// Cache defines a generic cache interface
type Cache[T any] interface {
	// Get retrieves a value from the cache
	Get(key string) (T, bool)

	// Set stores a value in the cache
	Set(key string, data T)

	// Delete removes a key from the cache
	Delete(key string)

	// Size returns the current number of items in the cache
	Size() int
}

// Stats reports lookup counters since the cache was created.
type Stats struct {
	Hits   uint64
	Misses uint64
}

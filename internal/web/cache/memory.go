package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryCache is an in-process cache backend. Expired entries are
// evicted lazily on read and by a background janitor.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	config  Config
	done    chan struct{}
	once    sync.Once
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// NewMemoryCache creates a memory cache with the given configuration.
func NewMemoryCache(config Config) *MemoryCache {
	m := &MemoryCache{
		entries: make(map[string]memoryEntry),
		config:  config,
		done:    make(chan struct{}),
	}

	go m.janitor()

	return m
}

// Get retrieves a value from the cache
func (m *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	fullKey := m.config.Prefix + key

	m.mu.RLock()
	entry, ok := m.entries[fullKey]
	m.mu.RUnlock()

	if !ok || time.Now().After(entry.expiresAt) {
		if ok {
			m.mu.Lock()
			delete(m.entries, fullKey)
			m.mu.Unlock()
		}
		return nil, ErrCacheMiss{Key: key}
	}

	value := make([]byte, len(entry.value))
	copy(value, entry.value)
	return value, nil
}

// Set stores a value in the cache with a TTL
func (m *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}

	stored := make([]byte, len(value))
	copy(stored, value)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries[m.config.Prefix+key] = memoryEntry{
		value:     stored,
		expiresAt: time.Now().Add(ttl),
	}
	return nil
}

// Delete removes a value from the cache
func (m *MemoryCache) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, m.config.Prefix+key)
	return nil
}

// Close stops the janitor goroutine
func (m *MemoryCache) Close() error {
	m.once.Do(func() {
		close(m.done)
	})
	return nil
}

// janitor periodically removes expired entries
func (m *MemoryCache) janitor() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			now := time.Now()
			m.mu.Lock()
			for key, entry := range m.entries {
				if now.After(entry.expiresAt) {
					delete(m.entries, key)
				}
			}
			m.mu.Unlock()
		}
	}
}

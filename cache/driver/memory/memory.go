package memory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gobeaver/ciam-kit/cache/driver"
)

// ErrMaxKeys is returned when a new key would exceed Config.MaxKeys.
var ErrMaxKeys = errors.New("max keys limit reached")

// item represents a cached item with expiration
type item struct {
	value      []byte
	expiration int64
}

func (i *item) expired(now int64) bool {
	return i.expiration > 0 && now > i.expiration
}

// MemoryCache implements an in-memory cache
type MemoryCache struct {
	mu              sync.RWMutex
	items           map[string]*item
	maxKeys         int
	defaultTTL      time.Duration
	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
	keyPrefix       string
}

// Config holds memory cache specific configuration
type Config struct {
	MaxKeys         int
	DefaultTTL      time.Duration
	CleanupInterval time.Duration
	KeyPrefix       string
	Namespace       string
}

// New creates a new memory cache instance and starts its janitor goroutine.
func New(cfg Config) (*MemoryCache, error) {
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = time.Minute
	}

	mc := &MemoryCache{
		items:           make(map[string]*item),
		maxKeys:         cfg.MaxKeys,
		defaultTTL:      cfg.DefaultTTL,
		cleanupInterval: cfg.CleanupInterval,
		stopCleanup:     make(chan struct{}),
		keyPrefix:       driver.JoinPrefix(cfg.Namespace, cfg.KeyPrefix),
	}

	go mc.cleanupExpired()

	return mc, nil
}

// Get retrieves a value by key
func (mc *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	it, ok := mc.items[mc.keyPrefix+key]
	if !ok || it.expired(time.Now().UnixNano()) {
		return nil, driver.ErrKeyNotFound
	}
	return it.value, nil
}

// Set stores a value with optional TTL
func (mc *MemoryCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	fullKey := mc.keyPrefix + key
	if mc.maxKeys > 0 && len(mc.items) >= mc.maxKeys {
		if _, exists := mc.items[fullKey]; !exists {
			return ErrMaxKeys
		}
	}

	if ttl == 0 {
		ttl = mc.defaultTTL
	}

	var expiration int64
	if ttl > 0 {
		expiration = time.Now().Add(ttl).UnixNano()
	}

	stored := make([]byte, len(value))
	copy(stored, value)
	mc.items[fullKey] = &item{value: stored, expiration: expiration}

	return nil
}

// Take retrieves and removes a value under a single lock.
func (mc *MemoryCache) Take(ctx context.Context, key string) ([]byte, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	fullKey := mc.keyPrefix + key
	it, ok := mc.items[fullKey]
	if !ok {
		return nil, driver.ErrKeyNotFound
	}
	delete(mc.items, fullKey)

	if it.expired(time.Now().UnixNano()) {
		return nil, driver.ErrKeyNotFound
	}
	return it.value, nil
}

// Delete removes a key
func (mc *MemoryCache) Delete(ctx context.Context, key string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	delete(mc.items, mc.keyPrefix+key)
	return nil
}

// Exists checks if a key exists
func (mc *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	it, ok := mc.items[mc.keyPrefix+key]
	if !ok {
		return false, nil
	}
	return !it.expired(time.Now().UnixNano()), nil
}

// Close stops the janitor goroutine. It is safe to call more than once.
func (mc *MemoryCache) Close() error {
	mc.closeOnce.Do(func() { close(mc.stopCleanup) })
	return nil
}

// Ping always succeeds for the in-memory backend
func (mc *MemoryCache) Ping(ctx context.Context) error {
	return nil
}

// Len returns the number of stored keys, expired or not.
func (mc *MemoryCache) Len() int {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	return len(mc.items)
}

func (mc *MemoryCache) cleanupExpired() {
	ticker := time.NewTicker(mc.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			mc.removeExpired()
		case <-mc.stopCleanup:
			return
		}
	}
}

func (mc *MemoryCache) removeExpired() {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	now := time.Now().UnixNano()
	for key, it := range mc.items {
		if it.expired(now) {
			delete(mc.items, key)
		}
	}
}

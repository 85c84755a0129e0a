package cache

import (
	"strings"
	"sync"
	"time"

	"buskalo-bff/internal/logger"

	"go.uber.org/zap"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTLCache is a mutex-guarded map whose entries expire. A background loop
// sweeps expired entries until Stop is called.
type TTLCache[V any] struct {
	mu          sync.RWMutex
	items       map[string]*entry[V]
	ttl         time.Duration
	ticker      *time.Ticker
	stopCleanup chan struct{}
	stopOnce    sync.Once
	now         func() time.Time
}

func NewTTLCache[V any](ttl, cleanupInterval time.Duration) *TTLCache[V] {
	c := &TTLCache[V]{
		items:       make(map[string]*entry[V]),
		ttl:         ttl,
		ticker:      time.NewTicker(cleanupInterval),
		stopCleanup: make(chan struct{}),
		now:         time.Now,
	}
	go c.cleanupLoop()
	return c
}

// Set stores value with the default TTL.
func (c *TTLCache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.ttl)
}

// SetWithTTL stores value with its own TTL. A non-positive ttl never expires.
func (c *TTLCache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if ttl > 0 {
		expiresAt = c.now().Add(ttl)
	}
	c.items[key] = &entry[V]{value: value, expiresAt: expiresAt}
}

func (c *TTLCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var zero V
	e, ok := c.items[key]
	if !ok || c.expired(e) {
		return zero, false
	}
	return e.value, true
}

// GetOrSet returns the live value for key, storing the result of create when
// there is none. create runs under the write lock.
func (c *TTLCache[V]) GetOrSet(key string, create func() V) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.items[key]; ok && !c.expired(e) {
		if c.ttl > 0 {
			e.expiresAt = c.now().Add(c.ttl)
		}
		return e.value, true
	}
	v := create()
	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = c.now().Add(c.ttl)
	}
	c.items[key] = &entry[V]{value: v, expiresAt: expiresAt}
	return v, false
}

// Update applies fn to the current value of key under the write lock and
// keeps the entry's expiry. It reports false when the key is absent.
func (c *TTLCache[V]) Update(key string, fn func(V) V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.items[key]
	if !ok || c.expired(e) {
		return false
	}
	e.value = fn(e.value)
	return true
}

func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, key)
}

func (c *TTLCache[V]) DeletePrefix(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key := range c.items {
		if strings.HasPrefix(key, prefix) {
			delete(c.items, key)
			removed++
		}
	}
	return removed
}

// Entries returns the live entries whose key starts with prefix.
func (c *TTLCache[V]) Entries(prefix string) map[string]V {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make(map[string]V)
	for key, e := range c.items {
		if strings.HasPrefix(key, prefix) && !c.expired(e) {
			out[key] = e.value
		}
	}
	return out
}

// Size counts entries, expired ones included.
func (c *TTLCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *TTLCache[V]) ActiveSize() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	active := 0
	for _, e := range c.items {
		if !c.expired(e) {
			active++
		}
	}
	return active
}

func (c *TTLCache[V]) Stop() {
	c.stopOnce.Do(func() {
		c.ticker.Stop()
		close(c.stopCleanup)
	})
}

func (c *TTLCache[V]) expired(e *entry[V]) bool {
	return !e.expiresAt.IsZero() && c.now().After(e.expiresAt)
}

func (c *TTLCache[V]) cleanupLoop() {
	for {
		select {
		case <-c.ticker.C:
			c.performCleanup()
		case <-c.stopCleanup:
			return
		}
	}
}

func (c *TTLCache[V]) performCleanup() {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.items {
		if c.expired(e) {
			delete(c.items, key)
			removed++
		}
	}

	if removed > 0 {
		logger.L().Debug("Cache cleanup completed",
			zap.Int("expired_entries", removed),
			zap.Int("remaining_entries", len(c.items)))
	}
}

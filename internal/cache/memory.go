package cache

import (
	"context"
	"sync"
	"time"
)

// Memory is the in-process Store used when no Redis address is configured.
type Memory struct {
	items    *TTLCache[[]byte]
	counters *TTLCache[int]
	limitMu  sync.Mutex
}

func NewMemory(cleanupInterval time.Duration) *Memory {
	return &Memory{
		items:    NewTTLCache[[]byte](0, cleanupInterval),
		counters: NewTTLCache[int](0, cleanupInterval),
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	data, ok := m.items.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (m *Memory) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	stored := make([]byte, len(data))
	copy(stored, data)
	m.items.SetWithTTL(key, stored, ttl)
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	for _, key := range keys {
		m.items.Delete(key)
	}
	return nil
}

func (m *Memory) DeletePrefix(_ context.Context, prefix string) error {
	m.items.DeletePrefix(prefix)
	return nil
}

func (m *Memory) IsRateLimited(_ context.Context, key string, limit int, window time.Duration) bool {
	m.limitMu.Lock()
	defer m.limitMu.Unlock()

	count := 1
	if !m.counters.Update(key, func(n int) int { count = n + 1; return count }) {
		m.counters.SetWithTTL(key, 1, window)
	}
	return count > limit
}

func (m *Memory) Close() error {
	m.items.Stop()
	m.counters.Stop()
	return nil
}

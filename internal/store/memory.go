package store

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// entry is a stored value together with its optional expiry deadline.
// A zero expiresAt means the entry never expires.
type entry struct {
	value     []byte
	expiresAt time.Time
}

// Memory is a thread-safe in-memory KV with per-key TTL. A background
// goroutine (Run) periodically evicts expired entries; Get treats expired
// entries as absent even before eviction.
type Memory struct {
	mu   sync.RWMutex
	data map[string]entry
	now  func() time.Time // injectable for deterministic tests
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]entry),
		now:  time.Now,
	}
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	if !e.expiresAt.IsZero() && !e.expiresAt.After(m.now()) {
		return nil, ErrNotFound
	}
	out := make([]byte, len(e.value))
	copy(out, e.value)
	return out, nil
}

func (m *Memory) Put(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entry{value: append([]byte(nil), value...)}
	return nil
}

func (m *Memory) PutTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = entry{
		value:     append([]byte(nil), value...),
		expiresAt: m.now().Add(ttl),
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, key)
	return nil
}

func (m *Memory) Close() error { return nil }

// Count returns the number of entries currently held, including expired
// entries not yet evicted.
func (m *Memory) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// Evict removes entries whose deadline is at or before now.
// It returns the number of entries removed.
func (m *Memory) Evict(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for k, e := range m.data {
		if !e.expiresAt.IsZero() && !e.expiresAt.After(now) {
			delete(m.data, k)
			removed++
		}
	}
	return removed
}

// Run starts the background eviction loop, ticking at interval.
// Run blocks until ctx is cancelled.
func (m *Memory) Run(ctx context.Context, interval time.Duration) {
	if interval < time.Second {
		interval = time.Second
	}
	t := time.NewTicker(interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-t.C:
			if n := m.Evict(now); n > 0 {
				slog.Debug("store: evicted expired entries", "count", n)
			}
		}
	}
}

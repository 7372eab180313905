package cache

import (
	"context"
	"sync"
	"time"

	"bigbag/internal/telemetry"
)

type entry struct {
	data    []byte
	count   int
	expires time.Time
}

// Memory is an expiring map implementing Cache.
type Memory struct {
	mu    sync.Mutex
	items map[string]entry
	now   func() time.Time
}

var _ Cache = (*Memory)(nil)

func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]entry),
		now:   time.Now,
	}
}

// getLocked drops the entry when it has expired.
func (m *Memory) getLocked(key string) (entry, bool) {
	e, ok := m.items[key]
	if !ok {
		return entry{}, false
	}
	if !e.expires.IsZero() && !m.now().Before(e.expires) {
		delete(m.items, key)
		return entry{}, false
	}
	return e, true
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.getLocked(key)
	telemetry.ObserveCache(ok)
	if !ok {
		return nil, ErrMiss
	}
	return append([]byte(nil), e.data...), nil
}

func (m *Memory) Set(_ context.Context, key string, data []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := entry{data: append([]byte(nil), data...)}
	if ttl > 0 {
		e.expires = m.now().Add(ttl)
	}
	m.items[key] = e
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, k := range keys {
		delete(m.items, k)
	}
	return nil
}

func (m *Memory) GetDel(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.getLocked(key)
	if !ok {
		return nil, ErrMiss
	}
	delete(m.items, key)
	return e.data, nil
}

func (m *Memory) IsRateLimited(_ context.Context, key string, limit int, window time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	key = "ratelimit:" + key
	e, ok := m.getLocked(key)
	if !ok {
		e = entry{expires: m.now().Add(window)}
	}
	e.count++
	m.items[key] = e
	return e.count > limit
}

// Sweep removes expired entries. Callers that keep a Memory alive for a long
// time should run it periodically.
func (m *Memory) Sweep() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	now := m.now()
	for k, e := range m.items {
		if !e.expires.IsZero() && !now.Before(e.expires) {
			delete(m.items, k)
			n++
		}
	}
	return n
}

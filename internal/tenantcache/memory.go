package tenantcache

import (
	"context"
	"sync"
	"time"
)

// sweepThreshold is the size above which Set drops expired entries.
const sweepThreshold = 4096

type memItem struct {
	entry   Entry
	expires time.Time
}

// Memory is a process-local TTL cache.
type Memory struct {
	mu    sync.RWMutex
	ttl   time.Duration
	items map[string]memItem
	now   func() time.Time
}

// NewMemory returns an empty in-process cache with the given TTL.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{
		ttl:   ttl,
		items: make(map[string]memItem),
		now:   time.Now,
	}
}

func (m *Memory) Get(_ context.Context, token string) (Entry, error) {
	k := tokenKey(token)
	m.mu.RLock()
	it, ok := m.items[k]
	m.mu.RUnlock()
	if !ok {
		return Entry{}, ErrMiss
	}
	if !m.now().Before(it.expires) {
		m.mu.Lock()
		if cur, ok := m.items[k]; ok && cur.expires.Equal(it.expires) {
			delete(m.items, k)
		}
		m.mu.Unlock()
		return Entry{}, ErrMiss
	}
	return it.entry, nil
}

func (m *Memory) Set(_ context.Context, token string, e Entry) error {
	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.items) >= sweepThreshold {
		for k, it := range m.items {
			if !now.Before(it.expires) {
				delete(m.items, k)
			}
		}
	}
	m.items[tokenKey(token)] = memItem{entry: e, expires: now.Add(m.ttl)}
	return nil
}

func (m *Memory) Invalidate(_ context.Context, token string) error {
	m.mu.Lock()
	delete(m.items, tokenKey(token))
	m.mu.Unlock()
	return nil
}

// Len reports the number of stored entries, expired ones included.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.items)
}

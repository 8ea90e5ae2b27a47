package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/platformbuilds/becertain-core/pkg/logger"
)

// memoryStore is a process-local fallback that satisfies KVStore when the
// external store is unavailable. Best effort: data is not shared across
// replicas, is lost on restart, and the map is capped so a long outage
// cannot grow memory without bound. TTLs are tracked per key.
type memoryStore struct {
	mu       sync.RWMutex
	kv       map[string]memoryEntry
	lists    map[string][]string
	maxItems int
	logger   logger.Logger
}

type memoryEntry struct {
	data      []byte
	expiresAt time.Time
}

func NewMemoryStore(maxItems int, log logger.Logger) KVStore {
	if maxItems <= 0 {
		maxItems = 10_000
	}
	return &memoryStore{
		kv:       make(map[string]memoryEntry),
		lists:    make(map[string][]string),
		maxItems: maxItems,
		logger:   log,
	}
}

func (m *memoryStore) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.kv[key]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("key not found: %s", key)
	}
	if !entry.expiresAt.IsZero() && time.Now().After(entry.expiresAt) {
		m.mu.Lock()
		delete(m.kv, key)
		m.mu.Unlock()
		return nil, fmt.Errorf("key not found: %s", key)
	}
	return entry.data, nil
}

func (m *memoryStore) Set(_ context.Context, key string, value interface{}, ttl time.Duration) error {
	data, err := encodeValue(value)
	if err != nil {
		return err
	}
	var expires time.Time
	if ttl > 0 {
		expires = time.Now().Add(ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.kv[key]; !exists && len(m.kv) >= m.maxItems {
		return fmt.Errorf("memory store full (%d items); dropping key %s", m.maxItems, key)
	}
	m.kv[key] = memoryEntry{data: data, expiresAt: expires}
	return nil
}

func (m *memoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	delete(m.kv, key)
	delete(m.lists, key)
	m.mu.Unlock()
	return nil
}

func (m *memoryStore) RPush(_ context.Context, key string, value string, _ time.Duration, maxLen int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lst := append(m.lists[key], value)
	if maxLen > 0 && len(lst) > maxLen {
		lst = lst[len(lst)-maxLen:]
	}
	m.lists[key] = lst
	return nil
}

func (m *memoryStore) LRange(_ context.Context, key string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	lst := m.lists[key]
	out := make([]string, len(lst))
	copy(out, lst)
	return out, nil
}

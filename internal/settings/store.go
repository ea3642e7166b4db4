package settings

import (
	"sort"
	"sync"
)

// Store persists raw JSON values per (world, key).
type Store interface {
	Get(worldID, key string) (value []byte, ok bool, err error)
	Put(worldID, key string, value []byte) error
	// PutMany writes all values or none of them.
	PutMany(worldID string, values map[string][]byte) error
	Delete(worldID, key string) error
	Keys(worldID string) ([]string, error)
	Close() error
}

// MemoryStore keeps values in process memory. Used by tests and -ephemeral runs.
type MemoryStore struct {
	mu     sync.RWMutex
	worlds map[string]map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{worlds: map[string]map[string][]byte{}}
}

func (m *MemoryStore) Get(worldID, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.worlds[worldID][key]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemoryStore) Put(worldID, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.worlds[worldID]
	if w == nil {
		w = map[string][]byte{}
		m.worlds[worldID] = w
	}
	v := make([]byte, len(value))
	copy(v, value)
	w[key] = v
	return nil
}

func (m *MemoryStore) PutMany(worldID string, values map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w := m.worlds[worldID]
	if w == nil {
		w = map[string][]byte{}
		m.worlds[worldID] = w
	}
	for k, v := range values {
		w[k] = append([]byte(nil), v...)
	}
	return nil
}

func (m *MemoryStore) Delete(worldID, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.worlds[worldID], key)
	return nil
}

func (m *MemoryStore) Keys(worldID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.worlds[worldID]))
	for k := range m.worlds[worldID] {
		out = append(out, k)
	}
	sort.Strings(out)
	return out, nil
}

func (m *MemoryStore) Close() error { return nil }

package prefixcache

import (
	"context"
	"sync"
)

// MemoryStorage keeps payloads in process memory. Suitable for tests and
// single-process runs; nothing survives a restart.
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

var _ Storage = (*MemoryStorage)(nil)

// NewMemoryStorage returns an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{objects: make(map[string][]byte)}
}

func (m *MemoryStorage) Put(_ context.Context, id string, data []byte) error {
	// Copy so later caller mutations don't reach the stored object.
	stored := make([]byte, len(data))
	copy(stored, data)

	m.mu.Lock()
	m.objects[id] = stored
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) GetRange(_ context.Context, id string, max int64) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data, ok := m.objects[id]
	if !ok {
		return nil, ErrObjectMissing
	}

	n := int64(len(data))
	if max > 0 && max < n {
		n = max
	}
	out := make([]byte, n)
	copy(out, data[:n])
	return out, nil
}

func (m *MemoryStorage) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	delete(m.objects, id)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStorage) Size(_ context.Context) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return int64(len(m.objects)), nil
}

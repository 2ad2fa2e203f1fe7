package store

import (
	"context"
	"sync"
)

// Memory is an in-process Store. It is safe for concurrent use.
type Memory struct {
	mu   sync.RWMutex
	data map[string]map[string]string
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]map[string]string),
	}
}

// Get returns the value for key in namespace ns.
func (m *Memory) Get(_ context.Context, ns, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	v, ok := m.data[ns][key]
	if !ok {
		return "", ErrKeyNotFound
	}
	return v, nil
}

// Set writes the value for key in namespace ns.
func (m *Memory) Set(_ context.Context, ns, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bucket, ok := m.data[ns]
	if !ok {
		bucket = make(map[string]string)
		m.data[ns] = bucket
	}
	bucket[key] = value
	return nil
}

// Flush removes every key in namespace ns.
func (m *Memory) Flush(_ context.Context, ns string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.data, ns)
	return nil
}

// Keys lists the keys present in namespace ns.
func (m *Memory) Keys(_ context.Context, ns string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	bucket := m.data[ns]
	keys := make([]string, 0, len(bucket))
	for k := range bucket {
		keys = append(keys, k)
	}
	return keys, nil
}

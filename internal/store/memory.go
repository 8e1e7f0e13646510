package store

import (
	"context"
	"slices"
	"sync"

	"github.com/wcharczuk/observatory/internal/observatory"
)

var _ observatory.Store = (*Memory)(nil)

// NewMemory returns a new, empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		values: make(map[string][]byte),
	}
}

// Memory is a process local [observatory.Store].
type Memory struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// Get implements [observatory.Store].
func (m *Memory) Get(_ context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.values[key]
	if !ok {
		return nil, false, nil
	}
	return slices.Clone(value), true, nil
}

// Set implements [observatory.Store].
func (m *Memory) Set(_ context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = slices.Clone(value)
	return nil
}

// Remove implements [observatory.Store].
func (m *Memory) Remove(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, key := range keys {
		delete(m.values, key)
	}
	return nil
}

// Len returns the number of keys stored.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.values)
}

// Close is a no-op.
func (m *Memory) Close() error { return nil }

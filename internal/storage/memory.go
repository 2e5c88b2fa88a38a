package storage

import (
	"fmt"
	"sync"
)

// Memory is an in-process Storage. Reads and writes can be made to fail to
// simulate a full or disabled medium.
type Memory struct {
	mu         sync.RWMutex
	data       map[string]string
	failReads  bool
	failWrites bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

// Get implements Storage.
func (m *Memory) Get(key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.failReads {
		return "", false, fmt.Errorf("read %q: %w", key, ErrUnavailable)
	}
	v, ok := m.data[key]
	return v, ok, nil
}

// Set implements Storage.
func (m *Memory) Set(key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites {
		return fmt.Errorf("write %q: %w", key, ErrUnavailable)
	}
	m.data[key] = value
	return nil
}

// Remove implements Storage.
func (m *Memory) Remove(key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failWrites {
		return fmt.Errorf("remove %q: %w", key, ErrUnavailable)
	}
	delete(m.data, key)
	return nil
}

// FailReads makes every Get return an error while enabled.
func (m *Memory) FailReads(fail bool) {
	m.mu.Lock()
	m.failReads = fail
	m.mu.Unlock()
}

// FailWrites makes every Set and Remove return an error while enabled.
func (m *Memory) FailWrites(fail bool) {
	m.mu.Lock()
	m.failWrites = fail
	m.mu.Unlock()
}

// Len returns the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

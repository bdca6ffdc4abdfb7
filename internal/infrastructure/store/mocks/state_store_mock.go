package mocks

import (
	"context"
	"sync"
)

// MockStateStore is an in-memory StateStore that records calls and can be
// told to fail.
type MockStateStore struct {
	mu    sync.RWMutex
	blobs map[string][]byte

	// For tracking calls in tests
	PutCalls []PutCall
	GetErr   error
	PutErr   error
}

// PutCall records parameters passed to Put
type PutCall struct {
	Key   string
	Value []byte
}

func NewMockStateStore() *MockStateStore {
	return &MockStateStore{blobs: make(map[string][]byte)}
}

func (m *MockStateStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.GetErr != nil {
		return nil, false, m.GetErr
	}
	b, ok := m.blobs[key]
	return b, ok, nil
}

func (m *MockStateStore) Put(ctx context.Context, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PutCalls = append(m.PutCalls, PutCall{Key: key, Value: value})
	if m.PutErr != nil {
		return m.PutErr
	}
	m.blobs[key] = value
	return nil
}

// Set seeds a blob directly for testing
func (m *MockStateStore) Set(key string, value []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs[key] = value
}

// SetErrors replaces the injected failures.
func (m *MockStateStore) SetErrors(getErr, putErr error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetErr = getErr
	m.PutErr = putErr
}

// Blob returns the stored value for key.
func (m *MockStateStore) Blob(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blobs[key]
	return b, ok
}

// PutKeys lists the keys written, in call order.
func (m *MockStateStore) PutKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.PutCalls))
	for _, c := range m.PutCalls {
		keys = append(keys, c.Key)
	}
	return keys
}

// Reset clears all blobs and recorded calls
func (m *MockStateStore) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blobs = make(map[string][]byte)
	m.PutCalls = nil
	m.GetErr = nil
	m.PutErr = nil
}

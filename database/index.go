package database

import (
	"context"
	"sync"

	"github.com/payflowhq/payflow/model"
)

// MemoryIndex is an in-process IdempotencyIndex.
type MemoryIndex struct {
	mu   sync.RWMutex
	keys map[string]string
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{keys: make(map[string]string)}
}

func (m *MemoryIndex) Lookup(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.keys[key]
	return id, ok, nil
}

func (m *MemoryIndex) Reserve(_ context.Context, key, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.keys[key]; ok {
		if existing == paymentID {
			return nil
		}
		return &model.ConflictError{Key: key, ExistingID: existing, AttemptedID: paymentID}
	}
	m.keys[key] = paymentID
	return nil
}

func (m *MemoryIndex) Release(_ context.Context, key, paymentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.keys[key] == paymentID {
		delete(m.keys, key)
	}
	return nil
}

func (m *MemoryIndex) Reset(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = make(map[string]string)
	return nil
}

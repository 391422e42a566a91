package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"storefront/internal/models"
)

// Slot is a durable key-value holder for serialized cart state. Writes are
// last-write-wins across concurrent writers; no coordination is attempted.
type Slot interface {
	// Load returns the stored state for key, or (nil, nil) when absent.
	// A non-nil error means the stored data could not be read or decoded;
	// callers treat that as an empty cart.
	Load(ctx context.Context, key string) (*models.CartState, error)
	Save(ctx context.Context, key string, state *models.CartState) error
	Delete(ctx context.Context, key string) error
}

// MemorySlot is an in-process Slot used by tests and local development.
type MemorySlot struct {
	mu   sync.Mutex
	data map[string][]byte
}

func NewMemorySlot() *MemorySlot {
	return &MemorySlot{data: make(map[string][]byte)}
}

func (m *MemorySlot) Load(ctx context.Context, key string) (*models.CartState, error) {
	m.mu.Lock()
	raw, ok := m.data[key]
	m.mu.Unlock()

	if !ok {
		return nil, nil
	}

	var state models.CartState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cart state: %w", err)
	}
	return &state, nil
}

func (m *MemorySlot) Save(ctx context.Context, key string, state *models.CartState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal cart state: %w", err)
	}

	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}

func (m *MemorySlot) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	delete(m.data, key)
	m.mu.Unlock()
	return nil
}

// Seed stores raw bytes verbatim, bypassing serialization. Tests use it to
// simulate corrupted persisted data.
func (m *MemorySlot) Seed(key string, raw []byte) {
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
}

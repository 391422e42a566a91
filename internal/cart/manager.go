package cart

import (
	"context"
	"sync"
)

// Manager hands out one Store per session key. Stores are created lazily,
// restoring persisted state from the slot on first use, and live until the
// session is dropped. Consumers receive stores by explicit injection; there
// is no package-level cart.
type Manager struct {
	mu     sync.Mutex
	slot   Slot
	stores map[string]*Store
}

func NewManager(slot Slot) *Manager {
	return &Manager{
		slot:   slot,
		stores: make(map[string]*Store),
	}
}

// Store returns the cart store for the session, creating it if needed.
func (m *Manager) Store(ctx context.Context, sessionID string) *Store {
	m.mu.Lock()
	defer m.mu.Unlock()

	if s, ok := m.stores[sessionID]; ok {
		return s
	}
	s := NewStore(ctx, sessionID, m.slot)
	m.stores[sessionID] = s
	return s
}

// Drop forgets the in-memory store for a session. Persisted state is kept;
// a later Store call restores it.
func (m *Manager) Drop(sessionID string) {
	m.mu.Lock()
	delete(m.stores, sessionID)
	m.mu.Unlock()
}

package repository

import (
	"context"
	"sync"
	"time"
)

// MemorySlot keeps the link list in process memory. It backs the "memory"
// storage backend and tests.
type MemorySlot struct {
	mu        sync.Mutex
	payload   []byte
	expiresAt time.Time
}

// NewMemorySlot returns an empty slot.
func NewMemorySlot() *MemorySlot {
	return &MemorySlot{}
}

func (m *MemorySlot) Load(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.payload == nil {
		return nil, ErrSlotEmpty
	}
	out := make([]byte, len(m.payload))
	copy(out, m.payload)
	return out, nil
}

func (m *MemorySlot) Save(_ context.Context, payload []byte, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.payload = append(m.payload[:0:0], payload...)
	m.expiresAt = expiresAt
	return nil
}

// ExpiresAt returns the horizon passed with the last Save.
func (m *MemorySlot) ExpiresAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expiresAt
}

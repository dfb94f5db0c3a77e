package events

import (
	"context"
	"sync"

	"visitid/internal/registry/models"
)

// MemoryStore keeps receipts in memory, append-only. It is the default sink
// and what tests observe.
type MemoryStore struct {
	mu       sync.RWMutex
	receipts []models.Receipt
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Append(_ context.Context, receipt models.Receipt) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.receipts = append(s.receipts, receipt)
	return nil
}

// List returns all receipts in append order.
func (s *MemoryStore) List() []models.Receipt {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.Receipt, len(s.receipts))
	copy(out, s.receipts)
	return out
}

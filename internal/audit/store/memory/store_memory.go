package memory

import (
	"context"
	"sync"

	"shelteraccess/internal/audit"
)

// InMemoryStore keeps the trail in process memory. Entries survive only as
// long as the process; durable retention belongs to the Postgres store.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, entry audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
	return nil
}

// Query returns matching entries in append order.
func (s *InMemoryStore) Query(_ context.Context, filter audit.Filter) ([]audit.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []audit.Entry
	for _, entry := range s.entries {
		if filter.Matches(entry) {
			out = append(out, entry)
		}
	}
	return out, nil
}

package records

import (
	"context"
	"sync"

	"shelteraccess/pkg/platform/sentinel"
)

// InMemoryStore backs development and tests with seeded client records.
type InMemoryStore struct {
	mu      sync.RWMutex
	clients map[string]map[string]string
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{clients: make(map[string]map[string]string)}
}

// Seed installs a client record, replacing any existing one.
func (s *InMemoryStore) Seed(clientID string, fields map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make(map[string]string, len(fields))
	for k, v := range fields {
		copied[k] = v
	}
	s.clients[clientID] = copied
}

func (s *InMemoryStore) FetchFields(_ context.Context, clientID string, fieldNames []string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	client, ok := s.clients[clientID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := make(map[string]string, len(fieldNames))
	for _, name := range fieldNames {
		if value, ok := client[name]; ok {
			out[name] = value
		}
	}
	return out, nil
}

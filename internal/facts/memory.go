package facts

import (
	"context"
	"sync"
)

// MemoryStore keeps records in a map. It backs tests and small demo setups
// seeded from a YAML file.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemoryStore returns a store holding records.
func NewMemoryStore(records ...Record) *MemoryStore {
	s := &MemoryStore{records: make(map[string]Record, len(records))}
	for _, r := range records {
		s.records[r.PlantName] = r
	}
	return s
}

func (s *MemoryStore) FindByName(_ context.Context, name string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[name]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (s *MemoryStore) Upsert(_ context.Context, rec Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[rec.PlantName] = rec
	return nil
}

func (s *MemoryStore) Close() error { return nil }

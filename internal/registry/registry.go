package registry

import (
	"context"
	"sync"

	"gridLadder/internal/model"
)

// Store persists engine creation records for instance discovery.
type Store interface {
	InsertInstance(ctx context.Context, instance model.Instance) error
	ListInstances(ctx context.Context) ([]model.Instance, error)
}

// MemoryStore keeps instance records in memory.
type MemoryStore struct {
	mu        sync.Mutex
	instances []model.Instance
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) InsertInstance(_ context.Context, instance model.Instance) error {
	s.mu.Lock()
	s.instances = append(s.instances, instance)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) ListInstances(_ context.Context) ([]model.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.Instance, len(s.instances))
	copy(out, s.instances)
	return out, nil
}

package profile

import (
	"context"
	"sync"
)

type memoryStore struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewMemoryStore builds an in-memory profile store for development and tests.
func NewMemoryStore() Store {
	return &memoryStore{profiles: make(map[string]Profile)}
}

func (s *memoryStore) Create(_ context.Context, p Profile) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ID]; ok {
		return ErrProfileExists
	}
	s.profiles[p.ID] = p
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[id]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	return p, nil
}

func (s *memoryStore) Update(_ context.Context, id string, patch Patch) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[id]
	if !ok {
		return Profile{}, ErrProfileNotFound
	}
	p = patch.Apply(p)
	s.profiles[id] = p
	return p, nil
}

func (s *memoryStore) Upsert(_ context.Context, seed Profile, patch Patch) (Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[seed.ID]
	if !ok {
		p = seed
	}
	p = patch.Apply(p)
	s.profiles[seed.ID] = p
	return p, nil
}

func (s *memoryStore) CreateIfAbsent(_ context.Context, p Profile) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.profiles[p.ID]; ok {
		return false, nil
	}
	s.profiles[p.ID] = p
	return true, nil
}

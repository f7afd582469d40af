package account

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps users in process memory.
type MemoryStore struct {
	mu     sync.RWMutex
	hashes map[uuid.UUID][]byte
	emails map[string]uuid.UUID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		hashes: make(map[uuid.UUID][]byte),
		emails: make(map[string]uuid.UUID),
	}
}

func (s *MemoryStore) CreateUser(_ context.Context, id uuid.UUID, email string, passwordHash []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.emails[email]; ok {
		return ErrEmailTaken
	}
	s.emails[email] = id
	s.hashes[id] = append([]byte(nil), passwordHash...)
	return nil
}

func (s *MemoryStore) GetPasswordHash(_ context.Context, userID uuid.UUID) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	hash, ok := s.hashes[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	return append([]byte(nil), hash...), nil
}

package twofactor

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu    sync.Mutex
	creds map[uuid.UUID]*Credential
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		creds: make(map[uuid.UUID]*Credential),
		now:   time.Now,
	}
}

func (s *MemoryStore) Get(_ context.Context, userID uuid.UUID) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[userID]
	if !ok {
		return nil, ErrCredentialNotFound
	}
	return cred.Clone(), nil
}

func (s *MemoryStore) Enable(_ context.Context, cred *Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var version int64
	if existing, ok := s.creds[cred.UserID]; ok {
		if existing.Enabled {
			return ErrConflict
		}
		version = existing.Version
	}

	stored := cred.Clone()
	stored.Enabled = true
	stored.Version = version + 1
	stored.UpdatedAt = s.now()
	if stored.EnabledAt == nil {
		t := stored.UpdatedAt
		stored.EnabledAt = &t
	}
	s.creds[cred.UserID] = stored
	return nil
}

func (s *MemoryStore) UpdateBackupCodes(_ context.Context, userID uuid.UUID, expectedVersion int64, codes [][]byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[userID]
	if !ok || !cred.Enabled || cred.Version != expectedVersion {
		return ErrConflict
	}

	next := (&Credential{EncryptedBackupCodes: codes}).Clone()
	cred.EncryptedBackupCodes = next.EncryptedBackupCodes
	cred.Version++
	cred.UpdatedAt = s.now()
	return nil
}

func (s *MemoryStore) Disable(_ context.Context, userID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.creds[userID]
	if !ok || !cred.Enabled {
		return ErrCredentialNotFound
	}

	cred.Enabled = false
	cred.EncryptedSecret = nil
	cred.EncryptedBackupCodes = nil
	cred.EnabledAt = nil
	cred.Version++
	cred.UpdatedAt = s.now()
	return nil
}

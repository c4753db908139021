package websession

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/clock"
)

type MemoryStore struct {
	mu       sync.Mutex
	clock    clock.Clock
	sessions map[string]Record
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.Real
	}
	return &MemoryStore{
		clock:    clk,
		sessions: make(map[string]Record),
	}
}

func (s *MemoryStore) Save(ctx context.Context, hash string, r Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[hash] = r
	return nil
}

func (s *MemoryStore) Get(ctx context.Context, hash string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.sessions[hash]
	if !ok {
		return r, apperrors.ErrSessionNotFound
	}
	return r, nil
}

func (s *MemoryStore) Take(ctx context.Context, hash string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.sessions[hash]
	if !ok {
		return r, apperrors.ErrSessionNotFound
	}
	delete(s.sessions, hash)
	return r, nil
}

func (s *MemoryStore) DeleteUser(ctx context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for hash, r := range s.sessions {
		if r.UserID == userID {
			delete(s.sessions, hash)
			count++
		}
	}
	return count, nil
}

// Sweep drops expired sessions and returns how many were dropped
func (s *MemoryStore) Sweep() int {
	now := s.clock.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for hash, r := range s.sessions {
		if !now.Before(r.ExpiresAt) {
			delete(s.sessions, hash)
			count++
		}
	}
	return count
}

// Package memory keeps storage in process memory.
// It is used when no database is configured and by unit tests.
package memory

import (
	"context"
	"maps"
	"sync"

	"github.com/google/uuid"

	"github.com/nkiryanov/authcore/internal/models"
	"github.com/nkiryanov/authcore/internal/repository"
)

type state struct {
	users  map[uuid.UUID]models.User
	tokens map[uuid.UUID]models.RefreshToken
	audit  []models.AuditEntry
}

func (s *state) clone() *state {
	return &state{
		users:  maps.Clone(s.users),
		tokens: maps.Clone(s.tokens),
		audit:  append([]models.AuditEntry(nil), s.audit...),
	}
}

// Storage guards all data with one mutex.
// Every repository call is atomic; InTx holds the lock for the whole fn.
type Storage struct {
	mu   *sync.Mutex
	data *state

	// Set for storages passed into InTx: the lock is already held
	inTx bool
}

func NewStorage() *Storage {
	return &Storage{
		mu: &sync.Mutex{},
		data: &state{
			users:  make(map[uuid.UUID]models.User),
			tokens: make(map[uuid.UUID]models.RefreshToken),
		},
	}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{s: s}
}

func (s *Storage) Refresh() repository.RefreshTokenRepo {
	return &RefreshTokenRepo{s: s}
}

func (s *Storage) Audit() repository.AuditRepo {
	return &AuditRepo{s: s}
}

// Run fn holding the storage lock. Changes made by fn are discarded if it fails.
// Nested calls reuse the outer transaction.
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	err := fn(&Storage{mu: s.mu, data: s.data, inTx: true})
	if err != nil {
		*s.data = *snapshot
	}
	return err
}

// lock is a no-op inside transaction
func (s *Storage) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

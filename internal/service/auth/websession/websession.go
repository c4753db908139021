// Package websession grants browsers opaque server side sessions.
// Session id travels in a cookie only; stores know it by sha256 hash.
package websession

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/clock"
	"github.com/nkiryanov/authcore/internal/models"
)

const (
	DefaultTTL = 24 * time.Hour
	idBytes    = 32
)

// Stored session. Hash of session id is the key, the id itself is not stored.
type Record struct {
	UserID      uuid.UUID
	DeviceID    string
	LoginMethod models.LoginMethod
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

type Store interface {
	Save(ctx context.Context, hash string, r Record) error

	// If session not found must return apperrors.ErrSessionNotFound
	Get(ctx context.Context, hash string) (Record, error)

	// Delete and return session atomically, so only one caller gets it.
	// If session not found must return apperrors.ErrSessionNotFound
	Take(ctx context.Context, hash string) (Record, error)

	// Delete all sessions of the user, return how many were deleted
	DeleteUser(ctx context.Context, userID uuid.UUID) (int, error)
}

type Config struct {
	TTL   time.Duration // DefaultTTL if zero
	Clock clock.Clock   // clock.Real if nil
	Rand  io.Reader     // crypto/rand if nil
}

type Service struct {
	store Store
	ttl   time.Duration
	clock clock.Clock
	rand  io.Reader
}

func NewService(store Store, cfg Config) *Service {
	if cfg.TTL == 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real
	}
	if cfg.Rand == nil {
		cfg.Rand = rand.Reader
	}

	return &Service{
		store: store,
		ttl:   cfg.TTL,
		clock: cfg.Clock,
		rand:  cfg.Rand,
	}
}

// Issue grants new session with absolute lifetime
func (s *Service) Issue(ctx context.Context, user models.User, sc models.SecurityContext) (models.WebSession, error) {
	now := s.clock.Now()

	return s.save(ctx, Record{
		UserID:      user.ID,
		DeviceID:    sc.DeviceID,
		LoginMethod: sc.LoginMethod,
		IssuedAt:    now,
		ExpiresAt:   now.Add(s.ttl),
	})
}

// Get returns live session.
// Unknown session gives apperrors.ErrTokenInvalid, expired one ErrTokenExpired.
func (s *Service) Get(ctx context.Context, id string) (models.WebSession, error) {
	r, err := s.store.Get(ctx, Hash(id))
	if err != nil {
		return models.WebSession{}, storeError(err)
	}
	if !s.clock.Now().Before(r.ExpiresAt) {
		return models.WebSession{}, apperrors.ErrTokenExpired
	}
	return toSession(id, r), nil
}

// Renew replaces session id keeping its absolute expiry. Old id stops working.
func (s *Service) Renew(ctx context.Context, id string) (models.WebSession, error) {
	r, err := s.store.Take(ctx, Hash(id))
	if err != nil {
		return models.WebSession{}, storeError(err)
	}

	now := s.clock.Now()
	if !now.Before(r.ExpiresAt) {
		return models.WebSession{}, apperrors.ErrTokenExpired
	}

	renewed := r
	renewed.IssuedAt = now
	session, err := s.save(ctx, renewed)
	if err != nil {
		// Old id keeps working when the new one could not be stored
		if restoreErr := s.store.Save(context.WithoutCancel(ctx), Hash(id), r); restoreErr != nil {
			return models.WebSession{}, errors.Join(err, fmt.Errorf("restore session: %w", restoreErr))
		}
		return models.WebSession{}, err
	}
	return session, nil
}

// Delete ends session. Unknown session gives apperrors.ErrTokenInvalid.
func (s *Service) Delete(ctx context.Context, id string) (models.WebSession, error) {
	r, err := s.store.Take(ctx, Hash(id))
	if err != nil {
		return models.WebSession{}, storeError(err)
	}
	return toSession(id, r), nil
}

// DeleteAll ends every session of the user
func (s *Service) DeleteAll(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.store.DeleteUser(ctx, userID)
	if err != nil {
		return 0, apperrors.Infrastructure(fmt.Errorf("delete user sessions: %w", err))
	}
	return count, nil
}

func (s *Service) save(ctx context.Context, r Record) (models.WebSession, error) {
	b := make([]byte, idBytes)
	if _, err := io.ReadFull(s.rand, b); err != nil {
		return models.WebSession{}, fmt.Errorf("error while generating session id. Err: %w", err)
	}
	id := base64.RawURLEncoding.EncodeToString(b)

	if err := s.store.Save(ctx, Hash(id), r); err != nil {
		return models.WebSession{}, apperrors.Infrastructure(fmt.Errorf("save session: %w", err))
	}

	return toSession(id, r), nil
}

// Hash is the store key of the session id
func Hash(id string) string {
	sum := sha256.Sum256([]byte(id))
	return hex.EncodeToString(sum[:])
}

func storeError(err error) error {
	if errors.Is(err, apperrors.ErrSessionNotFound) {
		return apperrors.ErrTokenInvalid
	}
	return apperrors.Infrastructure(fmt.Errorf("session store: %w", err))
}

func toSession(id string, r Record) models.WebSession {
	return models.WebSession{
		ID:          id,
		UserID:      r.UserID,
		DeviceID:    r.DeviceID,
		LoginMethod: r.LoginMethod,
		IssuedAt:    r.IssuedAt,
		ExpiresAt:   r.ExpiresAt,
	}
}

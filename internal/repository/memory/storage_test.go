package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/models"
	"github.com/nkiryanov/authcore/internal/repository"
)

func ptr[T any](v T) *T {
	return &v
}

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newToken(userID uuid.UUID) models.RefreshToken {
	return models.RefreshToken{
		ID:          uuid.New(),
		UserID:      userID,
		DeviceID:    "device-1",
		LoginMethod: models.LoginMethodEmail,
		ClientType:  models.ClientMobile,
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Hour),
	}
}

func TestUserRepo(t *testing.T) {
	s := NewStorage()
	repo := s.User()
	ctx := context.Background()

	created, err := repo.CreateUser(ctx, repository.CreateUserParams{
		Email:        ptr("alice@example.com"),
		PasswordHash: "hash",
		IsActive:     true,
	})
	require.NoError(t, err)

	t.Run("get by email", func(t *testing.T) {
		got, err := repo.GetUserByEmail(ctx, "alice@example.com")

		require.NoError(t, err)
		require.Equal(t, created.ID, got.ID)
	})

	t.Run("get by phone not found", func(t *testing.T) {
		_, err := repo.GetUserByPhone(ctx, "15551234567")

		require.ErrorIs(t, err, apperrors.ErrUserNotFound)
	})

	t.Run("duplicate email", func(t *testing.T) {
		_, err := repo.CreateUser(ctx, repository.CreateUserParams{Email: ptr("alice@example.com")})

		require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
	})

	t.Run("touch last login", func(t *testing.T) {
		err := repo.TouchLastLogin(ctx, created.ID, now, "10.0.0.1")
		require.NoError(t, err)

		got, err := repo.GetUserByID(ctx, created.ID)
		require.NoError(t, err)
		require.Equal(t, now, *got.LastLoginAt)
		require.Equal(t, "10.0.0.1", got.LastLoginIP)
	})
}

func TestRefreshTokenRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("mark rotated once", func(t *testing.T) {
		repo := NewStorage().Refresh()
		token, err := repo.Save(ctx, newToken(uuid.New()))
		require.NoError(t, err)

		rotated, err := repo.MarkRotated(ctx, token.ID, uuid.New(), now)
		require.NoError(t, err)
		require.Equal(t, models.TokenStateRotated, rotated.State(now))

		_, err = repo.MarkRotated(ctx, token.ID, uuid.New(), now)
		require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
	})

	t.Run("mark rotated expired", func(t *testing.T) {
		repo := NewStorage().Refresh()
		token, err := repo.Save(ctx, newToken(uuid.New()))
		require.NoError(t, err)

		_, err = repo.MarkRotated(ctx, token.ID, uuid.New(), token.ExpiresAt)

		require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
	})

	t.Run("concurrent rotation has one winner", func(t *testing.T) {
		repo := NewStorage().Refresh()
		token, err := repo.Save(ctx, newToken(uuid.New()))
		require.NoError(t, err)

		var (
			wg  sync.WaitGroup
			mu  sync.Mutex
			won int
		)
		for range 20 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				if _, err := repo.MarkRotated(ctx, token.ID, uuid.New(), now); err == nil {
					mu.Lock()
					won++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		require.Equal(t, 1, won)
	})

	t.Run("delete active", func(t *testing.T) {
		repo := NewStorage().Refresh()
		token, err := repo.Save(ctx, newToken(uuid.New()))
		require.NoError(t, err)

		_, err = repo.DeleteActive(ctx, token.ID, now)
		require.NoError(t, err)

		_, err = repo.Get(ctx, token.ID)
		require.ErrorIs(t, err, apperrors.ErrRefreshTokenNotFound)
	})

	t.Run("revoke all skips terminal", func(t *testing.T) {
		repo := NewStorage().Refresh()
		userID := uuid.New()
		first, _ := repo.Save(ctx, newToken(userID))
		_, _ = repo.Save(ctx, newToken(userID))
		_, _ = repo.Save(ctx, newToken(uuid.New()))
		_, err := repo.MarkRotated(ctx, first.ID, uuid.New(), now)
		require.NoError(t, err)

		count, err := repo.RevokeAll(ctx, userID, now)

		require.NoError(t, err)
		require.Equal(t, 1, count)
	})

	t.Run("delete expired", func(t *testing.T) {
		repo := NewStorage().Refresh()
		old := newToken(uuid.New())
		old.ExpiresAt = now.Add(-time.Minute)
		_, _ = repo.Save(ctx, old)
		fresh, _ := repo.Save(ctx, newToken(uuid.New()))

		count, err := repo.DeleteExpired(ctx, now)

		require.NoError(t, err)
		require.Equal(t, 1, count)
		_, err = repo.Get(ctx, fresh.ID)
		require.NoError(t, err)
	})
}

func TestAuditRepo(t *testing.T) {
	repo := NewStorage().Audit()
	ctx := context.Background()
	userID := uuid.New()

	for _, action := range []models.AuditAction{models.ActionLoginSuccess, models.ActionTokenRefresh, models.ActionLogout} {
		err := repo.Append(ctx, models.AuditEntry{UserID: &userID, Action: action, Timestamp: now})
		require.NoError(t, err)
	}
	err := repo.Append(ctx, models.AuditEntry{Action: models.ActionLoginFailed, Timestamp: now})
	require.NoError(t, err)

	entries, err := repo.ListByUser(ctx, userID, 2)

	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, models.ActionLogout, entries[0].Action)
	assert.Equal(t, models.ActionTokenRefresh, entries[1].Action)
	assert.NotEqual(t, uuid.Nil, entries[0].ID)
}

func TestStorage_InTx(t *testing.T) {
	ctx := context.Background()

	t.Run("commit", func(t *testing.T) {
		s := NewStorage()
		token := newToken(uuid.New())

		err := s.InTx(ctx, func(tx repository.Storage) error {
			_, err := tx.Refresh().Save(ctx, token)
			return err
		})
		require.NoError(t, err)

		_, err = s.Refresh().Get(ctx, token.ID)
		require.NoError(t, err)
	})

	t.Run("rollback on error", func(t *testing.T) {
		s := NewStorage()
		token, err := s.Refresh().Save(ctx, newToken(uuid.New()))
		require.NoError(t, err)
		failure := errors.New("boom")

		err = s.InTx(ctx, func(tx repository.Storage) error {
			if _, err := tx.Refresh().MarkRotated(ctx, token.ID, uuid.New(), now); err != nil {
				return err
			}
			return failure
		})
		require.ErrorIs(t, err, failure)

		got, err := s.Refresh().Get(ctx, token.ID)
		require.NoError(t, err)
		require.Equal(t, models.TokenStateActive, got.State(now))
	})

	t.Run("nested", func(t *testing.T) {
		s := NewStorage()

		err := s.InTx(ctx, func(tx repository.Storage) error {
			return tx.InTx(ctx, func(inner repository.Storage) error {
				_, err := inner.Audit().ListByUser(ctx, uuid.New(), 1)
				return err
			})
		})

		require.NoError(t, err)
	})
}

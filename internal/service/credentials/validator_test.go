package credentials

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/models"
	"github.com/nkiryanov/authcore/internal/repository"
	"github.com/nkiryanov/authcore/internal/repository/memory"
)

// Records compare calls so tests can check the dummy compare runs
type countingHasher struct {
	BcryptHasher
	compares int
}

func (h *countingHasher) Compare(hashedPassword string, password string) error {
	h.compares++
	return h.BcryptHasher.Compare(hashedPassword, password)
}

type failingUsers struct {
	repository.UserRepo
}

func (failingUsers) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return models.User{}, errors.New("connection reset")
}

func newValidator(t *testing.T, users repository.UserRepo) (*Validator, *countingHasher) {
	t.Helper()

	hasher := &countingHasher{BcryptHasher: BcryptHasher{Cost: bcrypt.MinCost}}
	v, err := NewValidator(users, Options{
		Hasher:          hasher,
		RequireVerified: map[models.LoginMethod]bool{models.LoginMethodPhone: true},
	})
	require.NoError(t, err)

	return v, hasher
}

func TestValidator_Validate(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewStorage()
	v, hasher := newValidator(t, storage.User())

	active, err := v.CreateUser(ctx, CreateUserParams{Email: "User@Example.com", Phone: "+1 555 000 1111", Password: "secret", IsActive: true, IsVerified: false})
	require.NoError(t, err)
	_, err = v.CreateUser(ctx, CreateUserParams{Email: "blocked@example.com", Password: "secret", IsActive: false, IsVerified: true})
	require.NoError(t, err)

	t.Run("ok with case insensitive email", func(t *testing.T) {
		user, err := v.Validate(ctx, " user@EXAMPLE.com", "secret", models.LoginMethodEmail)

		require.NoError(t, err)
		require.Equal(t, active.ID, user.ID)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := v.Validate(ctx, "user@example.com", "wrong", models.LoginMethodEmail)

		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("unknown user compares dummy hash", func(t *testing.T) {
		before := hasher.compares

		_, err := v.Validate(ctx, "nobody@example.com", "secret", models.LoginMethodEmail)

		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		require.Equal(t, before+1, hasher.compares)
	})

	t.Run("malformed identifier is invalid credentials", func(t *testing.T) {
		_, err := v.Validate(ctx, "not-an-email", "secret", models.LoginMethodEmail)

		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("inactive after password match", func(t *testing.T) {
		_, err := v.Validate(ctx, "blocked@example.com", "secret", models.LoginMethodEmail)

		require.ErrorIs(t, err, apperrors.ErrAccountInactive)
	})

	t.Run("inactive with wrong password stays invalid credentials", func(t *testing.T) {
		_, err := v.Validate(ctx, "blocked@example.com", "wrong", models.LoginMethodEmail)

		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})

	t.Run("phone login requires verification", func(t *testing.T) {
		_, err := v.Validate(ctx, "15550001111", "secret", models.LoginMethodPhone)

		require.ErrorIs(t, err, apperrors.ErrAccountUnverified)
	})

	t.Run("store failure is infrastructure", func(t *testing.T) {
		v, _ := newValidator(t, failingUsers{})

		_, err := v.Validate(ctx, "user@example.com", "secret", models.LoginMethodEmail)

		require.ErrorIs(t, err, apperrors.ErrInfrastructure)
		require.NotErrorIs(t, err, apperrors.ErrInvalidCredentials)
	})
}

func TestValidator_CreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("create ok", func(t *testing.T) {
		v, _ := newValidator(t, memory.NewStorage().User())

		user, err := v.CreateUser(ctx, CreateUserParams{Email: "New@Example.com", Password: "password123", IsActive: true})

		require.NoError(t, err)
		require.NotEqual(t, uuid.Nil, user.ID)
		require.Equal(t, "new@example.com", *user.Email)
		require.Nil(t, user.Phone)
		require.NotEqual(t, "password123", user.PasswordHash, "password should be hashed")
	})

	t.Run("empty password fail", func(t *testing.T) {
		v, _ := newValidator(t, memory.NewStorage().User())

		_, err := v.CreateUser(ctx, CreateUserParams{Email: "a@example.com"})

		require.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("no identifiers fail", func(t *testing.T) {
		v, _ := newValidator(t, memory.NewStorage().User())

		_, err := v.CreateUser(ctx, CreateUserParams{Password: "password123"})

		require.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("duplicate fail", func(t *testing.T) {
		v, _ := newValidator(t, memory.NewStorage().User())
		_, err := v.CreateUser(ctx, CreateUserParams{Email: "a@example.com", Password: "password123"})
		require.NoError(t, err)

		_, err = v.CreateUser(ctx, CreateUserParams{Email: "A@example.com", Password: "other"})

		require.ErrorIs(t, err, apperrors.ErrUserAlreadyExists)
	})
}

func TestValidator_TouchLastLogin(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewStorage()
	v, _ := newValidator(t, storage.User())
	user, err := v.CreateUser(ctx, CreateUserParams{Email: "a@example.com", Password: "password123", IsActive: true})
	require.NoError(t, err)
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	err = v.TouchLastLogin(ctx, user, at, "10.0.0.1")
	require.NoError(t, err)

	got, err := storage.User().GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	require.Equal(t, at, *got.LastLoginAt)
}

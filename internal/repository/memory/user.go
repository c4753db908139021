package memory

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/models"
	"github.com/nkiryanov/authcore/internal/repository"
)

type UserRepo struct {
	s *Storage
}

func (r *UserRepo) CreateUser(ctx context.Context, params repository.CreateUserParams) (models.User, error) {
	defer r.s.lock()()

	for _, u := range r.s.data.users {
		if sameValue(u.Email, params.Email) || sameValue(u.Phone, params.Phone) {
			return models.User{}, apperrors.ErrUserAlreadyExists
		}
	}

	user := models.User{
		ID:           uuid.New(),
		CreatedAt:    time.Now(),
		Email:        params.Email,
		Phone:        params.Phone,
		PasswordHash: params.PasswordHash,
		IsActive:     params.IsActive,
		IsVerified:   params.IsVerified,
	}
	r.s.data.users[user.ID] = user

	return user, nil
}

func (r *UserRepo) GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error) {
	defer r.s.lock()()

	user, ok := r.s.data.users[userID]
	if !ok {
		return user, apperrors.ErrUserNotFound
	}
	return user, nil
}

func (r *UserRepo) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	return r.find(func(u models.User) bool { return sameValue(u.Email, &email) })
}

func (r *UserRepo) GetUserByPhone(ctx context.Context, phone string) (models.User, error) {
	return r.find(func(u models.User) bool { return sameValue(u.Phone, &phone) })
}

func (r *UserRepo) TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time, ip string) error {
	defer r.s.lock()()

	user, ok := r.s.data.users[userID]
	if !ok {
		return apperrors.ErrUserNotFound
	}
	user.LastLoginAt = &at
	user.LastLoginIP = ip
	r.s.data.users[userID] = user

	return nil
}

func (r *UserRepo) find(match func(models.User) bool) (models.User, error) {
	defer r.s.lock()()

	for _, u := range r.s.data.users {
		if match(u) {
			return u, nil
		}
	}
	return models.User{}, apperrors.ErrUserNotFound
}

func sameValue(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

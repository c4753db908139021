package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authcore/internal/models"
)

type CreateUserParams struct {
	Email        *string
	Phone        *string
	PasswordHash string
	IsActive     bool
	IsVerified   bool
}

// Credential repository
type UserRepo interface {
	// Create user
	// If user with the same email or phone exists has to return apperrors.ErrUserAlreadyExists
	CreateUser(ctx context.Context, params CreateUserParams) (models.User, error)

	// Get user by id, normalized email or normalized phone
	// If user not found must return apperrors.ErrUserNotFound
	GetUserByID(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetUserByEmail(ctx context.Context, email string) (models.User, error)
	GetUserByPhone(ctx context.Context, phone string) (models.User, error)

	// Stamp last successful login
	TouchLastLogin(ctx context.Context, userID uuid.UUID, at time.Time, ip string) error
}

// RefreshToken repository interface
type RefreshTokenRepo interface {
	// Save new token
	Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error)

	// Return the token even if it is expired, rotated or revoked
	// If token not found must return apperrors.ErrRefreshTokenNotFound
	Get(ctx context.Context, tokenID uuid.UUID) (models.RefreshToken, error)

	// Mark token rotated if and only if it is active at 'now': not rotated, not revoked, not expired.
	// Must be single conditional write, so two concurrent callers can't both succeed.
	// If token is not active must return apperrors.ErrRefreshTokenNotFound
	MarkRotated(ctx context.Context, tokenID uuid.UUID, successorID uuid.UUID, now time.Time) (models.RefreshToken, error)

	// Delete token if it active at 'now'.
	// If token not found or not active must return apperrors.ErrRefreshTokenNotFound
	DeleteActive(ctx context.Context, tokenID uuid.UUID, now time.Time) (models.RefreshToken, error)

	// Mark every non terminal token of the user revoked; return count of revoked tokens
	RevokeAll(ctx context.Context, userID uuid.UUID, now time.Time) (int, error)

	// Hard delete tokens expired before the moment; return count of deleted tokens
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

// Audit log, append only
type AuditRepo interface {
	Append(ctx context.Context, entry models.AuditEntry) error
	ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]models.AuditEntry, error)
}

type Storage interface {
	User() UserRepo
	Refresh() RefreshTokenRepo
	Audit() AuditRepo

	// Run fn in transaction: all repos returned by passed storage share it
	// Commit if fn returns nil, rollback otherwise
	InTx(ctx context.Context, fn func(Storage) error) error
}

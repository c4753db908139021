package apperrors

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Authentication outcomes visible to callers
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountInactive    = errors.New("account is inactive")
	ErrAccountUnverified  = errors.New("account is not verified")
	ErrValidation         = errors.New("validation error")

	ErrTokenInvalid       = errors.New("token is invalid")
	ErrTokenExpired       = errors.New("token is expired")
	ErrRefreshTokenReused = errors.New("refresh token reused")
	ErrDeviceMismatch     = errors.New("device does not match token")
	ErrRateLimitExceeded  = errors.New("rate limit exceeded")
	ErrInfrastructure     = errors.New("infrastructure error")
)

// Storage level errors
var (
	ErrUserAlreadyExists = errors.New("user already exists")
	ErrUserNotFound      = errors.New("user not found")

	ErrRefreshTokenNotFound = errors.New("refresh token not found")
	ErrSessionNotFound      = errors.New("session not found")
)

// Infrastructure marks err as a retryable infrastructure failure.
// Both ErrInfrastructure and the original cause stay reachable with errors.Is.
func Infrastructure(err error) error {
	if err == nil || errors.Is(err, ErrInfrastructure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrInfrastructure, err)
}

// RateLimitError is returned when an attempt is rejected by the rate limiter
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("%s, retry after %s", ErrRateLimitExceeded, e.RetryAfter)
}

func (e *RateLimitError) Unwrap() error {
	return ErrRateLimitExceeded
}

// RetryAfterSeconds rounds the remaining window up to whole seconds
func (e *RateLimitError) RetryAfterSeconds() int {
	secs := int(e.RetryAfter / time.Second)
	if e.RetryAfter%time.Second != 0 {
		secs++
	}
	return secs
}

// ReuseError reports a replayed refresh token.
// UserID is the owner whose tokens were revoked as a consequence.
type ReuseError struct {
	UserID  uuid.UUID
	TokenID uuid.UUID
}

func (e *ReuseError) Error() string {
	return fmt.Sprintf("%s: token %s", ErrRefreshTokenReused, e.TokenID)
}

func (e *ReuseError) Unwrap() error {
	return ErrRefreshTokenReused
}

// IsRateLimited reports whether err is a rate limiter denial
func IsRateLimited(err error) bool {
	return errors.Is(err, ErrRateLimitExceeded)
}

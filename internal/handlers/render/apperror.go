package render

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nkiryanov/authcore/internal/apperrors"
)

// Machine readable error types of the auth API
const (
	InvalidCredentialsType = "invalid_credentials"
	AccountInactiveType    = "account_inactive"
	AccountUnverifiedType  = "account_unverified"
	TokenInvalidType       = "token_invalid"
	TokenExpiredType       = "token_expired"
	RateLimitedType        = "rate_limited"
	InfrastructureType     = "infrastructure_error"
	InternalErrorType      = "internal_error"
)

// AppError renders error returned by the auth service.
//
// Reused and revoked refresh tokens look the same as unknown ones on the wire.
// Returns the status code written.
func AppError(w http.ResponseWriter, err error) int {
	var rateErr *apperrors.RateLimitError
	if errors.As(err, &rateErr) {
		RateLimited(w, rateErr.RetryAfter)
		return http.StatusTooManyRequests
	}

	errType, message, code := classifyError(err)
	Error(w, errType, message, code)
	return code
}

func classifyError(err error) (string, string, int) {
	switch {
	case errors.Is(err, apperrors.ErrInfrastructure):
		return InfrastructureType, "Service temporarily unavailable", http.StatusServiceUnavailable
	case errors.Is(err, apperrors.ErrValidation):
		return ValidationErrorType, "Request validation failed", http.StatusBadRequest
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return InvalidCredentialsType, "Invalid credentials", http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrAccountInactive):
		return AccountInactiveType, "Account is inactive", http.StatusForbidden
	case errors.Is(err, apperrors.ErrAccountUnverified):
		return AccountUnverifiedType, "Account is not verified", http.StatusForbidden
	case errors.Is(err, apperrors.ErrTokenExpired):
		return TokenExpiredType, "Token expired", http.StatusUnauthorized
	case errors.Is(err, apperrors.ErrTokenInvalid), errors.Is(err, apperrors.ErrRefreshTokenReused):
		return TokenInvalidType, "Token is invalid", http.StatusUnauthorized
	default:
		return InternalErrorType, "Internal server error", http.StatusInternalServerError
	}
}

// RateLimited renders 429 with Retry-After in whole seconds
func RateLimited(w http.ResponseWriter, retryAfter time.Duration) {
	secs := (&apperrors.RateLimitError{RetryAfter: retryAfter}).RetryAfterSeconds()
	if secs < 1 {
		secs = 1
	}

	w.Header().Set("Retry-After", strconv.Itoa(secs))
	jsonWithStatus(w, ErrorResponse{
		Error:      RateLimitedType,
		Message:    "Too many attempts",
		RetryAfter: secs,
		Timestamp:  now(),
	}, http.StatusTooManyRequests)
}

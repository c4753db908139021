// Package auth runs the authentication protocol: login, refresh, verify and logout
// for mobile clients holding token pairs and browsers holding session cookies.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/clock"
	"github.com/nkiryanov/authcore/internal/logger"
	"github.com/nkiryanov/authcore/internal/models"
	"github.com/nkiryanov/authcore/internal/repository"
	"github.com/nkiryanov/authcore/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authcore/internal/service/ratelimit"
)

const defaultIOTimeout = 3 * time.Second

type CredentialValidator interface {
	Validate(ctx context.Context, identifier string, password string, method models.LoginMethod) (models.User, error)
	TouchLastLogin(ctx context.Context, user models.User, at time.Time, ip string) error
}

type TokenIssuer interface {
	IssuePair(ctx context.Context, user models.User, sc models.SecurityContext) (models.TokenPair, error)
	ParseAccess(access string) (tokenmanager.AccessClaims, error)
	ParseRefresh(refresh string) (tokenmanager.RefreshClaims, error)
	Rotate(ctx context.Context, tokenID uuid.UUID) (models.TokenPair, models.RefreshToken, error)
	Revoke(ctx context.Context, tokenID uuid.UUID) (models.RefreshToken, error)
	RevokeAll(ctx context.Context, userID uuid.UUID) (int, error)
	Check(ctx context.Context, tokenID uuid.UUID) (models.RefreshToken, models.TokenState, error)
	AccessTTL() time.Duration
}

type SessionManager interface {
	Issue(ctx context.Context, user models.User, sc models.SecurityContext) (models.WebSession, error)
	Get(ctx context.Context, id string) (models.WebSession, error)
	Renew(ctx context.Context, id string) (models.WebSession, error)
	Delete(ctx context.Context, id string) (models.WebSession, error)
	DeleteAll(ctx context.Context, userID uuid.UUID) (int, error)
}

type AuditRecorder interface {
	Record(ctx context.Context, entry models.AuditEntry)
}

type Deps struct {
	Validator CredentialValidator
	Tokens    TokenIssuer
	Sessions  SessionManager
	Limiter   ratelimit.Limiter
	Audit     AuditRecorder
	Users     repository.UserRepo
	Clock     clock.Clock   // clock.Real if nil
	Logger    logger.Logger // no-op logger if nil
}

type Config struct {
	// Bound for every call to storage, limiter or session store
	IOTimeout time.Duration
}

type AuthService struct {
	validator CredentialValidator
	tokens    TokenIssuer
	sessions  SessionManager
	limiter   ratelimit.Limiter
	audit     AuditRecorder
	users     repository.UserRepo
	clock     clock.Clock
	logger    logger.Logger

	ioTimeout time.Duration
}

func NewService(cfg Config, deps Deps) (*AuthService, error) {
	switch {
	case deps.Validator == nil:
		return nil, errors.New("credential validator must not be nil")
	case deps.Tokens == nil:
		return nil, errors.New("token issuer must not be nil")
	case deps.Sessions == nil:
		return nil, errors.New("session manager must not be nil")
	case deps.Limiter == nil:
		return nil, errors.New("rate limiter must not be nil")
	case deps.Audit == nil:
		return nil, errors.New("audit recorder must not be nil")
	case deps.Users == nil:
		return nil, errors.New("user repo must not be nil")
	}

	if deps.Clock == nil {
		deps.Clock = clock.Real
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewNoOpLogger()
	}
	if cfg.IOTimeout <= 0 {
		cfg.IOTimeout = defaultIOTimeout
	}

	return &AuthService{
		validator: deps.Validator,
		tokens:    deps.Tokens,
		sessions:  deps.Sessions,
		limiter:   deps.Limiter,
		audit:     deps.Audit,
		users:     deps.Users,
		clock:     deps.Clock,
		logger:    deps.Logger.With("component", "auth"),
		ioTimeout: cfg.IOTimeout,
	}, nil
}

// AccessTTL is the lifetime of issued access tokens
func (s *AuthService) AccessTTL() time.Duration {
	return s.tokens.AccessTTL()
}

// Run fn with the I/O timeout.
// Deadline and cancellation are infrastructure failures, never auth decisions.
func bounded[T any](ctx context.Context, timeout time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fn(ctx)
	if err != nil && (errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled)) {
		err = apperrors.Infrastructure(err)
	}
	return v, err
}

// Admit attempt against the endpoint budget
func (s *AuthService) admit(ctx context.Context, key string, endpoint string) error {
	d, err := bounded(ctx, s.ioTimeout, func(ctx context.Context) (ratelimit.Decision, error) {
		return s.limiter.Admit(ctx, key, endpoint)
	})
	if err != nil {
		return apperrors.Infrastructure(fmt.Errorf("rate limiter: %w", err))
	}
	if !d.Allowed {
		return &apperrors.RateLimitError{RetryAfter: d.RetryAfter}
	}
	return nil
}

func (s *AuthService) record(ctx context.Context, sc models.SecurityContext, userID *uuid.UUID, action models.AuditAction, severity models.AuditSeverity, detail string) {
	s.audit.Record(ctx, models.AuditEntry{
		UserID:    userID,
		Action:    action,
		Severity:  severity,
		Detail:    detail,
		Timestamp: s.clock.Now(),
	}.WithContext(sc))
}

// Log failure by its category: expected outcomes at debug, infrastructure at error
func (s *AuthService) logFailure(msg string, err error, args ...any) {
	args = append(args, "error", err)
	switch {
	case errors.Is(err, apperrors.ErrInfrastructure):
		s.logger.Error(msg, args...)
	case errors.Is(err, apperrors.ErrRefreshTokenReused):
		s.logger.Warn(msg, args...)
	default:
		s.logger.Debug(msg, args...)
	}
}

// Short reason of failure for audit details
func reason(err error) string {
	switch {
	case errors.Is(err, apperrors.ErrInvalidCredentials):
		return "invalid_credentials"
	case errors.Is(err, apperrors.ErrAccountInactive):
		return "account_inactive"
	case errors.Is(err, apperrors.ErrAccountUnverified):
		return "account_unverified"
	case errors.Is(err, apperrors.ErrDeviceMismatch):
		return "device_mismatch"
	case errors.Is(err, apperrors.ErrTokenExpired):
		return "token_expired"
	case errors.Is(err, apperrors.ErrRefreshTokenReused):
		return "token_reused"
	case errors.Is(err, apperrors.ErrTokenInvalid):
		return "token_invalid"
	case errors.Is(err, apperrors.ErrRateLimitExceeded):
		return "rate_limited"
	case errors.Is(err, apperrors.ErrValidation):
		return "validation_error"
	default:
		return "infrastructure_error"
	}
}

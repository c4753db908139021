package tokenmanager

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/clock"
	"github.com/nkiryanov/authcore/internal/models"
	"github.com/nkiryanov/authcore/internal/repository"
)

const (
	DefaultAccessTTL     = 15 * time.Minute
	defaultSigningMethod = "HS256"
	DefaultRefreshTTL    = 30 * 24 * time.Hour
)

const (
	typeAccess  = "access"
	typeRefresh = "refresh"
)

type AccessClaims struct {
	jwt.RegisteredClaims
	UserID      uuid.UUID          `json:"uid"`
	DeviceID    string             `json:"did,omitempty"`
	LoginMethod models.LoginMethod `json:"lm"`
	ClientType  models.ClientType  `json:"ct"`
	RefreshID   uuid.UUID          `json:"rid"` // refresh token issued together with this one
	Type        string             `json:"typ"`
}

type RefreshClaims struct {
	jwt.RegisteredClaims
	UserID   uuid.UUID `json:"uid"`
	DeviceID string    `json:"did,omitempty"`
	Type     string    `json:"typ"`
}

// Refresh token id, same as the store record id
func (c RefreshClaims) TokenID() (uuid.UUID, error) {
	return uuid.Parse(c.ID)
}

// Token manager with sensible default
type Config struct {
	// Secret key to sign tokens
	// Required to be set
	SecretKey string

	// JWT MAC (Message Authentication Code) algorithm
	// If not set than default is used
	Alg string

	// Access and refresh token lifetimes
	// If not set than default is used
	AccessTTL  time.Duration
	RefreshTTL time.Duration

	// clock.Real if not set
	Clock clock.Clock
}

type TokenManager struct {
	// Secret key to sign tokens
	key string

	// JWT MAC (Message Authentication Code) algorithm
	alg jwt.SigningMethod

	// Access and refresh token lifetimes
	accessTTL  time.Duration
	refreshTTL time.Duration

	clock   clock.Clock
	storage repository.Storage
}

func New(cfg Config, storage repository.Storage) (*TokenManager, error) {
	if cfg.SecretKey == "" {
		return nil, errors.New("secret key must not be empty")
	}

	if cfg.Alg == "" {
		cfg.Alg = defaultSigningMethod
	}
	alg := jwt.GetSigningMethod(cfg.Alg)
	if _, ok := alg.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unsupported signing method %q", cfg.Alg)
	}

	setDefaultDuration := func(field *time.Duration, def time.Duration) {
		if *field == 0 {
			*field = def
		}
	}
	setDefaultDuration(&cfg.AccessTTL, DefaultAccessTTL)
	setDefaultDuration(&cfg.RefreshTTL, DefaultRefreshTTL)

	if cfg.Clock == nil {
		cfg.Clock = clock.Real
	}

	return &TokenManager{
		key:        cfg.SecretKey,
		alg:        alg,
		accessTTL:  cfg.AccessTTL,
		refreshTTL: cfg.RefreshTTL,
		clock:      cfg.Clock,
		storage:    storage,
	}, nil
}

func (m *TokenManager) AccessTTL() time.Duration {
	return m.accessTTL
}

// JWT keeps seconds only, so records do the same
func (m *TokenManager) now() time.Time {
	return m.clock.Now().Truncate(time.Second)
}

// IssuePair persists a new refresh token record and signs access and refresh tokens for it
func (m *TokenManager) IssuePair(ctx context.Context, user models.User, sc models.SecurityContext) (models.TokenPair, error) {
	now := m.now()

	record, err := m.storage.Refresh().Save(ctx, models.RefreshToken{
		ID:          uuid.New(),
		UserID:      user.ID,
		DeviceID:    sc.DeviceID,
		LoginMethod: sc.LoginMethod,
		ClientType:  sc.ClientType,
		IssuedAt:    now,
		ExpiresAt:   now.Add(m.refreshTTL),
	})
	if err != nil {
		return models.TokenPair{}, apperrors.Infrastructure(fmt.Errorf("error while saving refresh token. Err: %w", err))
	}

	return m.sign(record, now)
}

// Rotate consumes the refresh token and issues its successor.
//
// Token is consumed with single conditional write, so of concurrent callers only one wins.
// If anything fails after that the transaction rolls back and token stays active.
// Failure reasons:
//   - apperrors.ErrTokenInvalid: unknown token
//   - apperrors.ErrTokenExpired: expired token, whatever its state
//   - *apperrors.ReuseError: token was rotated or revoked already; all user tokens are revoked
func (m *TokenManager) Rotate(ctx context.Context, tokenID uuid.UUID) (models.TokenPair, models.RefreshToken, error) {
	var (
		pair      models.TokenPair
		consumed  models.RefreshToken
		casFailed bool
	)
	now := m.now()

	err := m.storage.InTx(ctx, func(tx repository.Storage) error {
		successorID := uuid.New()

		var err error
		consumed, err = tx.Refresh().MarkRotated(ctx, tokenID, successorID, now)
		if err != nil {
			casFailed = errors.Is(err, apperrors.ErrRefreshTokenNotFound)
			return err
		}

		successor, err := tx.Refresh().Save(ctx, models.RefreshToken{
			ID:          successorID,
			UserID:      consumed.UserID,
			DeviceID:    consumed.DeviceID,
			LoginMethod: consumed.LoginMethod,
			ClientType:  consumed.ClientType,
			IssuedAt:    now,
			ExpiresAt:   now.Add(m.refreshTTL),
		})
		if err != nil {
			return fmt.Errorf("error while saving successor. Err: %w", err)
		}

		pair, err = m.sign(successor, now)
		return err
	})

	switch {
	case err == nil:
		return pair, consumed, nil
	case casFailed:
		record, err := m.rejected(ctx, tokenID, now)
		return models.TokenPair{}, record, err
	default:
		return models.TokenPair{}, models.RefreshToken{}, apperrors.Infrastructure(fmt.Errorf("rotate refresh token: %w", err))
	}
}

// Tell why token could not be rotated
func (m *TokenManager) rejected(ctx context.Context, tokenID uuid.UUID, now time.Time) (models.RefreshToken, error) {
	record, err := m.storage.Refresh().Get(ctx, tokenID)
	switch {
	case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
		return record, apperrors.ErrTokenInvalid
	case err != nil:
		return record, apperrors.Infrastructure(fmt.Errorf("get refresh token: %w", err))
	}

	switch record.State(now) {
	case models.TokenStateExpired:
		return record, apperrors.ErrTokenExpired
	case models.TokenStateRotated, models.TokenStateRevoked:
		if _, err := m.storage.Refresh().RevokeAll(ctx, record.UserID, now); err != nil {
			return record, apperrors.Infrastructure(fmt.Errorf("revoke user tokens after reuse: %w", err))
		}
		return record, &apperrors.ReuseError{UserID: record.UserID, TokenID: record.ID}
	default:
		// Became active again: rotation was rolled back concurrently
		return record, apperrors.ErrTokenInvalid
	}
}

// Revoke deletes the active token. Inactive and unknown tokens give apperrors.ErrTokenInvalid.
func (m *TokenManager) Revoke(ctx context.Context, tokenID uuid.UUID) (models.RefreshToken, error) {
	record, err := m.storage.Refresh().DeleteActive(ctx, tokenID, m.now())
	switch {
	case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
		return record, apperrors.ErrTokenInvalid
	case err != nil:
		return record, apperrors.Infrastructure(fmt.Errorf("revoke refresh token: %w", err))
	}
	return record, nil
}

// RevokeAll revokes every live token of the user and returns how many were revoked
func (m *TokenManager) RevokeAll(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := m.storage.Refresh().RevokeAll(ctx, userID, m.now())
	if err != nil {
		return 0, apperrors.Infrastructure(fmt.Errorf("revoke user tokens: %w", err))
	}
	return count, nil
}

// Check returns the stored token and its state now, without changing anything
func (m *TokenManager) Check(ctx context.Context, tokenID uuid.UUID) (models.RefreshToken, models.TokenState, error) {
	record, err := m.storage.Refresh().Get(ctx, tokenID)
	switch {
	case errors.Is(err, apperrors.ErrRefreshTokenNotFound):
		return record, "", apperrors.ErrTokenInvalid
	case err != nil:
		return record, "", apperrors.Infrastructure(fmt.Errorf("get refresh token: %w", err))
	}
	return record, record.State(m.now()), nil
}

// PurgeExpired deletes tokens expired before the moment
func (m *TokenManager) PurgeExpired(ctx context.Context, before time.Time) (int, error) {
	count, err := m.storage.Refresh().DeleteExpired(ctx, before)
	if err != nil {
		return 0, apperrors.Infrastructure(fmt.Errorf("purge expired tokens: %w", err))
	}
	return count, nil
}

func (m *TokenManager) sign(record models.RefreshToken, now time.Time) (models.TokenPair, error) {
	var pair models.TokenPair
	accessExpiresAt := now.Add(m.accessTTL)

	accessToken := jwt.NewWithClaims(
		m.alg,
		AccessClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        uuid.NewString(),
				Subject:   record.UserID.String(),
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(accessExpiresAt),
			},
			UserID:      record.UserID,
			DeviceID:    record.DeviceID,
			LoginMethod: record.LoginMethod,
			ClientType:  record.ClientType,
			RefreshID:   record.ID,
			Type:        typeAccess,
		},
	)
	access, err := accessToken.SignedString([]byte(m.key))
	if err != nil {
		return pair, fmt.Errorf("error while signing access token. Err: %w", err)
	}

	refreshToken := jwt.NewWithClaims(
		m.alg,
		RefreshClaims{
			RegisteredClaims: jwt.RegisteredClaims{
				ID:        record.ID.String(),
				Subject:   record.UserID.String(),
				IssuedAt:  jwt.NewNumericDate(record.IssuedAt),
				ExpiresAt: jwt.NewNumericDate(record.ExpiresAt),
			},
			UserID:   record.UserID,
			DeviceID: record.DeviceID,
			Type:     typeRefresh,
		},
	)
	refresh, err := refreshToken.SignedString([]byte(m.key))
	if err != nil {
		return pair, fmt.Errorf("error while signing refresh token. Err: %w", err)
	}

	return models.TokenPair{
		Access:    models.IssuedToken{Value: access, ExpiresAt: accessExpiresAt},
		Refresh:   models.IssuedToken{Value: refresh, ExpiresAt: record.ExpiresAt},
		RefreshID: record.ID,
	}, nil
}

// ParseAccess validates signature and expiry of the access token.
// Expired token gives apperrors.ErrTokenExpired, anything else wrong gives ErrTokenInvalid.
func (m *TokenManager) ParseAccess(access string) (AccessClaims, error) {
	var claims AccessClaims

	_, err := jwt.ParseWithClaims(
		access,
		&claims,
		m.keyFunc,
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithTimeFunc(m.clock.Now),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired) && claims.Type == typeAccess:
		return claims, apperrors.ErrTokenExpired
	case err != nil:
		return claims, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	case claims.Type != typeAccess || claims.UserID == uuid.Nil:
		return claims, apperrors.ErrTokenInvalid
	}

	return claims, nil
}

// ParseRefresh checks signature and shape of the refresh token only.
// Whether token still may be used is decided by its store record.
func (m *TokenManager) ParseRefresh(refresh string) (RefreshClaims, error) {
	var claims RefreshClaims

	_, err := jwt.ParseWithClaims(
		refresh,
		&claims,
		m.keyFunc,
		jwt.WithValidMethods([]string{m.alg.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return claims, fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, err)
	}
	if claims.Type != typeRefresh || claims.UserID == uuid.Nil {
		return claims, apperrors.ErrTokenInvalid
	}
	if _, err := claims.TokenID(); err != nil {
		return claims, apperrors.ErrTokenInvalid
	}

	return claims, nil
}

func (m *TokenManager) keyFunc(*jwt.Token) (any, error) {
	return []byte(m.key), nil
}

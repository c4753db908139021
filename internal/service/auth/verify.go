package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/models"
)

type TokenType string

const (
	TokenAccess  TokenType = "access"
	TokenRefresh TokenType = "refresh"
)

type VerifyRequest struct {
	Token    string
	Type     TokenType
	Security models.SecurityContext
}

type VerifyResult struct {
	Valid   bool
	Expired bool
	User    *models.User // set for valid tokens only
}

// Verify tells whether token is usable right now. Invalid tokens are a result, not an error.
// Only malformed request and infrastructure failures are errors.
func (s *AuthService) Verify(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	if req.Token == "" {
		return VerifyResult{}, fmt.Errorf("%w: token required", apperrors.ErrValidation)
	}

	switch req.Type {
	case TokenAccess:
		return s.verifyAccess(ctx, req)
	case TokenRefresh:
		return s.verifyRefresh(ctx, req)
	default:
		return VerifyResult{}, fmt.Errorf("%w: unknown token type %q", apperrors.ErrValidation, req.Type)
	}
}

func (s *AuthService) verifyAccess(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	claims, err := s.tokens.ParseAccess(req.Token)
	switch {
	case errors.Is(err, apperrors.ErrTokenExpired):
		return VerifyResult{Expired: true}, nil
	case err != nil:
		return VerifyResult{}, nil
	}

	return s.verifiedUser(ctx, claims.UserID)
}

func (s *AuthService) verifyRefresh(ctx context.Context, req VerifyRequest) (VerifyResult, error) {
	claims, err := s.tokens.ParseRefresh(req.Token)
	if err != nil {
		return VerifyResult{}, nil
	}
	tokenID, _ := claims.TokenID()

	type checked struct {
		record models.RefreshToken
		state  models.TokenState
	}
	res, err := bounded(ctx, s.ioTimeout, func(ctx context.Context) (checked, error) {
		record, state, err := s.tokens.Check(ctx, tokenID)
		return checked{record: record, state: state}, err
	})
	switch {
	case errors.Is(err, apperrors.ErrTokenInvalid):
		return VerifyResult{}, nil
	case err != nil:
		s.logFailure("verify refresh token", err)
		return VerifyResult{}, err
	}

	switch res.state {
	case models.TokenStateActive:
		return s.verifiedUser(ctx, res.record.UserID)
	case models.TokenStateExpired:
		return VerifyResult{Expired: true}, nil
	default:
		sc := req.Security
		sc.DeviceID = res.record.DeviceID
		s.record(ctx, sc, &res.record.UserID, models.ActionRefreshTokenProbed, models.SeverityWarning,
			fmt.Sprintf("token=%s state=%s", res.record.ID, res.state))
		return VerifyResult{}, nil
	}
}

func (s *AuthService) verifiedUser(ctx context.Context, userID uuid.UUID) (VerifyResult, error) {
	user, err := bounded(ctx, s.ioTimeout, func(ctx context.Context) (models.User, error) {
		return s.users.GetUserByID(ctx, userID)
	})
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return VerifyResult{}, nil
	case err != nil:
		err = apperrors.Infrastructure(fmt.Errorf("get user: %w", err))
		s.logFailure("verify token", err)
		return VerifyResult{}, err
	case !user.IsActive:
		return VerifyResult{}, nil
	}

	return VerifyResult{Valid: true, User: &user}, nil
}

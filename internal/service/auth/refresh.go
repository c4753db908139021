package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/models"
	"github.com/nkiryanov/authcore/internal/service/ratelimit"
)

type RefreshRequest struct {
	RefreshToken string // mobile
	DeviceID     string // mobile, optional: checked against the token device when set
	SessionID    string // web, taken from the cookie

	Security models.SecurityContext
}

type RefreshResult struct {
	UserID     uuid.UUID
	ClientType models.ClientType
	Tokens     models.TokenPair
	Session    models.WebSession
}

// Refresh exchanges refresh token for a new pair (mobile) or renews session id (web).
//
// Replayed refresh token revokes every token and session of its owner
// and returns *apperrors.ReuseError.
func (s *AuthService) Refresh(ctx context.Context, req RefreshRequest) (RefreshResult, error) {
	sc := req.Security
	sc.IssuedAt = s.clock.Now()

	if sc.IPAddress != "" {
		if err := s.admit(ctx, sc.IPAddress, ratelimit.EndpointRefresh); err != nil {
			if apperrors.IsRateLimited(err) {
				s.record(ctx, sc, nil, models.ActionTokenRefreshFailed, models.SeverityWarning, "reason=rate_limited")
			}
			s.logFailure("refresh not admitted", err)
			return RefreshResult{}, err
		}
	}

	if sc.ClientType == models.ClientMobile {
		return s.refreshMobile(ctx, req, sc)
	}
	return s.refreshWeb(ctx, req, sc)
}

func (s *AuthService) refreshMobile(ctx context.Context, req RefreshRequest, sc models.SecurityContext) (RefreshResult, error) {
	fail := func(userID *uuid.UUID, err error) (RefreshResult, error) {
		s.record(ctx, sc, userID, models.ActionTokenRefreshFailed, models.SeverityInfo, "reason="+reason(err))
		s.logFailure("refresh failed", err)
		return RefreshResult{}, err
	}

	claims, err := s.tokens.ParseRefresh(req.RefreshToken)
	if err != nil {
		return fail(nil, apperrors.ErrTokenInvalid)
	}
	tokenID, _ := claims.TokenID()
	sc.DeviceID = claims.DeviceID

	// Mismatch rejects only an active token. Rotated or revoked ones go on to Rotate and are reported as reuse.
	if req.DeviceID != "" && req.DeviceID != claims.DeviceID {
		state, err := bounded(ctx, s.ioTimeout, func(ctx context.Context) (models.TokenState, error) {
			_, state, err := s.tokens.Check(ctx, tokenID)
			return state, err
		})
		if err != nil {
			return fail(&claims.UserID, err)
		}
		if state == models.TokenStateActive {
			return s.deviceMismatch(ctx, sc, claims.UserID, req.DeviceID)
		}
	}

	type rotated struct {
		pair     models.TokenPair
		consumed models.RefreshToken
	}
	res, err := bounded(ctx, s.ioTimeout, func(ctx context.Context) (rotated, error) {
		pair, consumed, err := s.tokens.Rotate(ctx, tokenID)
		return rotated{pair: pair, consumed: consumed}, err
	})

	var reuse *apperrors.ReuseError
	switch {
	case errors.As(err, &reuse):
		s.handleReuse(ctx, sc, reuse)
		return RefreshResult{}, err
	case err != nil:
		return fail(&claims.UserID, err)
	}

	s.record(ctx, sc, &res.consumed.UserID, models.ActionTokenRefresh, models.SeverityInfo, "")

	return RefreshResult{
		UserID:     res.consumed.UserID,
		ClientType: models.ClientMobile,
		Tokens:     res.pair,
	}, nil
}

func (s *AuthService) deviceMismatch(ctx context.Context, sc models.SecurityContext, userID uuid.UUID, presented string) (RefreshResult, error) {
	s.record(ctx, sc, &userID, models.ActionTokenRefreshFailed, models.SeverityWarning, "reason=device_mismatch device="+presented)
	err := fmt.Errorf("%w: %w", apperrors.ErrTokenInvalid, apperrors.ErrDeviceMismatch)
	s.logFailure("refresh failed", err, "user_id", userID)
	return RefreshResult{}, err
}

// Tokens are already revoked by the rotator; browser sessions of the owner go too
func (s *AuthService) handleReuse(ctx context.Context, sc models.SecurityContext, reuse *apperrors.ReuseError) {
	sessions, err := bounded(ctx, s.ioTimeout, func(ctx context.Context) (int, error) {
		return s.sessions.DeleteAll(ctx, reuse.UserID)
	})
	if err != nil {
		s.logger.Error("drop sessions after refresh token reuse", "user_id", reuse.UserID, "error", err)
	}

	s.record(ctx, sc, &reuse.UserID, models.ActionRefreshTokenReused, models.SeverityCritical,
		fmt.Sprintf("token=%s sessions_dropped=%d", reuse.TokenID, sessions))
	s.logger.Warn("refresh token reused, user tokens revoked",
		"user_id", reuse.UserID,
		"token_id", reuse.TokenID,
		"ip", sc.IPAddress,
	)
}

func (s *AuthService) refreshWeb(ctx context.Context, req RefreshRequest, sc models.SecurityContext) (RefreshResult, error) {
	if req.SessionID == "" {
		s.record(ctx, sc, nil, models.ActionTokenRefreshFailed, models.SeverityInfo, "reason=token_invalid")
		return RefreshResult{}, apperrors.ErrTokenInvalid
	}

	session, err := bounded(ctx, s.ioTimeout, func(ctx context.Context) (models.WebSession, error) {
		return s.sessions.Renew(ctx, req.SessionID)
	})
	if err != nil {
		s.record(ctx, sc, nil, models.ActionTokenRefreshFailed, models.SeverityInfo, "reason="+reason(err))
		s.logFailure("session renew failed", err)
		return RefreshResult{}, err
	}

	sc.DeviceID = session.DeviceID
	s.record(ctx, sc, &session.UserID, models.ActionSessionRenewed, models.SeverityInfo, "")

	return RefreshResult{
		UserID:     session.UserID,
		ClientType: models.ClientWeb,
		Session:    session,
	}, nil
}

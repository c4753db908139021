package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/models"
)

// One of the fields identifies what to end.
// Refresh token wins over access token, which ends the refresh token issued with it.
type LogoutRequest struct {
	RefreshToken string
	AccessToken  string
	SessionID    string

	Security models.SecurityContext
}

// Logout ends one session: the refresh token of a device or the browser session.
// Already ended or unknown ones give apperrors.ErrTokenInvalid.
func (s *AuthService) Logout(ctx context.Context, req LogoutRequest) error {
	sc := req.Security
	sc.IssuedAt = s.clock.Now()

	if req.SessionID != "" {
		return s.logoutWeb(ctx, req.SessionID, sc)
	}

	tokenID, err := s.logoutTokenID(req)
	if err != nil {
		s.logFailure("logout failed", err)
		return err
	}

	record, err := bounded(ctx, s.ioTimeout, func(ctx context.Context) (models.RefreshToken, error) {
		return s.tokens.Revoke(ctx, tokenID)
	})
	if err != nil {
		s.logFailure("logout failed", err)
		return err
	}

	sc.DeviceID = record.DeviceID
	s.record(ctx, sc, &record.UserID, models.ActionLogout, models.SeverityInfo, "")
	return nil
}

func (s *AuthService) logoutTokenID(req LogoutRequest) (uuid.UUID, error) {
	switch {
	case req.RefreshToken != "":
		claims, err := s.tokens.ParseRefresh(req.RefreshToken)
		if err != nil {
			return uuid.Nil, apperrors.ErrTokenInvalid
		}
		return claims.TokenID()
	case req.AccessToken != "":
		claims, err := s.tokens.ParseAccess(req.AccessToken)
		if err != nil {
			return uuid.Nil, err
		}
		if claims.RefreshID == uuid.Nil {
			return uuid.Nil, apperrors.ErrTokenInvalid
		}
		return claims.RefreshID, nil
	default:
		return uuid.Nil, fmt.Errorf("%w: nothing to log out", apperrors.ErrTokenInvalid)
	}
}

func (s *AuthService) logoutWeb(ctx context.Context, sessionID string, sc models.SecurityContext) error {
	session, err := bounded(ctx, s.ioTimeout, func(ctx context.Context) (models.WebSession, error) {
		return s.sessions.Delete(ctx, sessionID)
	})
	if err != nil {
		s.logFailure("logout failed", err)
		return err
	}

	sc.DeviceID = session.DeviceID
	s.record(ctx, sc, &session.UserID, models.ActionLogout, models.SeverityInfo, "")
	return nil
}

// LogoutAll ends every refresh token and browser session of the user
func (s *AuthService) LogoutAll(ctx context.Context, userID uuid.UUID, sc models.SecurityContext) error {
	tokens, err := bounded(ctx, s.ioTimeout, func(ctx context.Context) (int, error) {
		return s.tokens.RevokeAll(ctx, userID)
	})
	if err != nil {
		s.logFailure("logout all failed", err, "user_id", userID)
		return err
	}

	sessions, err := bounded(ctx, s.ioTimeout, func(ctx context.Context) (int, error) {
		return s.sessions.DeleteAll(ctx, userID)
	})
	if err != nil {
		s.logFailure("logout all failed", err, "user_id", userID)
		return err
	}

	s.record(ctx, sc, &userID, models.ActionLogoutAll, models.SeverityInfo, fmt.Sprintf("tokens=%d sessions=%d", tokens, sessions))
	s.logger.Info("logout all", "user_id", userID, "tokens", tokens, "sessions", sessions)
	return nil
}

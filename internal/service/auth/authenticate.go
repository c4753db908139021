package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/models"
)

// Credentials of an authenticated request: bearer access token or session cookie
type Credentials struct {
	AccessToken string
	SessionID   string
}

// Authenticate resolves request credentials to an active user
func (s *AuthService) Authenticate(ctx context.Context, creds Credentials) (models.User, error) {
	var userID uuid.UUID

	switch {
	case creds.AccessToken != "":
		claims, err := s.tokens.ParseAccess(creds.AccessToken)
		if err != nil {
			return models.User{}, err
		}
		userID = claims.UserID
	case creds.SessionID != "":
		session, err := bounded(ctx, s.ioTimeout, func(ctx context.Context) (models.WebSession, error) {
			return s.sessions.Get(ctx, creds.SessionID)
		})
		if err != nil {
			return models.User{}, err
		}
		userID = session.UserID
	default:
		return models.User{}, apperrors.ErrTokenInvalid
	}

	user, err := bounded(ctx, s.ioTimeout, func(ctx context.Context) (models.User, error) {
		return s.users.GetUserByID(ctx, userID)
	})
	switch {
	case errors.Is(err, apperrors.ErrUserNotFound):
		return models.User{}, apperrors.ErrTokenInvalid
	case err != nil:
		return models.User{}, apperrors.Infrastructure(fmt.Errorf("get user: %w", err))
	case !user.IsActive:
		return models.User{}, apperrors.ErrAccountInactive
	}

	return user, nil
}

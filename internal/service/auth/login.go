package auth

import (
	"context"
	"fmt"
	"strings"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/models"
	"github.com/nkiryanov/authcore/internal/service/credentials"
	"github.com/nkiryanov/authcore/internal/service/ratelimit"
)

type LoginRequest struct {
	Identifier string
	Password   string
	Method     models.LoginMethod

	// Client type, device and network origin of the request
	Security models.SecurityContext
}

// Mobile clients get Tokens, browsers get Session
type LoginResult struct {
	User       models.User
	ClientType models.ClientType
	Tokens     models.TokenPair
	Session    models.WebSession
}

func (s *AuthService) Login(ctx context.Context, req LoginRequest) (LoginResult, error) {
	sc := req.Security
	sc.LoginMethod = req.Method
	sc.IssuedAt = s.clock.Now()

	if err := validateLogin(req); err != nil {
		return LoginResult{}, err
	}

	identifier := normalizeOrLower(req.Identifier, req.Method)
	redacted := credentials.RedactIdentifier(identifier)

	if err := s.admitLogin(ctx, string(req.Method)+":"+identifier, sc.IPAddress); err != nil {
		if apperrors.IsRateLimited(err) {
			s.record(ctx, sc, nil, models.ActionLoginRateLimited, models.SeverityWarning, "identifier="+redacted)
		}
		s.logFailure("login not admitted", err, "identifier", redacted)
		return LoginResult{}, err
	}

	user, err := bounded(ctx, s.ioTimeout, func(ctx context.Context) (models.User, error) {
		return s.validator.Validate(ctx, req.Identifier, req.Password, req.Method)
	})
	if err != nil {
		s.record(ctx, sc, nil, models.ActionLoginFailed, models.SeverityInfo, fmt.Sprintf("reason=%s identifier=%s", reason(err), redacted))
		s.logFailure("login failed", err, "identifier", redacted)
		return LoginResult{}, err
	}

	result := LoginResult{User: user, ClientType: sc.ClientType}

	switch sc.ClientType {
	case models.ClientMobile:
		result.Tokens, err = bounded(ctx, s.ioTimeout, func(ctx context.Context) (models.TokenPair, error) {
			return s.tokens.IssuePair(ctx, user, sc)
		})
	default:
		result.Session, err = bounded(ctx, s.ioTimeout, func(ctx context.Context) (models.WebSession, error) {
			return s.sessions.Issue(ctx, user, sc)
		})
	}
	if err != nil {
		s.logFailure("login issue failed", err, "user_id", user.ID)
		return LoginResult{}, err
	}

	// Credentials are already granted, stale last login is not a reason to fail
	_, err = bounded(ctx, s.ioTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.validator.TouchLastLogin(ctx, user, sc.IssuedAt, sc.IPAddress)
	})
	if err != nil {
		s.logger.Error("touch last login failed", "user_id", user.ID, "error", err)
	}

	s.record(ctx, sc, &user.ID, models.ActionLoginSuccess, models.SeverityInfo, "")
	s.logger.Info("login", "user_id", user.ID, "client", sc.ClientType)

	return result, nil
}

func (s *AuthService) admitLogin(ctx context.Context, key string, ip string) error {
	if err := s.admit(ctx, key, ratelimit.EndpointLogin); err != nil {
		return err
	}
	if ip != "" {
		return s.admit(ctx, ip, ratelimit.EndpointLoginIP)
	}
	return nil
}

func validateLogin(req LoginRequest) error {
	switch {
	case !req.Method.Valid():
		return fmt.Errorf("%w: unknown login method %q", apperrors.ErrValidation, req.Method)
	case strings.TrimSpace(req.Identifier) == "":
		return fmt.Errorf("%w: identifier required", apperrors.ErrValidation)
	case req.Password == "":
		return fmt.Errorf("%w: password required", apperrors.ErrValidation)
	case req.Security.ClientType == models.ClientMobile && req.Security.DeviceID == "":
		return fmt.Errorf("%w: device id required for mobile clients", apperrors.ErrValidation)
	}
	return nil
}

// Attempts are counted per normalized identifier, so "A@x.com" and "a@x.com" share the budget
func normalizeOrLower(identifier string, method models.LoginMethod) string {
	if normalized, err := credentials.Normalize(identifier, method); err == nil {
		return normalized
	}
	return strings.ToLower(strings.TrimSpace(identifier))
}

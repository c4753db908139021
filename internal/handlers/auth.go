package handlers

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/nkiryanov/authcore/internal/clock"
	"github.com/nkiryanov/authcore/internal/handlers/render"
	"github.com/nkiryanov/authcore/internal/logger"
	"github.com/nkiryanov/authcore/internal/models"
	"github.com/nkiryanov/authcore/internal/service/auth"
	"github.com/nkiryanov/authcore/internal/service/classify"
)

const (
	DefaultCookieName = "sid"
	headerDeviceID    = "X-Device-ID"
)

type authService interface {
	// Login grants tokens (mobile) or session (web).
	// Returns apperrors.ErrInvalidCredentials for wrong or unknown credentials
	// and *apperrors.RateLimitError when the attempt is over the budget
	Login(ctx context.Context, req auth.LoginRequest) (auth.LoginResult, error)

	// Refresh rotates refresh token (mobile) or renews session id (web)
	Refresh(ctx context.Context, req auth.RefreshRequest) (auth.RefreshResult, error)

	// Verify tells whether token is usable right now
	Verify(ctx context.Context, req auth.VerifyRequest) (auth.VerifyResult, error)

	// Logout ends one session; LogoutAll ends every session of the user
	Logout(ctx context.Context, req auth.LogoutRequest) error
	LogoutAll(ctx context.Context, userID uuid.UUID, sc models.SecurityContext) error

	// Authenticate resolves bearer token or session id to the user
	Authenticate(ctx context.Context, creds auth.Credentials) (models.User, error)

	AccessTTL() time.Duration
}

// Session cookie attributes
type CookieConfig struct {
	Name   string // DefaultCookieName if empty
	Domain string
	Secure bool
}

type AuthHandler struct {
	auth   authService
	cookie CookieConfig
	clock  clock.Clock
	logger logger.Logger
}

func NewAuth(as authService, cookie CookieConfig, clk clock.Clock, l logger.Logger) *AuthHandler {
	if cookie.Name == "" {
		cookie.Name = DefaultCookieName
	}
	if clk == nil {
		clk = clock.Real
	}
	if l == nil {
		l = logger.NewNoOpLogger()
	}

	return &AuthHandler{auth: as, cookie: cookie, clock: clk, logger: l}
}

// Response timestamp
func (h *AuthHandler) now() time.Time {
	return h.clock.Now().UTC().Truncate(time.Second)
}

// Security context of the request. Device id of the body wins over the header.
func (h *AuthHandler) securityContext(r *http.Request, deviceID string) models.SecurityContext {
	if deviceID == "" {
		deviceID = r.Header.Get(headerDeviceID)
	}

	return models.SecurityContext{
		ClientType: classify.Classify(r.Header),
		DeviceID:   deviceID,
		IPAddress:  remoteIP(r),
		UserAgent:  r.UserAgent(),
		IssuedAt:   h.clock.Now(),
	}
}

func (h *AuthHandler) setSessionCookie(w http.ResponseWriter, session models.WebSession) {
	maxAge := int(session.ExpiresAt.Sub(h.clock.Now()) / time.Second)
	if maxAge < 1 {
		maxAge = 1
	}

	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    session.ID,
		Path:     "/",
		Domain:   h.cookie.Domain,
		Expires:  session.ExpiresAt.UTC(),
		MaxAge:   maxAge,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookie.Name,
		Value:    "",
		Path:     "/",
		Domain:   h.cookie.Domain,
		MaxAge:   -1,
		Secure:   h.cookie.Secure,
		HttpOnly: true,
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) sessionID(r *http.Request) string {
	cookie, err := r.Cookie(h.cookie.Name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Render service error. Expected outcomes are logged by the service, only unmapped errors here.
func (h *AuthHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if code := render.AppError(w, err); code == http.StatusInternalServerError {
		h.logger.Error("unexpected auth error", "path", r.URL.Path, "error", err)
	}
}

func remoteIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Public part of the user
type userResponse struct {
	ID          uuid.UUID  `json:"id"`
	Email       *string    `json:"email,omitempty"`
	Phone       *string    `json:"phone,omitempty"`
	IsVerified  bool       `json:"isVerified"`
	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
}

func toUserResponse(u models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Email:       u.Email,
		Phone:       u.Phone,
		IsVerified:  u.IsVerified,
		LastLoginAt: u.LastLoginAt,
	}
}

// Tokens of mobile client
type tokensResponse struct {
	AccessToken      string    `json:"accessToken"`
	RefreshToken     string    `json:"refreshToken"`
	TokenType        string    `json:"tokenType"`
	ExpiresIn        int       `json:"expiresIn"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

func (h *AuthHandler) toTokensResponse(pair models.TokenPair) tokensResponse {
	return tokensResponse{
		AccessToken:      pair.Access.Value,
		RefreshToken:     pair.Refresh.Value,
		TokenType:        "Bearer",
		ExpiresIn:        int(h.auth.AccessTTL() / time.Second),
		RefreshExpiresAt: pair.Refresh.ExpiresAt.UTC(),
	}
}

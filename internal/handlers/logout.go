package handlers

import (
	"net/http"

	"github.com/nkiryanov/authcore/internal/handlers/middleware"
	"github.com/nkiryanov/authcore/internal/handlers/render"
	"github.com/nkiryanov/authcore/internal/handlers/userctx"
	"github.com/nkiryanov/authcore/internal/service/auth"
)

// Logout ends the session named by body refresh token, bearer access token or cookie, in that order
func (h *AuthHandler) logout(w http.ResponseWriter, r *http.Request) {
	type LogoutRequest struct {
		RefreshToken string `json:"refreshToken" validate:"omitempty,max=4096"`
	}

	data, err := render.BindOptional[LogoutRequest](w, r)
	if err != nil {
		return
	}

	req := auth.LogoutRequest{
		RefreshToken: data.RefreshToken,
		Security:     h.securityContext(r, ""),
	}
	if req.RefreshToken == "" {
		creds := middleware.ReadCredentials(r, h.cookie.Name)
		req.AccessToken = creds.AccessToken
		req.SessionID = creds.SessionID
	}

	err = h.auth.Logout(r.Context(), req)
	if req.SessionID != "" {
		h.clearSessionCookie(w)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Requires authenticated user
func (h *AuthHandler) logoutAll(w http.ResponseWriter, r *http.Request) {
	user, _ := userctx.FromContext(r.Context())

	if err := h.auth.LogoutAll(r.Context(), user.ID, h.securityContext(r, "")); err != nil {
		h.fail(w, r, err)
		return
	}

	if h.sessionID(r) != "" {
		h.clearSessionCookie(w)
	}
	w.WriteHeader(http.StatusNoContent)
}

package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/handlers/render"
	"github.com/nkiryanov/authcore/internal/models"
	"github.com/nkiryanov/authcore/internal/service/auth"
)

// Mobile clients send refresh token in the body and get a new pair.
// Browsers send the session cookie and get a new one with 204.
func (h *AuthHandler) refresh(w http.ResponseWriter, r *http.Request) {
	sc := h.securityContext(r, "")
	if sc.ClientType == models.ClientMobile {
		h.refreshMobile(w, r)
		return
	}

	result, err := h.auth.Refresh(r.Context(), auth.RefreshRequest{SessionID: h.sessionID(r), Security: sc})
	if err != nil {
		if errors.Is(err, apperrors.ErrTokenInvalid) || errors.Is(err, apperrors.ErrTokenExpired) {
			h.clearSessionCookie(w)
		}
		h.fail(w, r, err)
		return
	}

	h.setSessionCookie(w, result.Session)
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) refreshMobile(w http.ResponseWriter, r *http.Request) {
	type RefreshRequest struct {
		RefreshToken string `json:"refreshToken" validate:"notblank"`
		DeviceID     string `json:"deviceId" validate:"omitempty,printascii,max=128"`
	}
	type RefreshResponse struct {
		tokensResponse
		Timestamp time.Time `json:"timestamp"`
	}

	data, err := render.BindAndValidate[RefreshRequest](w, r)
	if err != nil {
		return
	}

	result, err := h.auth.Refresh(r.Context(), auth.RefreshRequest{
		RefreshToken: data.RefreshToken,
		DeviceID:     data.DeviceID,
		Security:     h.securityContext(r, data.DeviceID),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	render.JSON(w, RefreshResponse{
		tokensResponse: h.toTokensResponse(result.Tokens),
		Timestamp:      h.now(),
	})
}

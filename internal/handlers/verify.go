package handlers

import (
	"net/http"
	"time"

	"github.com/nkiryanov/authcore/internal/handlers/render"
	"github.com/nkiryanov/authcore/internal/service/auth"
)

func (h *AuthHandler) verifyToken(w http.ResponseWriter, r *http.Request) {
	type VerifyRequest struct {
		Token string `json:"token" validate:"notblank"`
		Type  string `json:"type" validate:"oneof=access refresh"`
	}
	type VerifyResponse struct {
		Valid     bool          `json:"valid"`
		Expired   bool          `json:"expired"`
		User      *userResponse `json:"user,omitempty"`
		Timestamp time.Time     `json:"timestamp"`
	}

	data, err := render.BindAndValidate[VerifyRequest](w, r)
	if err != nil {
		return
	}

	result, err := h.auth.Verify(r.Context(), auth.VerifyRequest{
		Token:    data.Token,
		Type:     auth.TokenType(data.Type),
		Security: h.securityContext(r, ""),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	response := VerifyResponse{
		Valid:     result.Valid,
		Expired:   result.Expired,
		Timestamp: h.now(),
	}
	if result.User != nil {
		u := toUserResponse(*result.User)
		response.User = &u
	}
	render.JSON(w, response)
}

package handlers

import (
	"net/http"
	"time"

	"github.com/nkiryanov/authcore/internal/handlers/render"
	"github.com/nkiryanov/authcore/internal/models"
	"github.com/nkiryanov/authcore/internal/service/auth"
)

func (h *AuthHandler) login(w http.ResponseWriter, r *http.Request) {
	type LoginRequest struct {
		Identifier  string `json:"identifier" validate:"notblank,max=254"`
		Password    string `json:"password" validate:"required,max=1024"`
		LoginMethod string `json:"loginMethod" validate:"oneof=email phone"`
		DeviceID    string `json:"deviceId" validate:"omitempty,printascii,max=128"`
	}
	type MobileResponse struct {
		tokensResponse
		ClientType models.ClientType `json:"clientType"`
		User       userResponse      `json:"user"`
		Timestamp  time.Time         `json:"timestamp"`
	}
	type WebResponse struct {
		ClientType models.ClientType `json:"clientType"`
		User       userResponse      `json:"user"`
		ExpiresIn  int               `json:"expiresIn"`
		Timestamp  time.Time         `json:"timestamp"`
	}

	data, err := render.BindAndValidate[LoginRequest](w, r)
	if err != nil {
		return
	}

	result, err := h.auth.Login(r.Context(), auth.LoginRequest{
		Identifier: data.Identifier,
		Password:   data.Password,
		Method:     models.LoginMethod(data.LoginMethod),
		Security:   h.securityContext(r, data.DeviceID),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if result.ClientType == models.ClientMobile {
		render.JSON(w, MobileResponse{
			tokensResponse: h.toTokensResponse(result.Tokens),
			ClientType:     result.ClientType,
			User:           toUserResponse(result.User),
			Timestamp:      h.now(),
		})
		return
	}

	h.setSessionCookie(w, result.Session)
	render.JSON(w, WebResponse{
		ClientType: result.ClientType,
		User:       toUserResponse(result.User),
		ExpiresIn:  int(result.Session.ExpiresAt.Sub(h.clock.Now()) / time.Second),
		Timestamp:  h.now(),
	})
}

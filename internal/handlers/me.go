package handlers

import (
	"net/http"
	"time"

	"github.com/nkiryanov/authcore/internal/handlers/render"
	"github.com/nkiryanov/authcore/internal/handlers/userctx"
)

func (h *AuthHandler) me(w http.ResponseWriter, r *http.Request) {
	type response struct {
		userResponse
		Timestamp time.Time `json:"timestamp"`
	}

	user, _ := userctx.FromContext(r.Context())
	render.JSON(w, response{userResponse: toUserResponse(user), Timestamp: h.now()})
}

package middleware

import (
	"context"
	"net/http"

	"github.com/nkiryanov/authcore/internal/handlers/render"
	"github.com/nkiryanov/authcore/internal/handlers/userctx"
	"github.com/nkiryanov/authcore/internal/models"
	"github.com/nkiryanov/authcore/internal/service/auth"
)

type authenticator interface {
	Authenticate(ctx context.Context, creds auth.Credentials) (models.User, error)
}

// AuthMiddleware lets through requests with valid bearer token or session cookie
// and puts the user into request context
func AuthMiddleware(as authenticator, cookieName string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := as.Authenticate(r.Context(), ReadCredentials(r, cookieName))
			if err != nil {
				render.AppError(w, err)
				return
			}
			ctx := userctx.New(r.Context(), user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

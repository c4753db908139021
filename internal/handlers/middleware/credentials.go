package middleware

import (
	"net/http"
	"strings"

	"github.com/nkiryanov/authcore/internal/service/auth"
)

const bearerPrefix = "Bearer "

// BearerToken returns token of the "Authorization: Bearer <token>" header or empty string
func BearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) < len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

// ReadCredentials collects bearer token and session cookie of the request.
// Bearer token wins when both are present.
func ReadCredentials(r *http.Request, cookieName string) auth.Credentials {
	if token := BearerToken(r); token != "" {
		return auth.Credentials{AccessToken: token}
	}

	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return auth.Credentials{}
	}
	return auth.Credentials{SessionID: cookie.Value}
}

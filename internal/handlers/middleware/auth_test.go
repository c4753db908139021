package middleware

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/nkiryanov/authcore/internal/apperrors"
	"github.com/nkiryanov/authcore/internal/handlers/userctx"
	"github.com/nkiryanov/authcore/internal/models"
	"github.com/nkiryanov/authcore/internal/service/auth"
)

// Allow to use a function as authenticator
type authFunc func(ctx context.Context, creds auth.Credentials) (models.User, error)

func (f authFunc) Authenticate(ctx context.Context, creds auth.Credentials) (models.User, error) {
	return f(ctx, creds)
}

func TestAuthMiddleware(t *testing.T) {
	userID := uuid.New()

	// Simple handler that writes id of the user from context
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Must always be true cause middleware has to set user to context or write error to response
		user, ok := userctx.FromContext(r.Context())
		require.True(t, ok)

		w.WriteHeader(http.StatusOK)
		_, err := w.Write([]byte(user.ID.String()))
		require.NoError(t, err, "should write user id to response")
	})

	do := func(t *testing.T, as authenticator, prepare func(r *http.Request)) (*http.Response, []byte) {
		srv := httptest.NewServer(AuthMiddleware(as, "sid")(handler))
		defer srv.Close()

		req, err := http.NewRequest(http.MethodGet, srv.URL+"/test", nil)
		require.NoError(t, err)
		prepare(req)

		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err, "should make request to test server")
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err, "should read response body")
		defer resp.Body.Close() // nolint:errcheck
		return resp, body
	}

	t.Run("bearer ok", func(t *testing.T) {
		var got auth.Credentials
		as := authFunc(func(_ context.Context, creds auth.Credentials) (models.User, error) {
			got = creds
			return models.User{ID: userID}, nil
		})

		resp, body := do(t, as, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer access-token")
			r.AddCookie(&http.Cookie{Name: "sid", Value: "session"})
		})

		require.Equalf(t, http.StatusOK, resp.StatusCode, "should return status OK. Resp: %s", string(body))
		require.Equal(t, userID.String(), string(body))
		require.Equal(t, auth.Credentials{AccessToken: "access-token"}, got, "bearer wins over cookie")
	})

	t.Run("cookie ok", func(t *testing.T) {
		var got auth.Credentials
		as := authFunc(func(_ context.Context, creds auth.Credentials) (models.User, error) {
			got = creds
			return models.User{ID: userID}, nil
		})

		resp, _ := do(t, as, func(r *http.Request) {
			r.AddCookie(&http.Cookie{Name: "sid", Value: "session"})
		})

		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, auth.Credentials{SessionID: "session"}, got)
	})

	t.Run("auth fail", func(t *testing.T) {
		tests := []struct {
			err     error
			status  int
			errType string
		}{
			{apperrors.ErrTokenInvalid, http.StatusUnauthorized, "token_invalid"},
			{apperrors.ErrTokenExpired, http.StatusUnauthorized, "token_expired"},
			{apperrors.ErrAccountInactive, http.StatusForbidden, "account_inactive"},
			{apperrors.Infrastructure(context.DeadlineExceeded), http.StatusServiceUnavailable, "infrastructure_error"},
		}

		for _, tc := range tests {
			t.Run(tc.errType, func(t *testing.T) {
				as := authFunc(func(context.Context, auth.Credentials) (models.User, error) {
					return models.User{}, tc.err
				})

				resp, body := do(t, as, func(*http.Request) {})

				require.Equalf(t, tc.status, resp.StatusCode, "Resp: %s", string(body))
				var got map[string]any
				require.NoError(t, json.Unmarshal(body, &got))
				require.Equal(t, tc.errType, got["error"])
				require.Contains(t, got, "timestamp")
			})
		}
	})
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Bearer abc", "abc"},
		{"bearer abc ", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"", ""},
	}

	for _, tc := range tests {
		t.Run(tc.header, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.header != "" {
				r.Header.Set("Authorization", tc.header)
			}
			require.Equal(t, tc.want, BearerToken(r))
		})
	}
}

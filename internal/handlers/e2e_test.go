package handlers

import (
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/nkiryanov/authcore/internal/clock"
	"github.com/nkiryanov/authcore/internal/logger"
	"github.com/nkiryanov/authcore/internal/models"
	"github.com/nkiryanov/authcore/internal/repository/postgres"
	"github.com/nkiryanov/authcore/internal/service/audit"
	"github.com/nkiryanov/authcore/internal/service/auth"
	"github.com/nkiryanov/authcore/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authcore/internal/service/auth/websession"
	"github.com/nkiryanov/authcore/internal/service/credentials"
	"github.com/nkiryanov/authcore/internal/service/ratelimit"
	"github.com/nkiryanov/authcore/internal/testutil"
)

// Full stack as the server runs it: postgres storage, redis limiter and sessions.
// Audit recorder writes from its own goroutine, so the pool is used instead of a test transaction
// and every test works with its own user.
func Test_AuthHandler_PostgresRedis(t *testing.T) {
	pg := testutil.StartPostgresContainer(t)
	t.Cleanup(pg.Terminate)
	_, rdb := testutil.StartRedis(t)

	storage := postgres.NewStorage(pg.Pool)

	validator, err := credentials.NewValidator(storage.User(), credentials.Options{
		Hasher: credentials.BcryptHasher{Cost: bcrypt.MinCost},
	})
	require.NoError(t, err)

	tokens, err := tokenmanager.New(tokenmanager.Config{SecretKey: "test-secret"}, storage)
	require.NoError(t, err)

	recorder := audit.NewRecorder(audit.NewRepoSink(storage.Audit()), audit.Config{})
	t.Cleanup(recorder.Close)

	s, err := auth.NewService(auth.Config{}, auth.Deps{
		Validator: validator,
		Tokens:    tokens,
		Sessions:  websession.NewService(websession.NewRedisStore(rdb, "", clock.Real), websession.Config{}),
		Limiter: ratelimit.NewRedisLimiter(rdb, ratelimit.Policies{
			ratelimit.EndpointLogin:   ratelimit.DefaultPolicy(),
			ratelimit.EndpointLoginIP: {Max: 0},
			ratelimit.EndpointRefresh: {Max: 0},
		}),
		Audit: recorder,
		Users: storage.User(),
	})
	require.NoError(t, err)

	srv := httptest.NewServer(NewRouter(NewAuth(s, CookieConfig{}, nil, nil), logger.NewNoOpLogger()))
	t.Cleanup(srv.Close)
	ts := &testServer{url: srv.URL, users: validator}

	newUser := func(t *testing.T) (models.User, string) {
		email := uuid.NewString() + "@example.com"
		user, err := validator.CreateUser(t.Context(), credentials.CreateUserParams{
			Email:      email,
			Password:   testPassword,
			IsActive:   true,
			IsVerified: true,
		})
		require.NoError(t, err)
		return user, `{"identifier": "` + email + `", "password": "` + testPassword + `", "loginMethod": "email", "deviceId": "phone"}`
	}

	auditActions := func(t *testing.T, userID uuid.UUID) []models.AuditAction {
		require.NoError(t, recorder.Flush(t.Context()))
		entries, err := storage.Audit().ListByUser(t.Context(), userID, 100)
		require.NoError(t, err)

		actions := make([]models.AuditAction, 0, len(entries))
		for _, e := range entries {
			actions = append(actions, e.Action)
		}
		return actions
	}

	t.Run("mobile rotation and reuse", func(t *testing.T) {
		user, login := newUser(t)

		first := ts.do(t, request{path: "/auth/login", mobile: true, body: login})
		require.Equalf(t, http.StatusOK, first.status, "Body: %s", first.raw)
		token := first.body["refreshToken"].(string)

		resp := ts.do(t, request{path: "/auth/refresh", mobile: true, body: `{"refreshToken": "` + token + `"}`})
		require.Equalf(t, http.StatusOK, resp.status, "Body: %s", resp.raw)
		successor := resp.body["refreshToken"].(string)

		resp = ts.do(t, request{path: "/auth/refresh", mobile: true, body: `{"refreshToken": "` + token + `"}`})
		require.Equal(t, http.StatusUnauthorized, resp.status)

		resp = ts.do(t, request{path: "/auth/refresh", mobile: true, body: `{"refreshToken": "` + successor + `"}`})
		require.Equal(t, http.StatusUnauthorized, resp.status, "reuse revokes successor")

		actions := auditActions(t, user.ID)
		require.Contains(t, actions, models.ActionLoginSuccess)
		require.Contains(t, actions, models.ActionTokenRefresh)
		require.Contains(t, actions, models.ActionRefreshTokenReused)
	})

	t.Run("web session in redis", func(t *testing.T) {
		user, login := newUser(t)

		resp := ts.do(t, request{path: "/auth/login", body: login})
		require.Equalf(t, http.StatusOK, resp.status, "Body: %s", resp.raw)
		cookie := resp.cookie(DefaultCookieName)
		require.NotNil(t, cookie)

		me := ts.do(t, request{method: http.MethodGet, path: "/auth/me", session: cookie.Value})
		require.Equalf(t, http.StatusOK, me.status, "Body: %s", me.raw)
		require.Equal(t, user.ID.String(), me.body["id"])

		resp = ts.do(t, request{path: "/auth/logout", session: cookie.Value})
		require.Equal(t, http.StatusNoContent, resp.status)

		me = ts.do(t, request{method: http.MethodGet, path: "/auth/me", session: cookie.Value})
		require.Equal(t, http.StatusUnauthorized, me.status)

		actions := auditActions(t, user.ID)
		require.True(t, slices.Contains(actions, models.ActionLoginSuccess))
		require.True(t, slices.Contains(actions, models.ActionLogout))
	})
}

package handlers

import (
	"net/http"

	"github.com/nkiryanov/authcore/internal/handlers/middleware"
	"github.com/nkiryanov/authcore/internal/logger"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

// Handler mounts auth endpoints under /auth
func (h *AuthHandler) Handler() http.Handler {
	authMiddleware := middleware.AuthMiddleware(h.auth, h.cookie.Name)

	mux := http.NewServeMux()
	mux.HandleFunc("POST /login", h.login)
	mux.HandleFunc("POST /refresh", h.refresh)
	mux.HandleFunc("POST /verify-token", h.verifyToken)
	mux.HandleFunc("POST /logout", h.logout)
	mux.Handle("POST /logout-all", authMiddleware(http.HandlerFunc(h.logoutAll)))
	mux.Handle("GET /me", authMiddleware(http.HandlerFunc(h.me)))

	return mux
}

func NewRouter(authHandler *AuthHandler, logger logger.Logger) http.Handler {
	root := http.NewServeMux()
	root.Handle("/auth/", http.StripPrefix("/auth", authHandler.Handler()))
	root.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	return chain(root,
		middleware.LoggerMiddleware(logger),
	)
}

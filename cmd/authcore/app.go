package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nkiryanov/authcore/internal/clock"
	"github.com/nkiryanov/authcore/internal/db"
	"github.com/nkiryanov/authcore/internal/handlers"
	"github.com/nkiryanov/authcore/internal/logger"
	"github.com/nkiryanov/authcore/internal/repository"
	"github.com/nkiryanov/authcore/internal/repository/memory"
	"github.com/nkiryanov/authcore/internal/repository/postgres"
	"github.com/nkiryanov/authcore/internal/service/audit"
	"github.com/nkiryanov/authcore/internal/service/auth"
	"github.com/nkiryanov/authcore/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authcore/internal/service/auth/websession"
	"github.com/nkiryanov/authcore/internal/service/credentials"
	"github.com/nkiryanov/authcore/internal/service/janitor"
	"github.com/nkiryanov/authcore/internal/service/ratelimit"
)

const shutdownTimeout = 5 * time.Second

type ServerApp struct {
	ListenAddr string
	Handler    http.Handler

	logger   logger.Logger
	recorder *audit.Recorder
	janitor  *janitor.Janitor

	// Release connections, called after the server stopped
	closers []func()
}

func NewServerApp(ctx context.Context, c *Config) (_ *ServerApp, err error) {
	app := &ServerApp{ListenAddr: c.ListenAddr}
	defer func() {
		if err != nil {
			app.close()
		}
	}()

	// Initialize logger
	app.logger, err = logger.New(c.Environment, c.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("error while initializing logger: %w", err)
	}

	storage, err := app.openStorage(ctx, c)
	if err != nil {
		return nil, err
	}

	rdb, err := app.openRedis(ctx, c)
	if err != nil {
		return nil, err
	}

	// Rate limiter and session store live in redis when it is configured
	policies := ratelimit.Policies{
		ratelimit.EndpointLogin:   {Max: c.LoginMaxAttempts, Window: c.LoginWindow},
		ratelimit.EndpointLoginIP: {Max: c.IPThrottle, Window: c.LoginWindow},
		ratelimit.EndpointRefresh: {Max: c.IPThrottle, Window: c.LoginWindow},
	}
	var (
		limiter  ratelimit.Limiter
		store    websession.Store
		sweepers []janitor.Sweeper
	)
	if rdb != nil {
		limiter = ratelimit.NewRedisLimiter(rdb, policies)
		store = websession.NewRedisStore(rdb, "", clock.Real)
	} else {
		memLimiter := ratelimit.NewMemoryLimiter(clock.Real, policies)
		memStore := websession.NewMemoryStore(clock.Real)
		limiter, store = memLimiter, memStore
		sweepers = append(sweepers, memLimiter, memStore)
	}

	// Initialize services
	validator, err := credentials.NewValidator(storage.User(), credentials.DefaultOptions())
	if err != nil {
		return nil, fmt.Errorf("error while creating credential validator. Err: %w", err)
	}

	tokens, err := tokenmanager.New(tokenmanager.Config{
		SecretKey:  c.SecretKey,
		AccessTTL:  c.AccessTTL,
		RefreshTTL: c.RefreshTTL,
	}, storage)
	if err != nil {
		return nil, fmt.Errorf("error while creating token manager. Err: %w", err)
	}

	app.recorder = audit.NewRecorder(
		audit.MultiSink{audit.NewRepoSink(storage.Audit()), audit.NewLoggerSink(app.logger)},
		audit.Config{BufferSize: c.AuditBuffer},
	)
	app.closers = append(app.closers, app.recorder.Close)

	authService, err := auth.NewService(auth.Config{IOTimeout: c.IOTimeout}, auth.Deps{
		Validator: validator,
		Tokens:    tokens,
		Sessions:  websession.NewService(store, websession.Config{TTL: c.SessionTTL}),
		Limiter:   limiter,
		Audit:     app.recorder,
		Users:     storage.User(),
		Logger:    app.logger,
	})
	if err != nil {
		return nil, fmt.Errorf("error while creating auth service. Err: %w", err)
	}

	app.janitor = janitor.New(janitor.Config{
		Interval: c.JanitorInterval,
		Grace:    c.RefreshGrace,
	}, app.logger.With("component", "janitor"), tokens, sweepers...)

	authHandler := handlers.NewAuth(authService, handlers.CookieConfig{Secure: c.CookieSecure}, clock.Real, app.logger)
	app.Handler = handlers.NewRouter(authHandler, app.logger)

	return app, nil
}

// Postgres when dsn is set, process memory otherwise
func (s *ServerApp) openStorage(ctx context.Context, c *Config) (repository.Storage, error) {
	if c.DatabaseDSN == "" {
		s.logger.Warn("DATABASE_URI is not set, using in-memory storage")
		return memory.NewStorage(), nil
	}

	// Connect to the database and run migrations
	pool, err := db.ConnectAndMigrate(ctx, c.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("error while connecting to db. Err: %w", err)
	}
	s.closers = append(s.closers, pool.Close)

	return postgres.NewStorage(pool), nil
}

// Redis client or nil when not configured
func (s *ServerApp) openRedis(ctx context.Context, c *Config) (*redis.Client, error) {
	if c.RedisURL == "" {
		s.logger.Warn("REDIS_URL is not set, rate limits and sessions kept in memory")
		return nil, nil
	}

	opts, err := redis.ParseURL(c.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url. Err: %w", err)
	}
	rdb := redis.NewClient(opts)
	s.closers = append(s.closers, func() { _ = rdb.Close() })

	pingCtx, cancel := context.WithTimeout(ctx, c.IOTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("redis is not reachable. Err: %w", err)
	}

	return rdb, nil
}

// Release in reverse order: recorder flushes into storage before the pool goes
func (s *ServerApp) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Report audit sink failures until ctx is done
func (s *ServerApp) drainAuditErrors(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case err := <-s.recorder.Errors():
			s.logger.Error("Audit entry not written", "error", err)
		}
	}
}

// Run starts http server and closes gracefully on context cancellation
func (s *ServerApp) Run(ctx context.Context) error {
	defer s.close()

	httpServer := &http.Server{
		Addr:              s.ListenAddr,
		Handler:           s.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	idleConnsClosed := make(chan struct{})
	srvCtx, srvCtxCancel := context.WithCancel(ctx)
	defer srvCtxCancel()

	janitorStopped := s.janitor.Run(srvCtx)
	go s.drainAuditErrors(srvCtx)

	go func() {
		<-srvCtx.Done()

		timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(timeoutCtx); errors.Is(err, context.DeadlineExceeded) {
			s.logger.Error("HTTP server shutdown timeout exceeded, forcing shutdown...")
		}
		s.logger.Info("HTTP server stopped")
		close(idleConnsClosed)
	}()

	// Listen and serve until context is cancelled; then close gracefully connections
	s.logger.Info("Starting server", "address", s.ListenAddr)
	err := httpServer.ListenAndServe()
	srvCtxCancel()
	<-idleConnsClosed
	<-janitorStopped

	stats := s.recorder.Stats()
	s.logger.Info("Audit recorder stats", "recorded", stats.Recorded, "dropped", stats.Dropped, "failed", stats.Failed)

	return err
}

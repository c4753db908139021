package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/nkiryanov/authcore/internal/logger"
	"github.com/nkiryanov/authcore/internal/service/audit"
	"github.com/nkiryanov/authcore/internal/service/auth/tokenmanager"
	"github.com/nkiryanov/authcore/internal/service/auth/websession"
	"github.com/nkiryanov/authcore/internal/service/ratelimit"
)

const (
	defaultListenAddr      = "localhost:8000"
	defaultLoggingLevel    = logger.LevelInfo
	defaultEnvironment     = logger.EnvProduction
	defaultIOTimeout       = 3 * time.Second
	defaultRefreshGrace    = 24 * time.Hour
	defaultJanitorInterval = 10 * time.Minute
	defaultIPThrottle      = 50
)

type Config struct {
	// Default logging level
	LogLevel string

	// Address on which the auth service will be run
	ListenAddr string

	// Database to connect to
	// In-memory storage is used if empty
	DatabaseDSN string

	// Redis url (redis://...) for rate limit counters and browser sessions
	// In-memory state is used if empty
	RedisURL string

	// Secret key to sign JWT tokens with
	SecretKey string

	// Environment
	Environment string

	// Token and session lifetimes
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	SessionTTL time.Duration

	// Login attempts allowed per identifier within the window
	LoginMaxAttempts int
	LoginWindow      time.Duration

	// Login and refresh attempts allowed per client ip within the login window. Zero disables.
	IPThrottle int

	// Bound for every storage, limiter and session store call
	IOTimeout time.Duration

	// Set Secure attribute of the session cookie
	CookieSecure bool

	// Audit entries buffered before dropping
	AuditBuffer int

	// Expired refresh tokens are kept this long before the janitor purges them
	RefreshGrace    time.Duration
	JanitorInterval time.Duration
}

func NewConfig() *Config {
	return &Config{
		LogLevel:         defaultLoggingLevel,
		ListenAddr:       defaultListenAddr,
		Environment:      defaultEnvironment,
		AccessTTL:        tokenmanager.DefaultAccessTTL,
		RefreshTTL:       tokenmanager.DefaultRefreshTTL,
		SessionTTL:       websession.DefaultTTL,
		LoginMaxAttempts: ratelimit.DefaultMaxAttempts,
		LoginWindow:      ratelimit.DefaultWindow,
		IPThrottle:       defaultIPThrottle,
		IOTimeout:        defaultIOTimeout,
		CookieSecure:     true,
		AuditBuffer:      audit.DefaultBufferSize,
		RefreshGrace:     defaultRefreshGrace,
		JanitorInterval:  defaultJanitorInterval,
	}
}

// Load variable from '.env' file (should be located at working directory)
func (c *Config) LoadDotEnv(getwd func() (string, error)) error {
	wd, err := getwd()
	if err != nil {
		return err
	}

	envMap, err := godotenv.Read(filepath.Join(wd, ".env"))

	switch {
	case err == nil:
		return c.LoadEnv(func(key string) string {
			return envMap[key]
		})
	case errors.Is(err, os.ErrNotExist):
		return nil
	default:
		return err
	}
}

func (c *Config) LoadEnv(getenv func(string) string) error {
	// Set option to value if it not empty
	setString := func(o *string) func(value string) error {
		return func(value string) error {
			*o = value
			return nil
		}
	}
	setDuration := func(o *time.Duration) func(value string) error {
		return func(value string) (err error) {
			*o, err = time.ParseDuration(value)
			return err
		}
	}
	setInt := func(o *int) func(value string) error {
		return func(value string) (err error) {
			*o, err = strconv.Atoi(value)
			return err
		}
	}
	setBool := func(o *bool) func(value string) error {
		return func(value string) (err error) {
			*o, err = strconv.ParseBool(value)
			return err
		}
	}

	envMap := map[string]func(string) error{
		"RUN_ADDRESS":        setString(&c.ListenAddr),
		"DATABASE_URI":       setString(&c.DatabaseDSN),
		"REDIS_URL":          setString(&c.RedisURL),
		"SECRET_KEY":         setString(&c.SecretKey),
		"LOG_LEVEL":          setString(&c.LogLevel),
		"ENVIRONMENT":        setString(&c.Environment),
		"ACCESS_TTL":         setDuration(&c.AccessTTL),
		"REFRESH_TTL":        setDuration(&c.RefreshTTL),
		"SESSION_TTL":        setDuration(&c.SessionTTL),
		"LOGIN_MAX_ATTEMPTS": setInt(&c.LoginMaxAttempts),
		"LOGIN_WINDOW":       setDuration(&c.LoginWindow),
		"IP_THROTTLE":        setInt(&c.IPThrottle),
		"IO_TIMEOUT":         setDuration(&c.IOTimeout),
		"COOKIE_SECURE":      setBool(&c.CookieSecure),
		"AUDIT_BUFFER":       setInt(&c.AuditBuffer),
		"REFRESH_GRACE":      setDuration(&c.RefreshGrace),
		"JANITOR_INTERVAL":   setDuration(&c.JanitorInterval),
	}

	var errs []error
	for key, parseFn := range envMap {
		value := getenv(key)
		if value == "" {
			continue
		}
		if err := parseFn(value); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", key, err))
		}
	}

	return errors.Join(errs...)
}

func (c *Config) ParseFlags(args []string) error {
	fs := pflag.NewFlagSet("authcore", pflag.ContinueOnError)

	fs.StringVarP(&c.ListenAddr, "address", "a", c.ListenAddr, "Server listen address")
	fs.StringVarP(&c.DatabaseDSN, "database", "d", c.DatabaseDSN, "Database connection string, in-memory storage if empty")
	fs.StringVarP(&c.RedisURL, "redis", "r", c.RedisURL, "Redis url, in-memory limiter and sessions if empty")
	fs.StringVarP(&c.SecretKey, "secret-key", "s", c.SecretKey, "Secret key")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "Logging level (debug, info, warn, error)")
	fs.StringVarP(&c.Environment, "environment", "e", c.Environment, "Environment (development, production)")
	fs.DurationVar(&c.AccessTTL, "access-ttl", c.AccessTTL, "Access token lifetime")
	fs.DurationVar(&c.RefreshTTL, "refresh-ttl", c.RefreshTTL, "Refresh token lifetime")
	fs.DurationVar(&c.SessionTTL, "session-ttl", c.SessionTTL, "Browser session lifetime")
	fs.IntVar(&c.LoginMaxAttempts, "login-max-attempts", c.LoginMaxAttempts, "Login attempts per identifier within the window")
	fs.DurationVar(&c.LoginWindow, "login-window", c.LoginWindow, "Login rate limit window")
	fs.IntVar(&c.IPThrottle, "ip-throttle", c.IPThrottle, "Attempts per client ip within the window, 0 disables")
	fs.DurationVar(&c.IOTimeout, "io-timeout", c.IOTimeout, "Timeout of every storage call")
	fs.BoolVar(&c.CookieSecure, "cookie-secure", c.CookieSecure, "Send session cookie over https only")
	fs.IntVar(&c.AuditBuffer, "audit-buffer", c.AuditBuffer, "Audit entries buffered before dropping")
	fs.DurationVar(&c.RefreshGrace, "refresh-grace", c.RefreshGrace, "Keep expired refresh tokens this long")
	fs.DurationVar(&c.JanitorInterval, "janitor-interval", c.JanitorInterval, "Interval of expired state cleanup")

	return fs.Parse(args)
}

func (c *Config) Validate() error {
	var errs []error

	if c.SecretKey == "" {
		errs = append(errs, errors.New("secret key must be set"))
	}
	for name, ttl := range map[string]time.Duration{
		"access ttl":       c.AccessTTL,
		"refresh ttl":      c.RefreshTTL,
		"session ttl":      c.SessionTTL,
		"login window":     c.LoginWindow,
		"io timeout":       c.IOTimeout,
		"janitor interval": c.JanitorInterval,
	} {
		if ttl <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive, got %s", name, ttl))
		}
	}
	if c.AccessTTL >= c.RefreshTTL {
		errs = append(errs, errors.New("access ttl must be shorter than refresh ttl"))
	}
	if c.LoginMaxAttempts <= 0 {
		errs = append(errs, fmt.Errorf("login max attempts must be positive, got %d", c.LoginMaxAttempts))
	}
	if c.IPThrottle < 0 {
		errs = append(errs, fmt.Errorf("ip throttle must not be negative, got %d", c.IPThrottle))
	}
	if c.RefreshGrace < 0 {
		errs = append(errs, fmt.Errorf("refresh grace must not be negative, got %s", c.RefreshGrace))
	}

	return errors.Join(errs...)
}

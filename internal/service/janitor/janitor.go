// Package janitor periodically removes state nobody can use anymore:
// expired refresh tokens and closed rate limit windows or expired sessions kept in memory.
package janitor

import (
	"context"
	"time"

	"github.com/nkiryanov/authcore/internal/clock"
	"github.com/nkiryanov/authcore/internal/logger"
)

const (
	defaultInterval = 10 * time.Minute
	defaultGrace    = 24 * time.Hour
)

type tokenPurger interface {
	PurgeExpired(ctx context.Context, before time.Time) (int, error)
}

// In-memory state that drops its stale entries
type Sweeper interface {
	Sweep() int
}

type Config struct {
	Interval time.Duration // defaultInterval if zero

	// Expired tokens are kept this long so a late replay is still reported as expired
	Grace time.Duration

	Clock clock.Clock // clock.Real if nil
}

type Janitor struct {
	interval time.Duration
	grace    time.Duration
	clock    clock.Clock
	logger   logger.Logger
	tokens   tokenPurger
	sweepers []Sweeper
}

func New(cfg Config, logger logger.Logger, tokens tokenPurger, sweepers ...Sweeper) *Janitor {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Grace <= 0 {
		cfg.Grace = defaultGrace
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real
	}

	return &Janitor{
		interval: cfg.Interval,
		grace:    cfg.Grace,
		clock:    cfg.Clock,
		logger:   logger,
		tokens:   tokens,
		sweepers: sweepers,
	}
}

// Run cleans up on every tick until ctx is done.
// Returned channel is closed when the janitor stopped.
func (j *Janitor) Run(ctx context.Context) <-chan struct{} {
	idleStopped := make(chan struct{})
	j.logger.Debug("Starting janitor", "interval", j.interval, "grace", j.grace)

	go func() {
		defer close(idleStopped)

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				j.logger.Debug("Janitor stopped by context")
				return

			case <-ticker.C:
				j.Clean(ctx)
			}
		}
	}()

	return idleStopped
}

// Clean runs one cleanup pass
func (j *Janitor) Clean(ctx context.Context) {
	if j.tokens != nil {
		ctx, cancel := context.WithTimeout(ctx, j.interval)
		purged, err := j.tokens.PurgeExpired(ctx, j.clock.Now().Add(-j.grace))
		cancel()

		if err != nil {
			j.logger.Error("Failed to purge expired refresh tokens", "error", err)
		} else if purged > 0 {
			j.logger.Info("Expired refresh tokens purged", "count", purged)
		}
	}

	for _, s := range j.sweepers {
		if n := s.Sweep(); n > 0 {
			j.logger.Debug("Stale entries swept", "count", n)
		}
	}
}

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/nkiryanov/authcore/internal/clock"
)

type bucket struct {
	windowStart time.Time
	window      time.Duration
	count       int
}

func (b *bucket) closed(now time.Time) bool {
	return !now.Before(b.windowStart.Add(b.window))
}

// MemoryLimiter keeps counters of a single process.
type MemoryLimiter struct {
	mu       sync.Mutex
	clock    clock.Clock
	policies Policies
	buckets  map[string]*bucket
}

func NewMemoryLimiter(clk clock.Clock, policies Policies) *MemoryLimiter {
	return &MemoryLimiter{
		clock:    clk,
		policies: policies,
		buckets:  make(map[string]*bucket),
	}
}

func (l *MemoryLimiter) Admit(ctx context.Context, key string, endpoint string) (Decision, error) {
	policy, err := l.policies.lookup(endpoint)
	if err != nil {
		return Decision{}, err
	}
	if policy.Max <= 0 {
		return Decision{Allowed: true}, nil
	}

	now := l.clock.Now()
	k := bucketKey(endpoint, key)

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[k]
	if !ok || b.closed(now) {
		b = &bucket{windowStart: now, window: policy.Window}
		l.buckets[k] = b
	}
	b.count++

	d := Decision{
		Count:   b.count,
		Allowed: b.count <= policy.Max,
	}
	if !d.Allowed {
		d.RetryAfter = b.windowStart.Add(b.window).Sub(now)
	}

	return d, nil
}

// Sweep drops buckets with closed windows and returns how many were dropped
func (l *MemoryLimiter) Sweep() int {
	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	count := 0
	for k, b := range l.buckets {
		if b.closed(now) {
			delete(l.buckets, k)
			count++
		}
	}
	return count
}

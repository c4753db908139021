// Package ratelimit counts attempts per key in fixed windows.
package ratelimit

import (
	"context"
	"fmt"
	"time"
)

// Endpoints with their own budgets
const (
	EndpointLogin   = "login"
	EndpointLoginIP = "login-ip"
	EndpointRefresh = "refresh"
)

const (
	DefaultMaxAttempts = 5
	DefaultWindow      = 15 * time.Minute
)

// Policy allows Max attempts per Window. Zero Max disables limiting.
type Policy struct {
	Max    int
	Window time.Duration
}

func DefaultPolicy() Policy {
	return Policy{Max: DefaultMaxAttempts, Window: DefaultWindow}
}

type Decision struct {
	Allowed bool
	Count   int // attempts in the current window, this one included

	// Time until the window closes; set when not allowed
	RetryAfter time.Duration
}

// Limiter records an attempt and tells whether it is within the budget.
// Every call counts, denied ones included.
type Limiter interface {
	Admit(ctx context.Context, key string, endpoint string) (Decision, error)
}

type Policies map[string]Policy

func (p Policies) lookup(endpoint string) (Policy, error) {
	policy, ok := p[endpoint]
	if !ok {
		return Policy{}, fmt.Errorf("no rate limit policy for endpoint %q", endpoint)
	}
	return policy, nil
}

func bucketKey(endpoint string, key string) string {
	return "rl:" + endpoint + ":" + key
}

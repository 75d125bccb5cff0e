// Copyright 2024 RouteCodex Authors. All rights reserved.
// Use of this source code is governed by an MIT-style license that can be
// found in the LICENSE file.

// Package retry implements a small exponential/linear backoff retryer
// shared by the OAuth refresh flow and the upstream HTTP client.
package retry

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"time"

	"go.uber.org/zap"
)

// Policy configures a Retryer's attempt count and delay curve.
type Policy struct {
	MaxRetries   int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	// Multiplier drives exponential backoff when > 1; set to 1 for a
	// flat linear backoff of InitialDelay * attempt, matching the OAuth
	// refresh policy's "backoff = attempt * 1s".
	Multiplier float64
	Jitter     bool
	OnRetry    func(attempt int, err error, delay time.Duration)
}

// DefaultPolicy is a sensible default for upstream HTTP calls: 3 retries,
// exponential backoff starting at 1s, capped at 30s, with jitter.
func DefaultPolicy() *Policy {
	return &Policy{
		MaxRetries:   3,
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		Jitter:       true,
	}
}

// LinearPolicy matches the OAuth refresh spec: up to maxRetries retries
// after the first attempt, delay = attempt * step.
func LinearPolicy(maxRetries int, step time.Duration) *Policy {
	return &Policy{
		MaxRetries:   maxRetries,
		InitialDelay: step,
		MaxDelay:     step * time.Duration(maxRetries+1),
		Multiplier:   1,
	}
}

// Retryer executes a function with the configured backoff between
// failed attempts, stopping early on context cancellation.
type Retryer struct {
	policy *Policy
	logger *zap.Logger
}

// New builds a Retryer. A nil policy uses DefaultPolicy; a nil logger is
// replaced with a no-op logger.
func New(policy *Policy, logger *zap.Logger) *Retryer {
	if policy == nil {
		policy = DefaultPolicy()
	}
	if policy.MaxRetries < 0 {
		policy.MaxRetries = 0
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = time.Second
	}
	if policy.MaxDelay <= 0 {
		policy.MaxDelay = 30 * time.Second
	}
	if policy.Multiplier < 1.0 {
		policy.Multiplier = 1.0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Retryer{policy: policy, logger: logger}
}

// Do runs fn, retrying per the policy while isRetryable(err) is true (or
// isRetryable is nil, in which case every error is retried).
func (r *Retryer) Do(ctx context.Context, isRetryable func(error) bool, fn func() error) error {
	var lastErr error

	for attempt := 0; attempt <= r.policy.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.calculateDelay(attempt)
			if r.policy.OnRetry != nil {
				r.policy.OnRetry(attempt, lastErr, delay)
			}
			select {
			case <-ctx.Done():
				return fmt.Errorf("retry cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if isRetryable != nil && !isRetryable(lastErr) {
			return lastErr
		}
		if attempt >= r.policy.MaxRetries {
			break
		}
	}

	return fmt.Errorf("failed after %d attempts: %w", r.policy.MaxRetries+1, lastErr)
}

func (r *Retryer) calculateDelay(attempt int) time.Duration {
	delay := float64(r.policy.InitialDelay) * math.Pow(r.policy.Multiplier, float64(attempt-1))
	if r.policy.Multiplier == 1 {
		delay = float64(r.policy.InitialDelay) * float64(attempt)
	}
	if delay > float64(r.policy.MaxDelay) {
		delay = float64(r.policy.MaxDelay)
	}
	if r.policy.Jitter {
		jitter := delay * 0.25
		delay += (rand.Float64()*2 - 1) * jitter
	}
	if delay < float64(r.policy.InitialDelay) {
		delay = float64(r.policy.InitialDelay)
	}
	return time.Duration(delay)
}

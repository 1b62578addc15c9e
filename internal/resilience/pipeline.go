/*
 * Copyright 2025 Cong Wang
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package resilience implements the HTTP Resilience Pipeline (§4.5): a
// policy wrapper composed, innermost-first, as Timeout → Retry →
// CircuitBreaker around an outbound call. One Pipeline is created per
// tenant HTTP client so failures in one tenant cannot trip another's
// breaker.
package resilience

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"
)

// Attempt is a single outbound call. It returns whether the outcome is
// retryable (per the §4.5 taxonomy) alongside any error.
type Attempt func(ctx context.Context) (retryable bool, err error)

// Config configures a tenant-scoped Pipeline.
type Config struct {
	Timeout                      time.Duration
	MaxRetries                   int
	CircuitBreakerFailureThreshold int
	CircuitBreakerRecoveryTimeout  time.Duration
}

// ErrBreakerOpen is returned when the circuit breaker is open and the
// call fails fast without attempting the outbound call.
var ErrBreakerOpen = errors.New("resilience: circuit breaker open")

type breakerState int

const (
	stateClosed breakerState = iota
	stateOpen
	stateHalfOpen
)

// Pipeline wraps an Attempt with timeout, retry-with-backoff, and
// circuit-breaker policies, as described in §4.5.
type Pipeline struct {
	cfg Config

	mu          sync.Mutex
	state       breakerState
	failures    int
	openedAt    time.Time
}

// New creates a Pipeline for a single tenant HTTP client.
func New(cfg Config) *Pipeline {
	return &Pipeline{cfg: cfg, state: stateClosed}
}

// Run executes attempt, applying the Timeout → Retry → CircuitBreaker
// policy stack. It returns the last attempt's error (if any) and whether
// the caller should treat the overall outcome as transient.
func (p *Pipeline) Run(ctx context.Context, attempt Attempt) (transient bool, err error) {
	if !p.allowRequest() {
		return true, ErrBreakerOpen
	}

	var lastErr error
	var lastRetryable bool

	maxAttempts := p.cfg.MaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	for i := 1; i <= maxAttempts; i++ {
		retryable, err := p.runOnce(ctx, attempt)
		lastErr = err
		lastRetryable = retryable

		if err == nil {
			p.recordSuccess()
			return false, nil
		}

		if !retryable || i == maxAttempts {
			break
		}

		select {
		case <-time.After(backoff(i)):
		case <-ctx.Done():
			p.recordFailure()
			return true, ctx.Err()
		}
	}

	p.recordFailure()
	return lastRetryable, lastErr
}

// runOnce bounds a single attempt by the configured timeout.
func (p *Pipeline) runOnce(ctx context.Context, attempt Attempt) (bool, error) {
	if p.cfg.Timeout <= 0 {
		return attempt(ctx)
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	retryable, err := attempt(timeoutCtx)
	if err == nil {
		return false, nil
	}
	if errors.Is(timeoutCtx.Err(), context.DeadlineExceeded) {
		return true, timeoutCtx.Err()
	}
	return retryable, err
}

// backoff computes 2^attempt seconds plus 0-1000ms uniform jitter (§4.5).
func backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	jitter := time.Duration(rand.Intn(1000)) * time.Millisecond
	return base + jitter
}

// allowRequest reports whether the breaker permits an outbound call,
// transitioning open → half-open once the recovery timeout has elapsed.
func (p *Pipeline) allowRequest() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch p.state {
	case stateClosed:
		return true
	case stateOpen:
		if time.Since(p.openedAt) >= p.cfg.CircuitBreakerRecoveryTimeout {
			p.state = stateHalfOpen
			return true
		}
		return false
	case stateHalfOpen:
		return true
	default:
		return true
	}
}

func (p *Pipeline) recordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failures = 0
	p.state = stateClosed
}

func (p *Pipeline) recordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == stateHalfOpen {
		p.state = stateOpen
		p.openedAt = time.Now()
		return
	}

	p.failures++
	threshold := p.cfg.CircuitBreakerFailureThreshold
	if threshold <= 0 {
		threshold = 1
	}
	if p.failures >= threshold {
		p.state = stateOpen
		p.openedAt = time.Now()
	}
}

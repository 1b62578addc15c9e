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

// Package ratelimit implements the Tenant Rate Limiter (§4.3): a
// per-tenant discrete counting semaphore guarding the HTTP channel's
// outbound send rate. Capacity equals the tenant's configured
// MaxRequestsPerSecond; each successful acquire schedules its own token
// return exactly 1s later, rather than refilling continuously, so a
// burst of acquires can't borrow against a window that hasn't elapsed
// yet. Buckets are created lazily on first use and reclaimed after a
// period of inactivity so a directory of many tenants doesn't leak
// memory for ones that rarely send.
package ratelimit

import (
	"sync"
	"time"
)

const (
	defaultIdleTTL    = 10 * time.Minute
	defaultSweepEvery = 5 * time.Minute
)

// entry is one tenant's counting semaphore: available starts at
// capacity and is decremented by tryAcquire, each decrement scheduling
// its own return via time.AfterFunc(1s, ...). lastUsedAt lets the sweep
// loop reclaim buckets nobody has used recently.
type entry struct {
	mu         sync.Mutex
	available  int
	capacity   int
	lastUsedAt time.Time
}

// tryAcquire implements §4.3's tryAcquire(tenantKey): non-blocking,
// either takes a token and schedules its return in 1s, or rejects
// immediately.
func (e *entry) tryAcquire() bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.available <= 0 {
		return false
	}
	e.available--
	time.AfterFunc(time.Second, e.release)
	return true
}

// release returns one token to the bucket, capped at capacity.
func (e *entry) release() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.available < e.capacity {
		e.available++
	}
}

// Limiter enforces a configurable requests-per-second ceiling per tenant.
type Limiter struct {
	mu       sync.Mutex
	buckets  map[string]*entry
	idleTTL  time.Duration
	sweepInt time.Duration
	stop     chan struct{}
}

// New creates a Limiter and starts its idle-bucket sweep goroutine.
func New() *Limiter {
	l := &Limiter{
		buckets:  make(map[string]*entry),
		idleTTL:  defaultIdleTTL,
		sweepInt: defaultSweepEvery,
		stop:     make(chan struct{}),
	}
	go l.sweepLoop()
	return l
}

// Allow reports whether the tenant identified by subscriptionKey may send
// now, given its configured requests-per-second limit. A limit of zero
// means unlimited (no bucket is created).
func (l *Limiter) Allow(subscriptionKey string, requestsPerSecond int) bool {
	if requestsPerSecond <= 0 {
		return true
	}

	l.mu.Lock()
	e, exists := l.buckets[subscriptionKey]
	if !exists {
		e = &entry{available: requestsPerSecond, capacity: requestsPerSecond}
		l.buckets[subscriptionKey] = e
	}
	e.lastUsedAt = time.Now()
	l.mu.Unlock()

	return e.tryAcquire()
}

// sweepLoop periodically reclaims buckets idle past idleTTL.
func (l *Limiter) sweepLoop() {
	ticker := time.NewTicker(l.sweepInt)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep()
		case <-l.stop:
			return
		}
	}
}

func (l *Limiter) sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, e := range l.buckets {
		if now.Sub(e.lastUsedAt) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
}

// Stop terminates the sweep goroutine.
func (l *Limiter) Stop() {
	close(l.stop)
}

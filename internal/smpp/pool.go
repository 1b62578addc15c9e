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

package smpp

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/linxGnu/gosmpp/pdu"

	"messagehub/internal/config"
	"messagehub/internal/logging"
)

// ErrPoolExhausted is returned when no client became available within
// the configured connect timeout.
var ErrPoolExhausted = fmt.Errorf("smpp: no connection available within timeout")

// Pool is a per-tenant pool of bound SMPP clients (§4.7), created (and
// pre-warmed) together with the tenant's SMPP Channel when the router is
// built at startup, not on the tenant's first submit; it is disposed on
// shutdown. deliverSM is invoked
// for every deliver_sm PDU received on any client in the pool, wired by
// the caller to the tenant's DLR Correlator.
type Pool struct {
	tenantKey string
	cfg       config.SMPPChannelConfig
	logger    *logging.Logger
	deliverSM func(*pdu.DeliverSM)

	// dialFn creates one new bound client; overridden in tests to avoid
	// dialing a real SMSC.
	dialFn func(config.SMPPChannelConfig, func(*pdu.DeliverSM)) (Client, error)

	mu     sync.Mutex
	idle   []Client
	size   int
	closed bool
}

// NewPool creates a tenant's pool and pre-warms Pool.Min clients.
func NewPool(tenantKey string, cfg config.SMPPChannelConfig, deliverSM func(*pdu.DeliverSM), logger *logging.Logger) *Pool {
	p := &Pool{
		tenantKey: tenantKey,
		cfg:       cfg,
		deliverSM: deliverSM,
		logger:    logger.WithComponent("smpp_pool").WithField("tenant", tenantKey),
		dialFn: func(cfg config.SMPPChannelConfig, deliverSM func(*pdu.DeliverSM)) (Client, error) {
			return dial(cfg, deliverSM)
		},
	}

	for i := 0; i < cfg.Pool.Min; i++ {
		c, err := p.newClient()
		if err != nil {
			p.logger.Warnf("failed to pre-warm connection %d/%d: %v", i+1, cfg.Pool.Min, err)
			continue
		}
		p.idle = append(p.idle, c)
		p.size++
	}

	return p
}

func (p *Pool) newClient() (Client, error) {
	c, err := p.dialFn(p.cfg, p.deliverSM)
	if err != nil {
		p.logger.LogPoolEvent(p.tenantKey, "bind_failed", err)
		return nil, err
	}
	p.logger.LogPoolEvent(p.tenantKey, "bind", nil)
	return c, nil
}

// Acquire returns a bound client, creating one if under Pool.Max, else
// polling for one to be returned within Pool.ConnectTimeoutMs (§4.7).
func (p *Pool) Acquire(ctx context.Context) (Client, error) {
	if c := p.takeIdle(); c != nil {
		return c, nil
	}

	if c, ok, err := p.tryCreate(); ok {
		return c, err
	}

	timeout := time.Duration(p.cfg.Pool.ConnectTimeoutMs) * time.Millisecond
	deadline := time.After(timeout)
	poll := time.NewTicker(10 * time.Millisecond)
	defer poll.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline:
			return nil, ErrPoolExhausted
		case <-poll.C:
			if c := p.takeIdle(); c != nil {
				return c, nil
			}
			if c, ok, err := p.tryCreate(); ok {
				return c, err
			}
		}
	}
}

// takeIdle pops the oldest bound idle client (§4.7: the idle queue is
// FIFO), discarding any stale ones it finds along the way.
func (p *Pool) takeIdle() Client {
	p.mu.Lock()
	defer p.mu.Unlock()

	for len(p.idle) > 0 {
		c := p.idle[0]
		p.idle = p.idle[1:]
		if c.Bound() {
			return c
		}
		p.size--
		go c.Close()
	}
	return nil
}

// tryCreate dials a new client if the pool has room. ok reports whether
// this call claimed the right to dial (and thus owns the returned error).
func (p *Pool) tryCreate() (Client, bool, error) {
	p.mu.Lock()
	if p.size >= p.cfg.Pool.Max {
		p.mu.Unlock()
		return nil, false, nil
	}
	p.size++
	p.mu.Unlock()

	c, err := p.newClient()
	if err != nil {
		p.mu.Lock()
		p.size--
		p.mu.Unlock()
		return nil, true, err
	}
	return c, true, nil
}

// Release returns client to the pool if it's still bound, else disposes
// it (§4.7's return policy).
func (p *Pool) Release(c Client) {
	p.mu.Lock()
	if p.closed || !c.Bound() {
		p.size--
		p.mu.Unlock()
		c.Close()
		return
	}
	p.idle = append(p.idle, c)
	p.mu.Unlock()
}

// Close disposes every pooled client.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.closed = true
	for _, c := range p.idle {
		c.Close()
	}
	p.idle = nil
	return nil
}

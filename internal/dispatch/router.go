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

// Package dispatch implements the Channel Router (§4.10): it owns every
// tenant's constructed HTTP and SMPP channels and dispatches a queued
// event to the one named by its channelType. It sits above both
// internal/channels and internal/smpp so neither of those packages needs
// to know about the other.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"messagehub/internal/channels"
	"messagehub/internal/config"
	"messagehub/internal/logging"
	"messagehub/internal/metrics"
	"messagehub/internal/ratelimit"
	"messagehub/internal/smpp"
	"messagehub/internal/storage"
	"messagehub/internal/types"
)

// tenantChannels holds the channels constructed for one tenant, indexed
// by the uppercased channelType the router keys on.
type tenantChannels map[string]channels.Channel

// Router dispatches a MessageQueuedEvent to its tenant's configured
// channel, keyed case-insensitively on channelType (§4.10). It is built
// once at startup from the tenant directory and is read-only thereafter.
type Router struct {
	mu       sync.RWMutex
	byTenant map[string]tenantChannels
	limiter  *ratelimit.Limiter
	logger   *logging.Logger
}

// NewRouter constructs every tenant's HTTP and SMPP channels from the
// tenant directory and wires them into a Router. repo backs the SMPP DLR
// Correlator of every SMPP channel built.
func NewRouter(tenants map[string]*config.TenantConfig, repo storage.MessageRepository, logger *logging.Logger, metricsProvider metrics.Provider) *Router {
	r := &Router{
		byTenant: make(map[string]tenantChannels),
		limiter:  ratelimit.New(),
		logger:   logger.WithComponent("channel_router"),
	}

	for tenantKey, tenant := range tenants {
		tc := tenantChannels{}
		if tenant.HTTP != nil {
			tc["HTTP"] = channels.NewHTTPChannel(tenantKey, toHTTPChannelConfig(*tenant.HTTP), r.limiter, logger)
		}
		if tenant.SMPP != nil {
			tc["SMPP"] = smpp.NewChannel(tenantKey, *tenant.SMPP, repo, logger, metricsProvider)
		}
		r.byTenant[tenantKey] = tc
	}

	return r
}

// toHTTPChannelConfig adapts the config package's tenant HTTP shape to
// the one internal/channels.HTTPChannel expects.
func toHTTPChannelConfig(cfg config.HTTPChannelConfig) channels.HTTPChannelConfig {
	return channels.HTTPChannelConfig{
		Endpoint:                       cfg.Endpoint,
		APIKey:                         cfg.APIKey,
		APISecret:                      cfg.APISecret,
		CustomHeaders:                  cfg.CustomHeaders,
		TimeoutMs:                      cfg.TimeoutMs,
		MaxRetries:                     cfg.MaxRetries,
		MaxRequestsPerSecond:           cfg.MaxRequestsPerSecond,
		CircuitBreakerFailureThreshold: cfg.CircuitBreaker.FailureThreshold,
		CircuitBreakerRecoveryTimeoutS: cfg.CircuitBreaker.RecoveryTimeoutSeconds,
		ProviderType:                   cfg.ProviderType,
		SenderID:                       cfg.SenderID,
		CustomPayloadTemplate:          cfg.CustomPayloadTemplate,
		AuthType:                       cfg.AuthType,
	}
}

// Resolve returns the tenant's channel for the given channelType, or a
// permanent "Unknown channel" error per §4.10 when the tenant has no
// channel of that type configured.
func (r *Router) Resolve(tenantKey string, channelType types.ChannelType) (channels.Channel, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tc, ok := r.byTenant[tenantKey]
	if !ok {
		return nil, fmt.Errorf("unknown tenant: %s", tenantKey)
	}
	ch, ok := tc[strings.ToUpper(string(channelType))]
	if !ok {
		return nil, fmt.Errorf("Unknown channel")
	}
	return ch, nil
}

// Send resolves the event's channel and sends it; a convenience wrapper
// used directly by the Delivery Worker.
func (r *Router) Send(ctx context.Context, event types.MessageQueuedEvent) (channels.SendResult, error) {
	ch, err := r.Resolve(event.SubscriptionKey, event.ChannelType)
	if err != nil {
		return channels.SendResult{OK: false, ErrorMessage: err.Error(), Transient: false}, err
	}
	return ch.Send(ctx, event)
}

// Close releases every tenant's channel resources (SMPP pools and DLR
// correlator sweepers).
func (r *Router) Close() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tc := range r.byTenant {
		for _, ch := range tc {
			if closer, ok := ch.(interface{ Close() error }); ok {
				_ = closer.Close()
			}
		}
	}
	return nil
}

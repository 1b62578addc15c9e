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
	"strings"
	"sync/atomic"
	"time"

	"messagehub/internal/channels"
	"messagehub/internal/config"
	"messagehub/internal/logging"
	"messagehub/internal/metrics"
	"messagehub/internal/storage"
	"messagehub/internal/types"
)

// retryableStatuses are the submit_sm command statuses §4.9 classifies as
// transient besides the throttled case, which gets its own backoff path.
var retryableStatuses = map[string]bool{
	"ESME_RMSGQFUL":    true,
	"ESME_RSUBMITFAIL": true,
	"ESME_RSYSERR":     true,
}

const throttledStatus = "ESME_RTHROTTLED"

// Channel implements channels.Channel over a tenant's SMPP connection
// pool (§4.9).
type Channel struct {
	tenantKey  string
	cfg        config.SMPPChannelConfig
	pool       *Pool
	correlator *Correlator
	logger     *logging.Logger

	throttleCount int32
}

// NewChannel builds a tenant's SMPP channel, its connection pool, and its
// DLR correlator as one unit, since the pool's deliver_sm handler must be
// wired to the correlator before the first bind.
func NewChannel(tenantKey string, cfg config.SMPPChannelConfig, repo storage.MessageRepository, logger *logging.Logger, metricsProvider metrics.Provider) *Channel {
	correlator := NewCorrelator(repo, cfg.DeliveryReceipt.RetentionDays, logger, metricsProvider)
	ch := &Channel{
		tenantKey:  tenantKey,
		cfg:        cfg,
		correlator: correlator,
		logger:     logger.WithComponent("smpp_channel").WithField("tenant", tenantKey),
	}
	ch.pool = NewPool(tenantKey, cfg, correlator.HandleDeliverSM, logger)
	return ch
}

// Send implements channels.Channel (§4.9).
func (ch *Channel) Send(ctx context.Context, event types.MessageQueuedEvent) (channels.SendResult, error) {
	client, err := ch.pool.Acquire(ctx)
	if err != nil {
		return channels.SendResult{Transient: true, ErrorMessage: err.Error()}, err
	}
	defer ch.pool.Release(client)

	var registeredDelivery uint8
	if ch.cfg.DeliveryReceipt.Enabled {
		registeredDelivery = uint8(ch.cfg.DeliveryReceipt.DlrMask)
	}

	result, err := client.Submit(ch.cfg.SourceAddress, event.Recipient, event.Content, registeredDelivery)
	if err != nil {
		return ch.classifyError(err.Error())
	}

	atomic.StoreInt32(&ch.throttleCount, 0)
	ch.correlator.StoreCorrelation(event.MessageID, result.MessageID)

	return channels.SendResult{OK: true, ExternalMessageID: result.MessageID}, nil
}

// classifyError applies §4.9 step 4's command-status classification.
func (ch *Channel) classifyError(status string) (channels.SendResult, error) {
	upper := strings.ToUpper(status)

	if strings.Contains(upper, throttledStatus) {
		n := atomic.AddInt32(&ch.throttleCount, 1)
		delay := backoffSeconds(n)
		ch.logger.Warnf("SMPP throttled for tenant %s, backing off %ds", ch.tenantKey, delay)
		time.Sleep(time.Duration(delay) * time.Second)
		err := fmt.Errorf("SMPP: %s", status)
		return channels.SendResult{Transient: true, ErrorMessage: err.Error()}, err
	}

	for code := range retryableStatuses {
		if strings.Contains(upper, code) {
			err := fmt.Errorf("SMPP: %s", status)
			return channels.SendResult{Transient: true, ErrorMessage: err.Error()}, err
		}
	}

	err := fmt.Errorf("SMPP: %s", status)
	return channels.SendResult{Transient: false, ErrorMessage: err.Error()}, err
}

// backoffSeconds computes min(2^n, 60) per §4.9.
func backoffSeconds(n int32) int {
	if n > 6 {
		return 60
	}
	v := 1 << uint(n)
	if v > 60 {
		return 60
	}
	return v
}

// Close disposes the channel's connection pool and stops its correlator.
func (ch *Channel) Close() error {
	ch.correlator.Stop()
	return ch.pool.Close()
}

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

// Package worker implements the Delivery Worker (C12, §4.12): the
// Queue Transport consumer that turns a MessageQueuedEvent into a
// channel send and the resulting status transition.
package worker

import (
	"context"
	"fmt"
	"time"

	"messagehub/internal/channels"
	"messagehub/internal/config"
	"messagehub/internal/logging"
	"messagehub/internal/metrics"
	"messagehub/internal/queue"
	"messagehub/internal/storage"
	"messagehub/internal/types"
)

// Router is the Channel Router surface the worker needs (§4.10); it is
// satisfied by *dispatch.Router, restated here so this package doesn't
// need to import internal/dispatch (which in turn pulls in both
// internal/channels and internal/smpp).
type Router interface {
	Send(ctx context.Context, event types.MessageQueuedEvent) (channels.SendResult, error)
}

// Worker consumes MessageQueuedEvent and drives it through the §4.12
// state machine.
type Worker struct {
	repo     storage.MessageRepository
	consumer queue.Consumer
	router   Router
	tenants  map[string]*config.TenantConfig
	logger   *logging.Logger
	metrics  metrics.Provider
}

// NewWorker builds a Delivery Worker over the repository, queue
// consumer, channel router, and tenant directory wired at startup.
// metricsProvider may be nil.
func NewWorker(repo storage.MessageRepository, consumer queue.Consumer, router Router, tenants map[string]*config.TenantConfig, logger *logging.Logger, metricsProvider metrics.Provider) *Worker {
	return &Worker{
		repo:     repo,
		consumer: consumer,
		router:   router,
		tenants:  tenants,
		logger:   logger.WithComponent("delivery_worker"),
		metrics:  metricsProvider,
	}
}

// Run blocks, consuming queued events until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	return w.consumer.Run(ctx, w.handle)
}

// handle implements one iteration of the §4.12 state machine. A non-nil
// return tells the Queue Transport to redeliver the event (incrementing
// retryCount along the way); a nil return commits it regardless of the
// terminal status reached.
func (w *Worker) handle(ctx context.Context, event types.MessageQueuedEvent) error {
	start := time.Now()

	if err := w.repo.UpdateStatus(ctx, event.MessageID, types.StatusProcessing, "", ""); err != nil {
		w.logger.Errorf(err, "failed to mark message %s Processing", event.MessageID)
		return err
	}

	result, sendErr := w.router.Send(ctx, event)
	if sendErr == nil && result.OK {
		w.logger.LogChannelSend(event.MessageID, event.SubscriptionKey, string(event.ChannelType), "sent", 1, nil, nil)
		if err := w.repo.UpdateStatus(ctx, event.MessageID, types.StatusSent, result.ExternalMessageID, ""); err != nil {
			w.logger.Errorf(err, "failed to mark message %s Sent", event.MessageID)
			return err
		}
		if w.metrics != nil {
			w.metrics.RecordDelivery(string(event.ChannelType), "sent", time.Since(start), 1)
		}
		return nil
	}

	if !result.Transient {
		w.fail(ctx, event, result.ErrorMessage, time.Since(start), 1)
		return nil
	}

	message, getErr := w.repo.GetByIDForTenant(ctx, event.SubscriptionKey, event.MessageID)
	if getErr != nil {
		w.logger.Errorf(getErr, "failed to load message %s for retry accounting", event.MessageID)
		return getErr
	}

	maxRetries := 0
	if tenant, ok := w.tenants[event.SubscriptionKey]; ok {
		maxRetries = tenant.MaxRetriesFor(string(event.ChannelType))
	}

	if message.RetryCount < maxRetries {
		if err := w.repo.IncrementRetryCount(ctx, event.MessageID); err != nil {
			w.logger.Errorf(err, "failed to increment retry count for message %s", event.MessageID)
		}
		w.logger.LogChannelSend(event.MessageID, event.SubscriptionKey, string(event.ChannelType), "retrying", message.RetryCount+1, nil, sendErr)
		if w.metrics != nil {
			w.metrics.RecordDeliveryRetry(string(event.ChannelType), "transient_network")
		}
		return fmt.Errorf("transient send failure, redelivering: %s", result.ErrorMessage)
	}

	w.fail(ctx, event, result.ErrorMessage, time.Since(start), message.RetryCount+1)
	return nil
}

func (w *Worker) fail(ctx context.Context, event types.MessageQueuedEvent, errMsg string, elapsed time.Duration, attempts int) {
	if errMsg == "" {
		errMsg = "delivery failed"
	}
	w.logger.LogChannelSend(event.MessageID, event.SubscriptionKey, string(event.ChannelType), "failed", attempts, nil, fmt.Errorf("%s", errMsg))
	if err := w.repo.UpdateStatus(ctx, event.MessageID, types.StatusFailed, "", errMsg); err != nil {
		w.logger.Errorf(err, "failed to mark message %s Failed", event.MessageID)
	}
	if w.metrics != nil {
		w.metrics.RecordDelivery(string(event.ChannelType), "failed", elapsed, attempts)
	}
}

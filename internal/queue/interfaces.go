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

// Package queue implements the Queue Transport (§4.2): the durable hop
// between message submission and the Delivery Worker. A Publisher hands
// a MessageQueuedEvent off for asynchronous processing; a Consumer reads
// those events back, at-least-once; the Kafka consumer dead-letters ones
// that exhaust delivery attempts.
package queue

import (
	"context"

	"messagehub/internal/types"
)

// Publisher publishes a queued-message event for later delivery.
type Publisher interface {
	Publish(ctx context.Context, event types.MessageQueuedEvent) error
	Close() error
}

// Handler processes one dequeued event. A non-nil error causes the
// Consumer to deliver the event again: the Kafka consumer retries it and
// dead-letters it once its attempts are exhausted, and the in-process
// transport puts it back on its queue.
type Handler func(ctx context.Context, event types.MessageQueuedEvent) error

// Consumer reads queued-message events and invokes a Handler for each,
// blocking until the context is cancelled.
type Consumer interface {
	Run(ctx context.Context, handler Handler) error
	Close() error
}

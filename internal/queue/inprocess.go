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

package queue

import (
	"context"
	"errors"
	"sync"

	"messagehub/internal/types"
)

// ErrClosed is returned by Publish/Run once the transport has been closed.
var ErrClosed = errors.New("queue: transport closed")

// InProcessTransport is a buffered, in-process Publisher+Consumer pair for
// single-node deployments and tests, avoiding an external broker
// dependency when Config.Queue.Type is "inprocess".
type InProcessTransport struct {
	events chan types.MessageQueuedEvent

	mu     sync.Mutex
	closed bool
}

// NewInProcessTransport creates a transport with the given channel buffer
// capacity.
func NewInProcessTransport(bufferSize int) *InProcessTransport {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &InProcessTransport{
		events: make(chan types.MessageQueuedEvent, bufferSize),
	}
}

// Publish enqueues the event, blocking if the buffer is full.
func (t *InProcessTransport) Publish(ctx context.Context, event types.MessageQueuedEvent) error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return ErrClosed
	}
	t.mu.Unlock()

	select {
	case t.events <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run dequeues events and invokes handler until ctx is cancelled or the
// transport is closed. An event whose handler returns an error is put
// back on the queue for redelivery; if the buffer is full at that moment
// or the transport is closed, the event is dropped, since the in-process
// transport has no dead-letter topic.
func (t *InProcessTransport) Run(ctx context.Context, handler Handler) error {
	for {
		select {
		case event, ok := <-t.events:
			if !ok {
				return nil
			}
			if err := handler(ctx, event); err != nil {
				t.mu.Lock()
				if !t.closed {
					select {
					case t.events <- event:
					default:
					}
				}
				t.mu.Unlock()
			}
		case <-ctx.Done():
			return nil
		}
	}
}

// Close marks the transport closed and drains the channel so Run returns.
func (t *InProcessTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.events)
	return nil
}

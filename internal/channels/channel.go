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

// Package channels defines the Channel interface and SendResult shared by
// the delivery channels, and implements the HTTP channel (§4.6). The SMPP
// channel (§4.9) lives in internal/smpp and the Channel Router (§4.10) in
// internal/dispatch.
package channels

import (
	"context"

	"messagehub/internal/types"
)

// SendResult is the outcome of one channel send attempt.
type SendResult struct {
	OK                bool
	ExternalMessageID string
	ErrorMessage      string
	Transient         bool
}

// Channel sends a queued message event to its recipient over a single
// transport (HTTP webhook or SMPP).
type Channel interface {
	Send(ctx context.Context, event types.MessageQueuedEvent) (SendResult, error)
}

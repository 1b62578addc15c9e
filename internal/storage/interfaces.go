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

// Package storage implements the Message Repository (§4.1): durable
// storage of message records and their status transitions, scoped per
// tenant, backed by either an in-memory map or a postgres table.
package storage

import (
	"context"

	"messagehub/internal/types"
)

// MessageRepository defines the persistence operations the submission
// handler and delivery worker need against message records.
type MessageRepository interface {
	// Insert creates a new message record in StatusQueued.
	Insert(ctx context.Context, message *types.Message) error

	// GetByIDForTenant retrieves a message scoped to its owning tenant,
	// returning an errors.ErrNotFound-classified error when absent or
	// owned by a different tenant (§6 "404 unknown message for tenant").
	GetByIDForTenant(ctx context.Context, subscriptionKey, messageID string) (*types.Message, error)

	// UpdateStatus transitions a message's status, recording the
	// external provider ID and/or error message when present. Callers
	// are responsible for ensuring the transition is valid per
	// types.AllowedTransition before calling this.
	UpdateStatus(ctx context.Context, messageID string, status types.DeliveryStatus, externalMessageID, errorMessage string) error

	// IncrementRetryCount bumps the retry counter for a message ahead of
	// a redelivery attempt (§4.12).
	IncrementRetryCount(ctx context.Context, messageID string) error

	// ListForTenant lists recent messages for a tenant, newest first.
	ListForTenant(ctx context.Context, subscriptionKey string, limit, offset int) ([]*types.Message, error)

	Close() error
	HealthCheck(ctx context.Context) error
}

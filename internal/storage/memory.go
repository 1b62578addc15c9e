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

package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	huberrors "messagehub/internal/errors"
	"messagehub/internal/types"
)

// MemoryRepository implements MessageRepository using an in-memory map.
// It is the default storage backend (suitable for development and for
// tests) and is wired the same way the database backend is, behind the
// MessageRepository interface.
type MemoryRepository struct {
	mu       sync.RWMutex
	messages map[string]*types.Message
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		messages: make(map[string]*types.Message),
	}
}

// Insert creates a new message record.
func (r *MemoryRepository) Insert(ctx context.Context, message *types.Message) error {
	if message == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if message.ID == "" {
		return fmt.Errorf("message ID cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.messages[message.ID]; exists {
		return fmt.Errorf("message already exists: %s", message.ID)
	}

	clone := *message
	r.messages[message.ID] = &clone
	return nil
}

// GetByIDForTenant retrieves a message scoped to its tenant.
func (r *MemoryRepository) GetByIDForTenant(ctx context.Context, subscriptionKey, messageID string) (*types.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	message, exists := r.messages[messageID]
	if !exists || message.SubscriptionKey != subscriptionKey {
		return nil, huberrors.NewNotFoundError("message")
	}

	clone := *message
	return &clone, nil
}

// UpdateStatus transitions a message's status.
func (r *MemoryRepository) UpdateStatus(ctx context.Context, messageID string, status types.DeliveryStatus, externalMessageID, errorMessage string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, exists := r.messages[messageID]
	if !exists {
		return huberrors.NewNotFoundError("message")
	}

	message.Status = status
	if externalMessageID != "" {
		message.ExternalMessageID = externalMessageID
	}
	if errorMessage != "" {
		message.ErrorMessage = errorMessage
	}
	message.UpdatedAt = time.Now().UTC()
	return nil
}

// IncrementRetryCount bumps the retry counter ahead of redelivery.
func (r *MemoryRepository) IncrementRetryCount(ctx context.Context, messageID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	message, exists := r.messages[messageID]
	if !exists {
		return huberrors.NewNotFoundError("message")
	}
	message.RetryCount++
	message.UpdatedAt = time.Now().UTC()
	return nil
}

// ListForTenant lists recent messages for a tenant, newest first.
func (r *MemoryRepository) ListForTenant(ctx context.Context, subscriptionKey string, limit, offset int) ([]*types.Message, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*types.Message
	for _, message := range r.messages {
		if message.SubscriptionKey == subscriptionKey {
			clone := *message
			matched = append(matched, &clone)
		}
	}

	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	if offset > 0 {
		if offset >= len(matched) {
			return []*types.Message{}, nil
		}
		matched = matched[offset:]
	}
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}

	return matched, nil
}

// Close is a no-op for the in-memory repository.
func (r *MemoryRepository) Close() error {
	return nil
}

// HealthCheck always succeeds for the in-memory repository.
func (r *MemoryRepository) HealthCheck(ctx context.Context) error {
	return nil
}

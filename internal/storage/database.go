/*
 * Copyright 2025 Sen Wang
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
	"errors"
	"fmt"
	"time"

	huberrors "messagehub/internal/errors"
	"messagehub/internal/types"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// DatabaseRepository implements MessageRepository on top of postgres via
// gorm, following the same connection-pool and transactional-write
// conventions the rest of the stack uses for its storage layer.
type DatabaseRepository struct {
	config DatabaseConfig
	db     *gorm.DB
}

// DatabaseConfig configures a DatabaseRepository.
type DatabaseConfig struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// NewDatabaseRepository opens a postgres connection and configures its
// pool. If dbOverride is supplied, it is used as-is (for tests driven by
// sqlmock).
func NewDatabaseRepository(config DatabaseConfig, dbOverride ...*gorm.DB) (*DatabaseRepository, error) {
	var db *gorm.DB
	var err error

	if len(dbOverride) > 0 && dbOverride[0] != nil {
		db = dbOverride[0]
	} else {
		db, err = gorm.Open(postgres.Open(config.DSN), &gorm.Config{})
		if err != nil {
			return nil, fmt.Errorf("failed to open database: %w", err)
		}

		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
		}
		if config.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(config.MaxOpenConns)
		}
		if config.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(config.MaxIdleConns)
		}
		if config.ConnMaxLifetime > 0 {
			sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
		}
	}

	return &DatabaseRepository{config: config, db: db}, nil
}

// Insert creates a new message record.
func (r *DatabaseRepository) Insert(ctx context.Context, message *types.Message) error {
	if message == nil {
		return fmt.Errorf("message cannot be nil")
	}
	if message.ID == "" {
		return fmt.Errorf("message ID cannot be empty")
	}

	row := &dbMessage{
		MessageID:       message.ID,
		SubscriptionKey: message.SubscriptionKey,
		Content:         message.Content,
		Recipient:       message.Recipient,
		ChannelType:     string(message.ChannelType),
		Status:          string(message.Status),
		RetryCount:      message.RetryCount,
		CreatedAt:       message.CreatedAt,
		UpdatedAt:       message.UpdatedAt,
	}

	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

// GetByIDForTenant retrieves a message scoped to its tenant.
func (r *DatabaseRepository) GetByIDForTenant(ctx context.Context, subscriptionKey, messageID string) (*types.Message, error) {
	var row dbMessage
	err := r.db.WithContext(ctx).
		Where("message_id = ? AND subscription_key = ?", messageID, subscriptionKey).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, huberrors.NewNotFoundError("message")
		}
		return nil, fmt.Errorf("failed to get message: %w", err)
	}
	return rowToMessage(&row), nil
}

// UpdateStatus transitions a message's status.
func (r *DatabaseRepository) UpdateStatus(ctx context.Context, messageID string, status types.DeliveryStatus, externalMessageID, errorMessage string) error {
	updates := map[string]interface{}{
		"status":     string(status),
		"updated_at": time.Now().UTC(),
	}
	if externalMessageID != "" {
		updates["external_message_id"] = externalMessageID
	}
	if errorMessage != "" {
		updates["error_message"] = errorMessage
	}

	result := r.db.WithContext(ctx).Model(&dbMessage{}).
		Where("message_id = ?", messageID).
		Updates(updates)
	if result.Error != nil {
		return fmt.Errorf("failed to update status: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return huberrors.NewNotFoundError("message")
	}
	return nil
}

// IncrementRetryCount bumps the retry counter ahead of redelivery.
func (r *DatabaseRepository) IncrementRetryCount(ctx context.Context, messageID string) error {
	result := r.db.WithContext(ctx).Model(&dbMessage{}).
		Where("message_id = ?", messageID).
		UpdateColumn("retry_count", gorm.Expr("retry_count + 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to increment retry count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return huberrors.NewNotFoundError("message")
	}
	return nil
}

// ListForTenant lists recent messages for a tenant, newest first.
func (r *DatabaseRepository) ListForTenant(ctx context.Context, subscriptionKey string, limit, offset int) ([]*types.Message, error) {
	query := r.db.WithContext(ctx).
		Where("subscription_key = ?", subscriptionKey).
		Order("created_at DESC")

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []dbMessage
	if err := query.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	messages := make([]*types.Message, 0, len(rows))
	for i := range rows {
		messages = append(messages, rowToMessage(&rows[i]))
	}
	return messages, nil
}

// Close closes the underlying database connection.
func (r *DatabaseRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// HealthCheck pings the database.
func (r *DatabaseRepository) HealthCheck(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}

func rowToMessage(row *dbMessage) *types.Message {
	return &types.Message{
		ID:                row.MessageID,
		SubscriptionKey:   row.SubscriptionKey,
		Content:           row.Content,
		Recipient:         row.Recipient,
		ChannelType:       types.ChannelType(row.ChannelType),
		Status:            types.DeliveryStatus(row.Status),
		ExternalMessageID: row.ExternalMessageID,
		ErrorMessage:      row.ErrorMessage,
		RetryCount:        row.RetryCount,
		CreatedAt:         row.CreatedAt,
		UpdatedAt:         row.UpdatedAt,
	}
}

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

// Package submission implements the Submission Handler (§4.11): request
// validation, message-id generation, the initial Queued row, and
// publishing the MessageQueuedEvent that hands a message off to the
// Delivery Worker.
package submission

import (
	"context"
	"fmt"
	"time"

	"messagehub/internal/config"
	huberrors "messagehub/internal/errors"
	"messagehub/internal/logging"
	"messagehub/internal/metrics"
	"messagehub/internal/queue"
	"messagehub/internal/storage"
	"messagehub/internal/types"
	"messagehub/pkg/uuid"
)

// MaxBatchSize is the §4.11/§6 limit on messages per batch submission.
const MaxBatchSize = 100

// Handler implements message submission: validate, persist, publish.
type Handler struct {
	repo      storage.MessageRepository
	publisher queue.Publisher
	tenants   map[string]*config.TenantConfig
	logger    *logging.Logger
	metrics   metrics.Provider
}

// NewHandler builds a Submission Handler over the tenant directory,
// repository, and queue publisher wired at startup. metricsProvider may
// be nil.
func NewHandler(repo storage.MessageRepository, publisher queue.Publisher, tenants map[string]*config.TenantConfig, logger *logging.Logger, metricsProvider metrics.Provider) *Handler {
	return &Handler{
		repo:      repo,
		publisher: publisher,
		tenants:   tenants,
		logger:    logger.WithComponent("submission_handler"),
		metrics:   metricsProvider,
	}
}

// validateTenantChannel checks the tenant exists and has the requested
// channel configured (§4.11 step 1, §6 401/400 semantics).
func (h *Handler) validateTenantChannel(subscriptionKey string, channelType types.ChannelType) error {
	tenant, ok := h.tenants[subscriptionKey]
	if !ok {
		return huberrors.New(huberrors.ErrUnknownTenant, "unknown subscription key")
	}
	if !tenant.HasChannel(string(channelType)) {
		return huberrors.Newf(huberrors.ErrChannelNotConfig, "channel %s is not configured for this tenant", channelType)
	}
	return nil
}

// SubmitSingle implements the single-message submission flow (§4.11).
func (h *Handler) SubmitSingle(ctx context.Context, subscriptionKey string, req types.SendMessageRequest) (types.SendMessageResponse, error) {
	if err := h.validateTenantChannel(subscriptionKey, req.ChannelType); err != nil {
		return types.SendMessageResponse{}, err
	}

	start := time.Now()

	messageID, err := uuid.GenerateV7()
	if err != nil {
		return types.SendMessageResponse{}, huberrors.Wrap(huberrors.ErrInternalError, "failed to generate message id", err)
	}

	now := time.Now().UTC()
	message := &types.Message{
		ID:              messageID,
		SubscriptionKey: subscriptionKey,
		Content:         req.Message,
		Recipient:       req.Recipient,
		ChannelType:     req.ChannelType,
		Status:          types.StatusQueued,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := h.repo.Insert(ctx, message); err != nil {
		return types.SendMessageResponse{}, huberrors.Wrap(huberrors.ErrInternalError, "failed to store message", err)
	}

	event := types.MessageQueuedEvent{
		MessageID:       messageID,
		SubscriptionKey: subscriptionKey,
		Content:         req.Message,
		Recipient:       req.Recipient,
		ChannelType:     req.ChannelType,
		CreatedAt:       now,
	}

	if err := h.publisher.Publish(ctx, event); err != nil {
		const failMsg = "Failed to queue message for processing"
		if updateErr := h.repo.UpdateStatus(ctx, messageID, types.StatusFailed, "", failMsg); updateErr != nil {
			h.logger.Errorf(updateErr, "failed to mark message %s as Failed after publish failure", messageID)
		}
		h.logger.LogSubmission(messageID, subscriptionKey, string(types.StatusFailed), err)
		if h.metrics != nil {
			h.metrics.RecordSubmission(subscriptionKey, "failed", time.Since(start))
		}
		return types.SendMessageResponse{}, huberrors.WrapTransient(huberrors.ErrQueuePublishFailed, failMsg, err)
	}

	h.logger.LogSubmission(messageID, subscriptionKey, string(types.StatusQueued), nil)
	if h.metrics != nil {
		h.metrics.RecordSubmission(subscriptionKey, "queued", time.Since(start))
	}

	return types.SendMessageResponse{
		MessageID: messageID,
		Status:    types.StatusQueued,
		StatusURL: statusURL(messageID),
	}, nil
}

// SubmitBatch implements the batch submission flow (§4.11): the tenant
// and each message's channel are validated once per item, failures in
// one message never abort the rest of the batch.
func (h *Handler) SubmitBatch(ctx context.Context, subscriptionKey string, req types.SendBatchRequest) (types.SendBatchResponse, error) {
	if len(req.Messages) > MaxBatchSize {
		return types.SendBatchResponse{}, huberrors.Newf(huberrors.ErrBatchTooLarge, "batch exceeds maximum size of %d", MaxBatchSize)
	}

	if _, ok := h.tenants[subscriptionKey]; !ok {
		return types.SendBatchResponse{}, huberrors.New(huberrors.ErrUnknownTenant, "unknown subscription key")
	}

	results := make([]types.BatchResultItem, 0, len(req.Messages))
	var success, failed int

	for _, item := range req.Messages {
		resp, err := h.SubmitSingle(ctx, subscriptionKey, item)
		if err != nil {
			failed++
			results = append(results, types.BatchResultItem{
				Status:       types.StatusFailed,
				Recipient:    item.Recipient,
				ErrorMessage: err.Error(),
			})
			continue
		}
		success++
		results = append(results, types.BatchResultItem{
			MessageID: resp.MessageID,
			Status:    resp.Status,
			Recipient: item.Recipient,
		})
	}

	return types.SendBatchResponse{
		Results:          results,
		StatusURLPattern: "/api/messages/{id}/status",
		TotalCount:       len(req.Messages),
		SuccessCount:     success,
		FailedCount:      failed,
	}, nil
}

func statusURL(messageID string) string {
	return fmt.Sprintf("/api/messages/%s/status", messageID)
}

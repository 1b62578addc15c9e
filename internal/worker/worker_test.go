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

package worker

import (
	"context"
	"testing"
	"time"

	"messagehub/internal/channels"
	"messagehub/internal/config"
	"messagehub/internal/logging"
	"messagehub/internal/storage"
	"messagehub/internal/types"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(config.LoggingConfig{Level: "debug"})
}

type fakeRouter struct {
	result channels.SendResult
	err    error
}

func (f *fakeRouter) Send(ctx context.Context, event types.MessageQueuedEvent) (channels.SendResult, error) {
	return f.result, f.err
}

func seedMessage(t *testing.T, repo storage.MessageRepository, tenantKey, channelType string, retryCount int) types.MessageQueuedEvent {
	t.Helper()
	now := time.Now().UTC()
	msg := &types.Message{
		ID:              "msg-1",
		SubscriptionKey: tenantKey,
		Content:         "hi",
		Recipient:       "+15551234567",
		ChannelType:     types.ChannelType(channelType),
		Status:          types.StatusQueued,
		CreatedAt:       now,
		UpdatedAt:       now,
		RetryCount:      retryCount,
	}
	if err := repo.Insert(context.Background(), msg); err != nil {
		t.Fatalf("failed to seed message: %v", err)
	}
	return types.MessageQueuedEvent{
		MessageID: msg.ID, SubscriptionKey: tenantKey, Content: msg.Content,
		Recipient: msg.Recipient, ChannelType: msg.ChannelType, CreatedAt: now,
	}
}

func testTenants() map[string]*config.TenantConfig {
	return map[string]*config.TenantConfig{
		"tenant-a": {
			HTTP: &config.HTTPChannelConfig{Endpoint: "http://example.invalid", MaxRetries: 2},
		},
	}
}

func TestWorker_SendSuccessMarksSent(t *testing.T) {
	repo := storage.NewMemoryRepository()
	event := seedMessage(t, repo, "tenant-a", "HTTP", 0)
	router := &fakeRouter{result: channels.SendResult{OK: true, ExternalMessageID: "ext-1"}}

	w := NewWorker(repo, nil, router, testTenants(), testLogger(), nil)
	if err := w.handle(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg, err := repo.GetByIDForTenant(context.Background(), "tenant-a", event.MessageID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Status != types.StatusSent || msg.ExternalMessageID != "ext-1" {
		t.Fatalf("unexpected message state: %+v", msg)
	}
}

func TestWorker_PermanentFailureMarksFailed(t *testing.T) {
	repo := storage.NewMemoryRepository()
	event := seedMessage(t, repo, "tenant-a", "HTTP", 0)
	router := &fakeRouter{result: channels.SendResult{OK: false, ErrorMessage: "bad request", Transient: false}}

	w := NewWorker(repo, nil, router, testTenants(), testLogger(), nil)
	if err := w.handle(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg, _ := repo.GetByIDForTenant(context.Background(), "tenant-a", event.MessageID)
	if msg.Status != types.StatusFailed {
		t.Fatalf("expected Failed, got %s", msg.Status)
	}
}

func TestWorker_TransientUnderLimitRedelivers(t *testing.T) {
	repo := storage.NewMemoryRepository()
	event := seedMessage(t, repo, "tenant-a", "HTTP", 0)
	router := &fakeRouter{result: channels.SendResult{OK: false, ErrorMessage: "timeout", Transient: true}}

	w := NewWorker(repo, nil, router, testTenants(), testLogger(), nil)
	if err := w.handle(context.Background(), event); err == nil {
		t.Fatal("expected handle to return an error so the queue redelivers")
	}

	msg, _ := repo.GetByIDForTenant(context.Background(), "tenant-a", event.MessageID)
	if msg.Status != types.StatusProcessing {
		t.Fatalf("expected message to remain Processing pending redelivery, got %s", msg.Status)
	}
	if msg.RetryCount != 1 {
		t.Fatalf("expected retry count incremented to 1, got %d", msg.RetryCount)
	}
}

func TestWorker_TransientOverLimitMarksFailed(t *testing.T) {
	repo := storage.NewMemoryRepository()
	event := seedMessage(t, repo, "tenant-a", "HTTP", 2) // already at MaxRetries
	router := &fakeRouter{result: channels.SendResult{OK: false, ErrorMessage: "timeout", Transient: true}}

	w := NewWorker(repo, nil, router, testTenants(), testLogger(), nil)
	if err := w.handle(context.Background(), event); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg, _ := repo.GetByIDForTenant(context.Background(), "tenant-a", event.MessageID)
	if msg.Status != types.StatusFailed {
		t.Fatalf("expected Failed once retries exhausted, got %s", msg.Status)
	}
}

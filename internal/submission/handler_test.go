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

package submission

import (
	"context"
	"testing"

	"messagehub/internal/config"
	"messagehub/internal/logging"
	"messagehub/internal/queue"
	"messagehub/internal/storage"
	"messagehub/internal/types"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(config.LoggingConfig{Level: "debug"})
}

func testTenants() map[string]*config.TenantConfig {
	return map[string]*config.TenantConfig{
		"tenant-a": {
			Name: "Tenant A",
			HTTP: &config.HTTPChannelConfig{Endpoint: "http://example.invalid"},
		},
	}
}

func TestSubmitSingle_Success(t *testing.T) {
	repo := storage.NewMemoryRepository()
	transport := queue.NewInProcessTransport(4)
	defer transport.Close()

	h := NewHandler(repo, transport, testTenants(), testLogger(), nil)

	resp, err := h.SubmitSingle(context.Background(), "tenant-a", types.SendMessageRequest{
		Recipient:   "+15551234567",
		Message:     "hi",
		ChannelType: types.ChannelHTTP,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Status != types.StatusQueued || resp.MessageID == "" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	stored, err := repo.GetByIDForTenant(context.Background(), "tenant-a", resp.MessageID)
	if err != nil {
		t.Fatalf("expected stored message: %v", err)
	}
	if stored.Status != types.StatusQueued {
		t.Errorf("expected stored status Queued, got %s", stored.Status)
	}
}

func TestSubmitSingle_UnknownTenant(t *testing.T) {
	repo := storage.NewMemoryRepository()
	transport := queue.NewInProcessTransport(4)
	defer transport.Close()

	h := NewHandler(repo, transport, testTenants(), testLogger(), nil)

	_, err := h.SubmitSingle(context.Background(), "no-such-tenant", types.SendMessageRequest{
		Recipient: "+15551234567", Message: "hi", ChannelType: types.ChannelHTTP,
	})
	if err == nil {
		t.Fatal("expected an error for an unknown tenant")
	}
}

func TestSubmitSingle_ChannelNotConfigured(t *testing.T) {
	repo := storage.NewMemoryRepository()
	transport := queue.NewInProcessTransport(4)
	defer transport.Close()

	h := NewHandler(repo, transport, testTenants(), testLogger(), nil)

	_, err := h.SubmitSingle(context.Background(), "tenant-a", types.SendMessageRequest{
		Recipient: "+15551234567", Message: "hi", ChannelType: types.ChannelSMPP,
	})
	if err == nil {
		t.Fatal("expected an error for an unconfigured channel")
	}
}

func TestSubmitSingle_PublishFailureMarksFailed(t *testing.T) {
	repo := storage.NewMemoryRepository()
	transport := queue.NewInProcessTransport(4)
	transport.Close() // closed transport rejects Publish

	h := NewHandler(repo, transport, testTenants(), testLogger(), nil)

	_, err := h.SubmitSingle(context.Background(), "tenant-a", types.SendMessageRequest{
		Recipient: "+15551234567", Message: "hi", ChannelType: types.ChannelHTTP,
	})
	if err == nil {
		t.Fatal("expected publish failure to propagate")
	}
}

func TestSubmitBatch_MixedResults(t *testing.T) {
	repo := storage.NewMemoryRepository()
	transport := queue.NewInProcessTransport(8)
	defer transport.Close()

	h := NewHandler(repo, transport, testTenants(), testLogger(), nil)

	resp, err := h.SubmitBatch(context.Background(), "tenant-a", types.SendBatchRequest{
		Messages: []types.SendMessageRequest{
			{Recipient: "+15551234567", Message: "hi", ChannelType: types.ChannelHTTP},
			{Recipient: "+15557654321", Message: "hi", ChannelType: types.ChannelSMPP}, // not configured
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.TotalCount != 2 || resp.SuccessCount != 1 || resp.FailedCount != 1 {
		t.Fatalf("unexpected totals: %+v", resp)
	}
}

func TestSubmitBatch_ExceedsMaxSize(t *testing.T) {
	repo := storage.NewMemoryRepository()
	transport := queue.NewInProcessTransport(4)
	defer transport.Close()

	h := NewHandler(repo, transport, testTenants(), testLogger(), nil)

	messages := make([]types.SendMessageRequest, MaxBatchSize+1)
	for i := range messages {
		messages[i] = types.SendMessageRequest{Recipient: "+15551234567", Message: "hi", ChannelType: types.ChannelHTTP}
	}

	_, err := h.SubmitBatch(context.Background(), "tenant-a", types.SendBatchRequest{Messages: messages})
	if err == nil {
		t.Fatal("expected an error for an over-sized batch")
	}
}

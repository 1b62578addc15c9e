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

package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"messagehub/internal/config"
	"messagehub/internal/logging"
	"messagehub/internal/storage"
	"messagehub/internal/types"
)

func testLogger() *logging.Logger {
	return logging.NewLogger(config.LoggingConfig{Level: "debug"})
}

func TestRouter_ResolvesHTTPChannel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"id":"ext-1"}`))
	}))
	defer server.Close()

	tenants := map[string]*config.TenantConfig{
		"tenant-a": {
			Name: "Tenant A",
			HTTP: &config.HTTPChannelConfig{
				Endpoint:             server.URL,
				TimeoutMs:            1000,
				MaxRetries:           1,
				MaxRequestsPerSecond: 100,
				ProviderType:         "Generic",
			},
		},
	}

	repo := storage.NewMemoryRepository()
	router := NewRouter(tenants, repo, testLogger(), nil)

	result, err := router.Send(context.Background(), types.MessageQueuedEvent{
		MessageID:       "msg-1",
		SubscriptionKey: "tenant-a",
		Content:         "hi",
		Recipient:       "+15551234567",
		ChannelType:     types.ChannelHTTP,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.OK {
		t.Fatalf("expected success, got %+v", result)
	}
}

func TestRouter_UnknownChannelType(t *testing.T) {
	tenants := map[string]*config.TenantConfig{
		"tenant-a": {
			Name: "Tenant A",
			HTTP: &config.HTTPChannelConfig{Endpoint: "http://example.invalid"},
		},
	}
	repo := storage.NewMemoryRepository()
	router := NewRouter(tenants, repo, testLogger(), nil)

	_, err := router.Resolve("tenant-a", types.ChannelType("CARRIER_PIGEON"))
	if err == nil {
		t.Fatal("expected an error for an unconfigured channel type")
	}
}

func TestRouter_UnknownTenant(t *testing.T) {
	router := NewRouter(map[string]*config.TenantConfig{}, storage.NewMemoryRepository(), testLogger(), nil)

	_, err := router.Resolve("no-such-tenant", types.ChannelHTTP)
	if err == nil {
		t.Fatal("expected an error for an unknown tenant")
	}
}

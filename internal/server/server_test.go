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

package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"messagehub/internal/config"
	"messagehub/internal/logging"
	"messagehub/internal/metrics"
	"messagehub/internal/queue"
	"messagehub/internal/storage"
	"messagehub/internal/submission"
)

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Address:      ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		Logging: config.LoggingConfig{Level: "info", Format: "json"},
		Tenants: map[string]*config.TenantConfig{
			"demo-key": {Name: "demo"},
		},
	}
}

func testLogger() *logging.Logger {
	return logging.NewLogger(config.LoggingConfig{Level: "debug"})
}

func createTestServer() *Server {
	cfg := testConfig()
	repo := storage.NewMemoryRepository()
	transport := queue.NewInProcessTransport(1)
	handler := submission.NewHandler(repo, transport, cfg.Tenants, testLogger(), nil)
	return New(cfg, repo, handler, metrics.NewProvider(), testLogger())
}

func TestNew_BuildsRouterAndHTTPServer(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cfg := testConfig()
	repo := storage.NewMemoryRepository()
	transport := queue.NewInProcessTransport(1)
	handler := submission.NewHandler(repo, transport, cfg.Tenants, testLogger(), nil)

	s := New(cfg, repo, handler, metrics.NewProvider(), testLogger())

	if s == nil {
		t.Fatal("expected server to be created")
	}
	if s.router == nil {
		t.Error("expected router to be initialized")
	}
	if s.httpServer == nil {
		t.Error("expected http.Server to be initialized")
	}
	if s.httpServer.Addr != cfg.Server.Address {
		t.Errorf("expected address %s, got %s", cfg.Server.Address, s.httpServer.Addr)
	}
}

func TestGetRouter(t *testing.T) {
	s := createTestServer()

	router := s.GetRouter()
	if router == nil {
		t.Error("expected router to be returned")
	}
	if router != s.router {
		t.Error("expected returned router to match server router")
	}
}

func TestPing_NoAuthRequired(t *testing.T) {
	s := createTestServer()

	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "Service is alive" {
		t.Fatalf("unexpected body: %s", w.Body.String())
	}
}

func TestAPIRoutes_RejectMissingSubscriptionKey(t *testing.T) {
	s := createTestServer()

	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/message"},
		{http.MethodPost, "/api/messages"},
		{http.MethodGet, "/api/messages/some-id/status"},
		{http.MethodGet, "/api/messages/history"},
	}

	for _, route := range routes {
		t.Run(fmt.Sprintf("%s_%s", route.method, route.path), func(t *testing.T) {
			req := httptest.NewRequest(route.method, route.path, nil)
			w := httptest.NewRecorder()
			s.router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestRespondWithSuccess(t *testing.T) {
	gin.SetMode(gin.TestMode)

	s := createTestServer()
	router := gin.New()
	router.GET("/test", func(c *gin.Context) {
		s.respondWithSuccess(c, http.StatusOK, gin.H{"message": "success"})
	})

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if response["message"] != "success" {
		t.Errorf("expected message 'success', got %v", response["message"])
	}
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		statusCode   int
		expectedType string
	}{
		{400, "client_error"},
		{401, "client_error"},
		{404, "client_error"},
		{500, "server_error"},
		{502, "server_error"},
		{200, "unknown"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.statusCode), func(t *testing.T) {
			if got := getErrorType(tt.statusCode); got != tt.expectedType {
				t.Errorf("expected %s for status %d, got %s", tt.expectedType, tt.statusCode, got)
			}
		})
	}
}

func TestWithRequestMetrics_PassesThroughResponse(t *testing.T) {
	gin.SetMode(gin.TestMode)

	s := createTestServer()
	router := gin.New()
	router.GET("/test", s.withRequestMetrics(func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "test"})
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestCheckHealth_ReportsRepositoryStatus(t *testing.T) {
	s := createTestServer()

	health := s.CheckHealth(httptest.NewRequest(http.MethodGet, "/", nil).Context())
	if !health.Healthy {
		t.Errorf("expected memory repository to be healthy, got %+v", health)
	}
	if health.Components["message_repository"] != "healthy" {
		t.Errorf("expected message_repository healthy, got %s", health.Components["message_repository"])
	}
}

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

// Package server wires the gin HTTP surface (§6) over the already
// constructed Submission Handler, Message Repository, and metrics
// Provider: request binding and response shaping live here, the delivery
// pipeline lives in internal/submission, internal/worker, and
// internal/dispatch.
package server

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"messagehub/internal/config"
	"messagehub/internal/logging"
	"messagehub/internal/metrics"
	"messagehub/internal/middleware"
	"messagehub/internal/storage"
	"messagehub/internal/submission"
)

// maxRequestBodyBytes bounds a single HTTP request body; generous enough
// for a 100-message batch of 1600-char SMS bodies.
const maxRequestBodyBytes = 512 * 1024

// Server holds the HTTP surface over the hub's submission path.
type Server struct {
	config     *config.Config
	httpServer *http.Server
	router     *gin.Engine
	repo       storage.MessageRepository
	submission *submission.Handler
	logger     *logging.Logger
	metrics    metrics.Provider
}

// New builds the HTTP server over an already-constructed repository,
// submission handler, and metrics provider (wired together by main.go
// alongside the queue transport and the Delivery Worker, which this
// package never touches directly).
func New(cfg *config.Config, repo storage.MessageRepository, submissionHandler *submission.Handler, metricsProvider metrics.Provider, logger *logging.Logger) *Server {
	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	s := &Server{
		config:     cfg,
		router:     router,
		repo:       repo,
		submission: submissionHandler,
		logger:     logger.WithComponent("server"),
		metrics:    metricsProvider,
	}

	s.setupMiddleware()
	s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	if cfg.TLS.Enabled {
		s.httpServer.TLSConfig = s.createTLSConfig()
	}

	return s
}

// Start starts the HTTP server; it blocks until the server stops.
func (s *Server) Start() error {
	if s.config.TLS.Enabled {
		return s.httpServer.ListenAndServeTLS(s.config.TLS.CertFile, s.config.TLS.KeyFile)
	}
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// GetRouter returns the gin router for testing purposes.
func (s *Server) GetRouter() *gin.Engine {
	return s.router
}

// setupMiddleware wires the global chain: Recovery → Logger → CORS →
// RequestID → RequestSizeLimit → SecurityHeaders. TenantAuth is not part
// of it; setupRoutes applies it to the /api group only. Tenant-scoped HTTP rate limiting already lives at
// the Channel Router / HTTP Channel layer (§4.3), so there is no
// separate rate-limit step in the gin chain.
func (s *Server) setupMiddleware() {
	s.router.Use(gin.Recovery())
	s.router.Use(middleware.Logger(s.config.Logging))
	s.router.Use(middleware.CORS())
	s.router.Use(middleware.RequestID())
	s.router.Use(middleware.RequestSizeLimit(maxRequestBodyBytes))
	s.router.Use(middleware.SecurityHeaders())
}

// setupRoutes configures the §6 HTTP surface.
func (s *Server) setupRoutes() {
	s.router.GET("/ping", s.withRequestMetrics(s.handlePing))

	api := s.router.Group("/api")
	api.Use(middleware.TenantAuth(s.config.Tenants))
	{
		api.POST("/message", s.withRequestMetrics(s.handleSendMessage))
		api.POST("/messages", s.withRequestMetrics(s.handleSendBatch))
		api.GET("/messages/:id/status", s.withRequestMetrics(s.handleGetMessageStatus))
		api.GET("/messages/history", s.withRequestMetrics(s.handleHistory))
	}

	if s.metrics != nil {
		s.router.GET("/metrics", s.handleMetrics)
	}
}

// createTLSConfig builds the listening socket's TLS configuration.
func (s *Server) createTLSConfig() *tls.Config {
	tlsConfig := &tls.Config{
		MinVersion: tls.VersionTLS13,
		CipherSuites: []uint16{
			tls.TLS_AES_256_GCM_SHA384,
			tls.TLS_AES_128_GCM_SHA256,
			tls.TLS_CHACHA20_POLY1305_SHA256,
		},
	}

	switch s.config.TLS.MinVersion {
	case "1.2":
		tlsConfig.MinVersion = tls.VersionTLS12
	case "1.3":
		tlsConfig.MinVersion = tls.VersionTLS13
	}

	return tlsConfig
}

// handleMetrics serves the in-memory metrics snapshot as JSON.
func (s *Server) handleMetrics(c *gin.Context) {
	data, err := s.metrics.ToJSON()
	if err != nil {
		s.logger.Error("failed to serialize metrics", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to serialize metrics"})
		return
	}
	c.Data(http.StatusOK, "application/json", data)
}

// HealthStatus reports whether the hub's dependencies are reachable,
// consumed by operators' liveness/readiness probes.
type HealthStatus struct {
	Status     string            `json:"status"`
	Healthy    bool              `json:"healthy"`
	Timestamp  time.Time         `json:"timestamp"`
	Components map[string]string `json:"components"`
}

// CheckHealth pings the Message Repository and reports overall health.
// No route serves it; main.go's -health-check probe calls GET /ping
// instead.
func (s *Server) CheckHealth(ctx context.Context) HealthStatus {
	healthy := true
	components := make(map[string]string)

	if err := s.repo.HealthCheck(ctx); err != nil {
		healthy = false
		components["message_repository"] = fmt.Sprintf("unhealthy: %v", err)
	} else {
		components["message_repository"] = "healthy"
	}

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	return HealthStatus{
		Status:     status,
		Healthy:    healthy,
		Timestamp:  time.Now().UTC(),
		Components: components,
	}
}

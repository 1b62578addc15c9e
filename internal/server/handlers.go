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
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	huberrors "messagehub/internal/errors"
	"messagehub/internal/middleware"
	"messagehub/internal/types"
)

// historyFetchCap bounds how many rows handleHistory pulls from the
// repository before applying the optional status filter and the
// caller's limit, since MessageRepository.ListForTenant has no
// status-filter parameter of its own.
const historyFetchCap = 500

// handlePing implements GET /ping (§6 liveness probe).
func (s *Server) handlePing(c *gin.Context) {
	c.String(http.StatusOK, "Service is alive")
}

// subscriptionKey reads the tenant key TenantAuth stashed in the gin
// context.
func subscriptionKey(c *gin.Context) string {
	key, _ := c.Get(middleware.TenantKeyContextKey)
	if s, ok := key.(string); ok {
		return s
	}
	return ""
}

// handleSendMessage implements POST /api/message (§6, §4.11).
func (s *Server) handleSendMessage(c *gin.Context) {
	var req types.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondWithHubError(c, huberrors.NewValidationError(err.Error(), nil))
		return
	}

	resp, err := s.submission.SubmitSingle(c.Request.Context(), subscriptionKey(c), req)
	if err != nil {
		if hubErr, ok := huberrors.AsHubError(err); ok {
			s.respondWithHubError(c, hubErr)
			return
		}
		s.respondWithHubError(c, huberrors.NewInternalError("failed to submit message", err))
		return
	}

	s.respondWithSuccess(c, http.StatusOK, resp)
}

// handleSendBatch implements POST /api/messages (§6, §4.11).
func (s *Server) handleSendBatch(c *gin.Context) {
	var req types.SendBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.respondWithHubError(c, huberrors.NewValidationError(err.Error(), nil))
		return
	}

	resp, err := s.submission.SubmitBatch(c.Request.Context(), subscriptionKey(c), req)
	if err != nil {
		if hubErr, ok := huberrors.AsHubError(err); ok {
			s.respondWithHubError(c, hubErr)
			return
		}
		s.respondWithHubError(c, huberrors.NewInternalError("failed to submit batch", err))
		return
	}

	s.respondWithSuccess(c, http.StatusOK, resp)
}

// handleGetMessageStatus implements GET /api/messages/{id}/status (§6).
func (s *Server) handleGetMessageStatus(c *gin.Context) {
	messageID := c.Param("id")

	message, err := s.repo.GetByIDForTenant(c.Request.Context(), subscriptionKey(c), messageID)
	if err != nil {
		if hubErr, ok := huberrors.AsHubError(err); ok {
			s.respondWithHubError(c, hubErr)
			return
		}
		s.respondWithHubError(c, huberrors.NewInternalError("failed to load message status", err))
		return
	}

	s.respondWithSuccess(c, http.StatusOK, message.ToStatusResponse())
}

// handleHistory implements GET /api/messages/history?limit=&status= (§6).
func (s *Server) handleHistory(c *gin.Context) {
	limit := 50
	if raw := c.Query("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > 100 {
		limit = 100
	}
	statusFilter := types.DeliveryStatus(c.Query("status"))

	messages, err := s.repo.ListForTenant(c.Request.Context(), subscriptionKey(c), historyFetchCap, 0)
	if err != nil {
		if hubErr, ok := huberrors.AsHubError(err); ok {
			s.respondWithHubError(c, hubErr)
			return
		}
		s.respondWithHubError(c, huberrors.NewInternalError("failed to load message history", err))
		return
	}

	results := make([]types.StatusResponse, 0, limit)
	for _, message := range messages {
		if statusFilter != "" && message.Status != statusFilter {
			continue
		}
		results = append(results, message.ToStatusResponse())
		if len(results) >= limit {
			break
		}
	}

	s.respondWithSuccess(c, http.StatusOK, results)
}

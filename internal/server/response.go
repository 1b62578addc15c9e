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
	"time"

	"github.com/gin-gonic/gin"

	huberrors "messagehub/internal/errors"
)

// respondWithHubError sends an error response derived from a HubError,
// stamping it with the request id and recording metrics (§6, §7).
func (s *Server) respondWithHubError(c *gin.Context, err *huberrors.HubError) {
	err.RequestID = c.GetString("request_id")

	statusCode := err.GetHTTPStatus()
	errorResponse := err.ToErrorResponse()

	logger := s.logger.WithContext(c.Request.Context()).WithFields(map[string]interface{}{
		"status_code": statusCode,
		"error_code":  string(err.Code),
		"method":      c.Request.Method,
		"path":        c.Request.URL.Path,
		"remote_addr": c.ClientIP(),
	})

	if statusCode >= 500 {
		logger.Error(err.Message, err.Cause)
	} else {
		logger.Warn(err.Message)
	}

	if s.metrics != nil {
		s.metrics.RecordError("server", string(err.Code), getErrorType(statusCode))
	}

	c.JSON(statusCode, errorResponse)
}

// respondWithStatus sends a bare status code with no body, used for the
// unauthenticated/unknown-tenant 401 case where §6 specifies an empty
// body model.
func (s *Server) respondWithStatus(c *gin.Context, statusCode int) {
	if s.metrics != nil {
		s.metrics.RecordError("server", "UNAUTHORIZED", getErrorType(statusCode))
	}
	c.Status(statusCode)
}

// getErrorType categorizes errors by HTTP status code.
func getErrorType(statusCode int) string {
	switch {
	case statusCode >= 400 && statusCode < 500:
		return "client_error"
	case statusCode >= 500:
		return "server_error"
	default:
		return "unknown"
	}
}

// respondWithSuccess sends a successful JSON response.
func (s *Server) respondWithSuccess(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, data)
}

// withRequestMetrics wraps a handler with request metrics and access
// logging.
func (s *Server) withRequestMetrics(handler gin.HandlerFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set("start_time", start)

		if s.metrics != nil {
			s.metrics.IncHTTPRequestsInFlight()
			defer s.metrics.DecHTTPRequestsInFlight()
		}

		handler(c)

		duration := time.Since(start)
		if s.metrics != nil {
			s.metrics.RecordHTTPRequest(
				c.Request.Method,
				c.FullPath(),
				c.Writer.Status(),
				duration,
			)
		}

		s.logger.LogRequest(
			c.Request.Method,
			c.Request.URL.Path,
			c.ClientIP(),
			c.Request.UserAgent(),
			c.Writer.Status(),
			duration,
		)
	}
}

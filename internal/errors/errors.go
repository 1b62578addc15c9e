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

// Package errors implements the §7 error taxonomy: every channel result
// and worker decision is expressed in terms of a HubError carrying a
// Transient flag, rather than ad-hoc error strings.
package errors

import (
	"fmt"
	"time"

	"messagehub/internal/types"
)

// ErrorCode represents standardized error codes.
type ErrorCode string

const (
	// Validation (permanent): unknown tenant, unconfigured channel, bad input.
	ErrUnknownTenant     ErrorCode = "UNKNOWN_TENANT"
	ErrChannelNotConfig  ErrorCode = "CHANNEL_NOT_CONFIGURED"
	ErrValidationFailed  ErrorCode = "VALIDATION_FAILED"
	ErrBatchTooLarge     ErrorCode = "BATCH_TOO_LARGE"

	// Configuration (permanent): missing endpoint, invalid bind credentials.
	ErrMissingEndpoint    ErrorCode = "MISSING_ENDPOINT"
	ErrInvalidBindCreds   ErrorCode = "INVALID_BIND_CREDENTIALS"
	ErrUnknownChannelType ErrorCode = "UNKNOWN_CHANNEL"

	// Transient network.
	ErrConnectTimeout ErrorCode = "CONNECT_TIMEOUT"
	ErrServerError    ErrorCode = "SERVER_ERROR"
	ErrSMPPThrottled  ErrorCode = "SMPP_THROTTLED"
	ErrSMPPTransient  ErrorCode = "SMPP_TRANSIENT"

	// Rate limit rejected.
	ErrRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Breaker open.
	ErrBreakerOpen ErrorCode = "BREAKER_OPEN"

	// Permanent provider.
	ErrPermanentProvider ErrorCode = "PERMANENT_PROVIDER_ERROR"

	// Queue publish failure (§4.11).
	ErrQueuePublishFailed ErrorCode = "QUEUE_PUBLISH_FAILED"

	// System.
	ErrInternalError ErrorCode = "INTERNAL_ERROR"
	ErrNotFound       ErrorCode = "NOT_FOUND"
)

// HubError is a structured error carrying the §7 taxonomy classification.
type HubError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
	Cause     error                  `json:"-"`
	transient bool
}

// Error implements the error interface.
func (e *HubError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error.
func (e *HubError) Unwrap() error {
	return e.Cause
}

// Transient reports whether the Delivery Worker may let the queue
// redeliver this failure (§7).
func (e *HubError) Transient() bool {
	return e.transient
}

// ToErrorResponse converts a HubError to the public API error envelope.
func (e *HubError) ToErrorResponse() types.ErrorResponse {
	return types.ErrorResponse{
		Error: types.ErrorDetail{
			Code:      string(e.Code),
			Message:   e.Message,
			Details:   e.Details,
			Timestamp: e.Timestamp,
			RequestID: e.RequestID,
		},
	}
}

// New creates a permanent HubError.
func New(code ErrorCode, message string) *HubError {
	return &HubError{Code: code, Message: message, Timestamp: time.Now().UTC()}
}

// Newf creates a permanent HubError with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *HubError {
	return &HubError{Code: code, Message: fmt.Sprintf(format, args...), Timestamp: time.Now().UTC()}
}

// NewTransient creates a HubError classified as transient (§7).
func NewTransient(code ErrorCode, message string) *HubError {
	return &HubError{Code: code, Message: message, Timestamp: time.Now().UTC(), transient: true}
}

// Wrap creates a permanent HubError wrapping an existing error.
func Wrap(code ErrorCode, message string, cause error) *HubError {
	return &HubError{Code: code, Message: message, Cause: cause, Timestamp: time.Now().UTC()}
}

// WrapTransient creates a transient HubError wrapping an existing error.
func WrapTransient(code ErrorCode, message string, cause error) *HubError {
	return &HubError{Code: code, Message: message, Cause: cause, Timestamp: time.Now().UTC(), transient: true}
}

// WithDetails adds details to a HubError.
func (e *HubError) WithDetails(details map[string]interface{}) *HubError {
	e.Details = details
	return e
}

// WithRequestID adds a request ID to a HubError.
func (e *HubError) WithRequestID(requestID string) *HubError {
	e.RequestID = requestID
	return e
}

// GetHTTPStatus returns the appropriate HTTP status code for the error,
// per §6 ("200 ok, 400 validation, 401 unknown/missing key, 404 unknown
// message for tenant, 500 internal").
func (e *HubError) GetHTTPStatus() int {
	switch e.Code {
	case ErrValidationFailed, ErrBatchTooLarge, ErrChannelNotConfig:
		return 400
	case ErrUnknownTenant:
		return 401
	case ErrNotFound:
		return 404
	default:
		return 500
	}
}

// NewValidationError creates a permanent validation error.
func NewValidationError(message string, details map[string]interface{}) *HubError {
	return New(ErrValidationFailed, message).WithDetails(details)
}

// NewNotFoundError creates a not-found error.
func NewNotFoundError(resource string) *HubError {
	return Newf(ErrNotFound, "%s not found", resource)
}

// NewInternalError creates an internal error.
func NewInternalError(message string, cause error) *HubError {
	return Wrap(ErrInternalError, message, cause)
}

// IsHubError checks if an error is a HubError.
func IsHubError(err error) bool {
	_, ok := err.(*HubError)
	return ok
}

// AsHubError converts an error to HubError if possible.
func AsHubError(err error) (*HubError, bool) {
	he, ok := err.(*HubError)
	return he, ok
}

// IsRetryableHTTPStatus classifies an HTTP response status per §4.5/§4.6:
// connection errors, timeouts, and {408, 429, 5xx} are retryable.
func IsRetryableHTTPStatus(status int) bool {
	if status == 0 || status == 408 || status == 429 {
		return true
	}
	return status >= 500
}

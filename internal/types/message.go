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

package types

import "time"

// DeliveryStatus represents the lifecycle state of a message (§3).
type DeliveryStatus string

const (
	StatusQueued     DeliveryStatus = "Queued"
	StatusProcessing DeliveryStatus = "Processing"
	StatusSent       DeliveryStatus = "Sent"
	StatusDelivered  DeliveryStatus = "Delivered"
	StatusFailed     DeliveryStatus = "Failed"
)

// ChannelType identifies the outbound delivery mechanism for a message.
type ChannelType string

const (
	ChannelHTTP ChannelType = "HTTP"
	ChannelSMPP ChannelType = "SMPP"
)

// Message is the persisted record for a single SMS submission.
type Message struct {
	ID                string         `json:"messageId"`
	SubscriptionKey   string         `json:"subscriptionKey"`
	Content           string         `json:"content"`
	Recipient         string         `json:"recipient"`
	ChannelType       ChannelType    `json:"channelType"`
	Status            DeliveryStatus `json:"status"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	ExternalMessageID string         `json:"externalMessageId,omitempty"`
	ErrorMessage      string         `json:"errorMessage,omitempty"`
	RetryCount        int            `json:"retryCount"`
}

// MessageQueuedEvent is published by the Submission Handler and consumed
// by the Delivery Worker via the Queue Transport (§4.2).
type MessageQueuedEvent struct {
	MessageID       string      `json:"messageId"`
	SubscriptionKey string      `json:"subscriptionKey"`
	Content         string      `json:"content"`
	Recipient       string      `json:"recipient"`
	ChannelType     ChannelType `json:"channelType"`
	CreatedAt       time.Time   `json:"createdAt"`
}

// SendMessageRequest is the body of POST /api/message.
type SendMessageRequest struct {
	Recipient   string      `json:"recipient" binding:"required,min=1,max=100"`
	Message     string      `json:"message" binding:"required,min=1,max=1600"`
	ChannelType ChannelType `json:"channelType" binding:"required"`
}

// SendMessageResponse is the 200 body of POST /api/message.
type SendMessageResponse struct {
	MessageID string         `json:"messageId"`
	Status    DeliveryStatus `json:"status"`
	StatusURL string         `json:"statusUrl"`
}

// SendBatchRequest is the body of POST /api/messages.
type SendBatchRequest struct {
	Messages []SendMessageRequest `json:"messages" binding:"required,min=1,max=100,dive"`
}

// BatchResultItem is one element of SendBatchResponse.Results.
type BatchResultItem struct {
	MessageID    string         `json:"messageId,omitempty"`
	Status       DeliveryStatus `json:"status"`
	Recipient    string         `json:"recipient"`
	ErrorMessage string         `json:"errorMessage,omitempty"`
}

// SendBatchResponse is the 200 body of POST /api/messages.
type SendBatchResponse struct {
	Results          []BatchResultItem `json:"results"`
	StatusURLPattern string            `json:"statusUrlPattern"`
	TotalCount       int               `json:"totalCount"`
	SuccessCount     int               `json:"successCount"`
	FailedCount      int               `json:"failedCount"`
}

// StatusResponse is the 200 body of GET /api/messages/{id}/status and the
// per-item shape of GET /api/messages/history.
type StatusResponse struct {
	MessageID         string         `json:"messageId"`
	Status            DeliveryStatus `json:"status"`
	CreatedAt         time.Time      `json:"createdAt"`
	UpdatedAt         time.Time      `json:"updatedAt"`
	ExternalMessageID string         `json:"externalMessageId,omitempty"`
	ErrorMessage      string         `json:"errorMessage,omitempty"`
	RetryCount        int            `json:"retryCount"`
	Recipient         string         `json:"recipient"`
	ChannelType       ChannelType    `json:"channelType"`
}

// ToStatusResponse projects a Message onto its public status shape.
func (m *Message) ToStatusResponse() StatusResponse {
	return StatusResponse{
		MessageID:         m.ID,
		Status:            m.Status,
		CreatedAt:         m.CreatedAt,
		UpdatedAt:         m.UpdatedAt,
		ExternalMessageID: m.ExternalMessageID,
		ErrorMessage:      m.ErrorMessage,
		RetryCount:        m.RetryCount,
		Recipient:         m.Recipient,
		ChannelType:       m.ChannelType,
	}
}

// ErrorResponse is the standard error body shape.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail provides detailed error information.
type ErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	RequestID string                 `json:"request_id,omitempty"`
}

// AllowedTransition reports whether the §3 status DAG permits from→to.
// The repository itself does not enforce this (§4.1), and the Delivery
// Worker and DLR Correlator issue their updates without consulting it.
func AllowedTransition(from, to DeliveryStatus) bool {
	switch from {
	case StatusQueued:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusSent || to == StatusFailed
	case StatusSent:
		return to == StatusDelivered || to == StatusFailed
	default:
		return false
	}
}

// IsTerminal reports whether status admits no further transitions.
func IsTerminal(s DeliveryStatus) bool {
	return s == StatusDelivered || s == StatusFailed
}

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

package tests

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"messagehub/internal/types"
)

// TestSendRequestBuilder provides a fluent interface for building
// POST /api/message bodies in integration tests.
type TestSendRequestBuilder struct {
	request *types.SendMessageRequest
}

// NewTestSendRequest creates a new send request builder with default
// values: an HTTP-channel message to a single recipient.
func NewTestSendRequest() *TestSendRequestBuilder {
	return &TestSendRequestBuilder{
		request: &types.SendMessageRequest{
			Recipient:   "+15551234567",
			Message:     "hello from the test suite",
			ChannelType: types.ChannelHTTP,
		},
	}
}

// WithRecipient sets the recipient.
func (b *TestSendRequestBuilder) WithRecipient(recipient string) *TestSendRequestBuilder {
	b.request.Recipient = recipient
	return b
}

// WithMessage sets the message body.
func (b *TestSendRequestBuilder) WithMessage(message string) *TestSendRequestBuilder {
	b.request.Message = message
	return b
}

// WithChannelType sets the channel type.
func (b *TestSendRequestBuilder) WithChannelType(channelType types.ChannelType) *TestSendRequestBuilder {
	b.request.ChannelType = channelType
	return b
}

// Build returns the constructed send request.
func (b *TestSendRequestBuilder) Build() *types.SendMessageRequest {
	return b.request
}

// TestDataGenerator provides utilities for generating randomized test
// data across message submissions.
type TestDataGenerator struct {
	rand *rand.Rand
}

// NewTestDataGenerator creates a new test data generator seeded off the
// current time; fine for test variety, never for anything cryptographic.
func NewTestDataGenerator() *TestDataGenerator {
	return &TestDataGenerator{
		rand: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// RandomRecipient generates a random-looking E.164 recipient number.
func (g *TestDataGenerator) RandomRecipient() string {
	return fmt.Sprintf("+1555%07d", g.rand.Intn(10000000))
}

// RandomRecipients generates multiple random recipient numbers.
func (g *TestDataGenerator) RandomRecipients(count int) []string {
	recipients := make([]string, count)
	for i := 0; i < count; i++ {
		recipients[i] = g.RandomRecipient()
	}
	return recipients
}

// RandomMessage generates a random SMS body under the 1600-char cap.
func (g *TestDataGenerator) RandomMessage() string {
	bodies := []string{
		"Your verification code is 482913.",
		"Your order has shipped and will arrive in 2-3 business days.",
		"Reminder: your appointment is tomorrow at 10am.",
		"Your balance is low. Please top up to avoid service interruption.",
		"Thanks for signing up! Reply STOP to opt out.",
	}
	return bodies[g.rand.Intn(len(bodies))]
}

// LargeMessage generates a message body of approximately the given
// length, for exercising the 1600-character submission cap.
func (g *TestDataGenerator) LargeMessage(length int) string {
	const charset = "abcdefghijklmnopqrstuvwxyz "
	b := make([]byte, length)
	for i := range b {
		b[i] = charset[g.rand.Intn(len(charset))]
	}
	return string(b)
}

// AssertValidStatus reports whether a delivery status is one of the §3
// DAG's known values.
func AssertValidStatus(status types.DeliveryStatus) bool {
	switch status {
	case types.StatusQueued, types.StatusProcessing, types.StatusSent, types.StatusDelivered, types.StatusFailed:
		return true
	default:
		return false
	}
}

// decodeJSON is a small helper for unmarshalling an httptest response
// body into a typed value inside a test.
func decodeJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

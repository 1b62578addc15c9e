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

package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	huberrors "messagehub/internal/errors"
	"messagehub/internal/logging"
	"messagehub/internal/payload"
	"messagehub/internal/ratelimit"
	"messagehub/internal/resilience"
	"messagehub/internal/types"
)

// externalIDKeys is the ordered list of top-level JSON keys checked for
// the provider's external message ID (§4.6 step 7).
var externalIDKeys = []string{"messageId", "id", "message_id", "sid", "uuid", "reference"}

// HTTPChannelConfig carries the per-tenant HTTP channel settings the
// channel needs at send time (a narrowed view of config.HTTPChannelConfig).
type HTTPChannelConfig struct {
	Endpoint                       string
	APIKey                         string
	APISecret                      string
	CustomHeaders                  map[string]string
	TimeoutMs                      int
	MaxRetries                     int
	MaxRequestsPerSecond           int
	CircuitBreakerFailureThreshold int
	CircuitBreakerRecoveryTimeoutS int
	ProviderType                   string
	SenderID                       string
	CustomPayloadTemplate          string
	AuthType                       string
}

// HTTPChannel implements Channel by POSTing the rendered payload to the
// tenant's configured HTTP endpoint, guarded by the Tenant Rate Limiter
// and the HTTP Resilience Pipeline (§4.6).
type HTTPChannel struct {
	tenantKey string
	cfg       HTTPChannelConfig
	client    *http.Client
	limiter   *ratelimit.Limiter
	pipeline  *resilience.Pipeline
	logger    *logging.Logger
}

// NewHTTPChannel builds an HTTPChannel bound to one tenant's configuration.
func NewHTTPChannel(tenantKey string, cfg HTTPChannelConfig, limiter *ratelimit.Limiter, logger *logging.Logger) *HTTPChannel {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
	}

	timeout := time.Duration(cfg.TimeoutMs) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	pipeline := resilience.New(resilience.Config{
		Timeout:                        timeout,
		MaxRetries:                     cfg.MaxRetries,
		CircuitBreakerFailureThreshold: cfg.CircuitBreakerFailureThreshold,
		CircuitBreakerRecoveryTimeout:  time.Duration(cfg.CircuitBreakerRecoveryTimeoutS) * time.Second,
	})

	return &HTTPChannel{
		tenantKey: tenantKey,
		cfg:       cfg,
		client:    &http.Client{Transport: transport, Timeout: timeout},
		limiter:   limiter,
		pipeline:  pipeline,
		logger:    logger.WithComponent("http_channel"),
	}
}

// Send implements Channel (§4.6).
func (c *HTTPChannel) Send(ctx context.Context, event types.MessageQueuedEvent) (SendResult, error) {
	if !c.limiter.Allow(c.tenantKey, c.cfg.MaxRequestsPerSecond) {
		return SendResult{OK: false, ErrorMessage: "Rate limit exceeded", Transient: true},
			huberrors.NewTransient(huberrors.ErrRateLimitExceeded, "rate limit exceeded")
	}

	body, err := payload.Build(payload.Request{
		MessageID: event.MessageID,
		TenantKey: event.SubscriptionKey,
		Recipient: event.Recipient,
		Content:   event.Content,
	}, c.cfg.ProviderType, c.cfg.SenderID, c.cfg.APIKey, c.cfg.APISecret, c.cfg.CustomPayloadTemplate, c.logger)
	if err != nil {
		return SendResult{OK: false, ErrorMessage: err.Error()},
			huberrors.Wrap(huberrors.ErrValidationFailed, "failed to build payload", err)
	}

	var result SendResult
	var statusCode int
	var responseBody []byte

	transient, sendErr := c.pipeline.Run(ctx, func(ctx context.Context) (bool, error) {
		statusCode, responseBody, err = c.doRequest(ctx, body)
		if err != nil {
			return true, err
		}
		if statusCode >= 200 && statusCode < 300 {
			return false, nil
		}
		return huberrors.IsRetryableHTTPStatus(statusCode), fmt.Errorf("HTTP %d: %s", statusCode, string(responseBody))
	})

	if sendErr == nil {
		result.OK = true
		result.ExternalMessageID = extractExternalID(responseBody)
		return result, nil
	}

	result.OK = false
	result.Transient = transient
	result.ErrorMessage = sendErr.Error()
	return result, sendErr
}

func (c *HTTPChannel) doRequest(ctx context.Context, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	c.applyAuth(req)
	for k, v := range c.cfg.CustomHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("failed to read response: %w", err)
	}

	return resp.StatusCode, respBody, nil
}

// applyAuth sets the auth header per §4.6 step 4.
func (c *HTTPChannel) applyAuth(req *http.Request) {
	switch c.cfg.AuthType {
	case "ApiKey":
		req.Header.Set("X-API-Key", c.cfg.APIKey)
	case "Basic":
		req.Header.Set("Authorization", "Basic "+payload.BasicAuthHeader(c.cfg.APIKey, c.cfg.APISecret))
	case "HMAC":
		// HMAC signing is provider-specific; the signature is expected to
		// arrive via CustomHeaders for providers that need it.
	case "Bearer":
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	default:
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}
	}
}

// extractExternalID implements §4.6 step 7's ordered-key lookup.
func extractExternalID(body []byte) string {
	var decoded map[string]interface{}
	if err := json.Unmarshal(body, &decoded); err != nil {
		return ""
	}

	for _, key := range externalIDKeys {
		if v, ok := decoded[key].(string); ok && v != "" {
			return v
		}
	}

	if data, ok := decoded["data"].(map[string]interface{}); ok {
		if v, ok := data["id"].(string); ok {
			return v
		}
	}

	return ""
}

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

// Package payload implements the Payload Template Engine (§4.4): it
// renders the outbound HTTP channel request body for a given provider.
package payload

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"text/template"
	"time"

	"messagehub/internal/logging"
)

// defaultSenderID is used as the from/sender value when a tenant's HTTP
// channel config leaves SenderID unset.
const defaultSenderID = "MessageHub"

// Request carries the fields every provider body shape draws from.
type Request struct {
	MessageID string
	TenantKey string
	Recipient string
	Content   string
}

// Build renders the request body for the given provider, falling back
// to the Generic shape (and logging a warning) if provider is "Custom"
// but no usable template is configured.
func Build(req Request, providerType, senderID, apiKey, apiSecret, customTemplate string, logger *logging.Logger) ([]byte, error) {
	sender := senderID
	if sender == "" {
		sender = defaultSenderID
	}

	switch providerType {
	case "Twilio":
		return json.Marshal(map[string]string{
			"To":   req.Recipient,
			"From": sender,
			"Body": req.Content,
		})

	case "Vonage":
		return json.Marshal(map[string]string{
			"api_key":    apiKey,
			"api_secret": apiSecret,
			"to":         req.Recipient,
			"from":       sender,
			"text":       req.Content,
			"type":       "text",
		})

	case "MessageBird":
		return json.Marshal(map[string]interface{}{
			"recipients": []string{req.Recipient},
			"originator": sender,
			"body":       req.Content,
			"params": map[string]string{
				"datacoding": "auto",
			},
		})

	case "TextMagic":
		return json.Marshal(map[string]interface{}{
			"text":   req.Content,
			"phones": []string{req.Recipient},
			"from":   sender,
		})

	case "Custom":
		body, err := renderCustom(req, sender, apiKey, customTemplate)
		if err != nil {
			if logger != nil {
				logger.Warnf("custom payload template for tenant %s failed, falling back to generic: %v", req.TenantKey, err)
			}
			return buildGeneric(req, sender)
		}
		return body, nil

	default: // "Generic" and anything unrecognized
		return buildGeneric(req, sender)
	}
}

func buildGeneric(req Request, sender string) ([]byte, error) {
	return json.Marshal(map[string]interface{}{
		"to":        req.Recipient,
		"text":      req.Content,
		"from":      sender,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// renderCustom executes the tenant's text/template against the documented
// variable set. An empty template or a parse/execute error is treated as
// "no usable template" by the caller, which falls back to Generic.
func renderCustom(req Request, sender, apiKey, customTemplate string) ([]byte, error) {
	if customTemplate == "" {
		return nil, fmt.Errorf("no custom payload template configured")
	}

	tmpl, err := template.New("payload").Parse(customTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse custom payload template: %w", err)
	}

	vars := map[string]string{
		"recipient": req.Recipient,
		"message":   req.Content,
		"senderId":  sender,
		"apiKey":    apiKey,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"messageId": req.MessageID,
		"tenantId":  req.TenantKey,
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, vars); err != nil {
		return nil, fmt.Errorf("failed to execute custom payload template: %w", err)
	}

	return buf.Bytes(), nil
}

// BasicAuthHeader builds the base64(apiKey:apiSecret) value for the
// §4.6 Basic auth type.
func BasicAuthHeader(apiKey, apiSecret string) string {
	return base64.StdEncoding.EncodeToString([]byte(apiKey + ":" + apiSecret))
}

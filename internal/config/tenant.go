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

package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// TenantConfig is the per-tenant (per subscription key) configuration
// loaded once at startup (§3). At least one of HTTP/SMPP must be set.
type TenantConfig struct {
	Name string            `yaml:"name"`
	HTTP *HTTPChannelConfig `yaml:"http,omitempty"`
	SMPP *SMPPChannelConfig `yaml:"smpp,omitempty"`
}

// CircuitBreakerConfig configures the breaker stage of the resilience
// pipeline (§4.5) and the SMPP channel's analogous policy.
type CircuitBreakerConfig struct {
	FailureThreshold     int `yaml:"failure_threshold"`
	RecoveryTimeoutSeconds int `yaml:"recovery_timeout_seconds"`
}

// HTTPChannelConfig configures the HTTP delivery channel (§3, §4.6).
type HTTPChannelConfig struct {
	Endpoint             string               `yaml:"endpoint"`
	APIKey               string               `yaml:"api_key"`
	APISecret            string               `yaml:"api_secret"`
	CustomHeaders        map[string]string    `yaml:"custom_headers"`
	TimeoutMs            int                  `yaml:"timeout_ms"`
	MaxRetries           int                  `yaml:"max_retries"`
	MaxRequestsPerSecond int                  `yaml:"max_requests_per_second"`
	CircuitBreaker       CircuitBreakerConfig `yaml:"circuit_breaker"`
	ProviderType         string               `yaml:"provider_type"` // Generic|Twilio|Vonage|MessageBird|TextMagic|Custom
	SenderID             string               `yaml:"sender_id"`
	CustomPayloadTemplate string              `yaml:"custom_payload_template"`
	AuthType             string               `yaml:"auth_type"` // Bearer|ApiKey|Basic|HMAC
}

// PoolConfig configures the SMPP connection pool (§4.7).
type PoolConfig struct {
	Min                  int `yaml:"min"`
	Max                  int `yaml:"max"`
	Idle                 int `yaml:"idle"`
	ConnectTimeoutMs     int `yaml:"connect_timeout_ms"`
	RecoveryDelaySeconds int `yaml:"recovery_delay_seconds"`
}

// SMPPRateConfig configures the native send-speed limit applied to bound
// clients (§4.7); this is enforced by the SMPP client, not the Tenant
// Rate Limiter (§4.3 advises HTTP only).
type SMPPRateConfig struct {
	MaxPerSecond int `yaml:"max_per_second"`
	Burst        int `yaml:"burst"`
	WindowMs     int `yaml:"window_ms"`
}

// DeliveryReceiptConfig configures DLR handling (§4.8).
type DeliveryReceiptConfig struct {
	Enabled       bool `yaml:"enabled"`
	DlrMask       int  `yaml:"dlr_mask"`
	RetentionDays int  `yaml:"retention_days"`
}

// ThrottlingConfig configures the SMPP channel's ESME_RTHROTTLED backoff
// (§4.9).
type ThrottlingConfig struct {
	InitialBackoffMs int     `yaml:"initial_backoff_ms"`
	MaxBackoffMs     int     `yaml:"max_backoff_ms"`
	Multiplier       float64 `yaml:"multiplier"`
}

// FailedMessageConfig configures the per-channel retry policy consulted
// by the Delivery Worker (§4.12).
type FailedMessageConfig struct {
	MaxRetries          int   `yaml:"max_retries"`
	RetryDelayMinutes   []int `yaml:"retry_delay_minutes"`
	DeadLetterAfterDays int   `yaml:"dead_letter_after_days"`
}

// SMPPChannelConfig configures the SMPP delivery channel (§3, §4.7-4.9).
type SMPPChannelConfig struct {
	Host                  string                `yaml:"host"`
	Port                  int                   `yaml:"port"`
	SystemID              string                `yaml:"system_id"`
	Password              string                `yaml:"password"`
	SourceAddress         string                `yaml:"source_address"`
	BindType              string                `yaml:"bind_type"` // Transceiver|Transmitter|Receiver
	TLSEnabled            bool                  `yaml:"tls_enabled"`
	EnquireLinkIntervalMs int                   `yaml:"enquire_link_interval_ms"`
	InactivityTimeoutMs   int                   `yaml:"inactivity_timeout_ms"`
	Pool                  PoolConfig            `yaml:"pool"`
	Rate                  SMPPRateConfig        `yaml:"rate"`
	CircuitBreaker        CircuitBreakerConfig  `yaml:"circuit_breaker"`
	DeliveryReceipt       DeliveryReceiptConfig `yaml:"delivery_receipt"`
	Throttling            ThrottlingConfig      `yaml:"throttling"`
	FailedMessage         FailedMessageConfig   `yaml:"failed_message"`
}

// validate checks the §3 tenant invariants (at most one config per channel
// type, and at least one channel configured).
func (t *TenantConfig) validate() error {
	if t.HTTP == nil && t.SMPP == nil {
		return fmt.Errorf("tenant must configure at least one channel (http or smpp)")
	}
	if t.HTTP != nil {
		if t.HTTP.Endpoint == "" {
			return fmt.Errorf("http channel requires an endpoint")
		}
		if t.HTTP.ProviderType == "Custom" && t.HTTP.CustomPayloadTemplate == "" {
			return fmt.Errorf("http channel with provider=Custom requires custom_payload_template")
		}
	}
	if t.SMPP != nil {
		if t.SMPP.Host == "" || t.SMPP.SystemID == "" {
			return fmt.Errorf("smpp channel requires host and system_id")
		}
	}
	return nil
}

// HasChannel reports whether the tenant has the given channel configured,
// matched case-insensitively per §4.10.
func (t *TenantConfig) HasChannel(channelType string) bool {
	switch {
	case strings.EqualFold(channelType, "HTTP"):
		return t.HTTP != nil
	case strings.EqualFold(channelType, "SMPP"):
		return t.SMPP != nil
	default:
		return false
	}
}

// MaxRetriesFor returns the per-channel retry ceiling the Delivery Worker
// consults before letting a transient failure redeliver (§4.12). HTTP's
// ceiling is the same MaxRetries the resilience pipeline attempts within
// one send; SMPP has no in-call retry loop, so its ceiling lives in
// FailedMessage.MaxRetries instead.
func (t *TenantConfig) MaxRetriesFor(channelType string) int {
	switch {
	case strings.EqualFold(channelType, "HTTP") && t.HTTP != nil:
		return t.HTTP.MaxRetries
	case strings.EqualFold(channelType, "SMPP") && t.SMPP != nil:
		return t.SMPP.FailedMessage.MaxRetries
	default:
		return 0
	}
}

// tenantFile is the on-disk shape of the tenant directory file: a flat
// map from subscription key to tenant config.
type tenantFile struct {
	Tenants map[string]*TenantConfig `yaml:"tenants"`
}

// loadTenants loads the tenant directory from a dedicated YAML file, if
// provided, merging into any tenants already present in cfg (e.g. from
// the main config file's own `tenants:` section).
func loadTenants(cfg *Config, tenantsFile string) error {
	if tenantsFile == "" {
		return nil
	}

	data, err := os.ReadFile(tenantsFile)
	if err != nil {
		return fmt.Errorf("failed to read tenants file %s: %w", tenantsFile, err)
	}

	var tf tenantFile
	if err := yaml.Unmarshal(data, &tf); err != nil {
		return fmt.Errorf("failed to parse tenants file %s: %w", tenantsFile, err)
	}

	if cfg.Tenants == nil {
		cfg.Tenants = make(map[string]*TenantConfig)
	}
	for key, tenant := range tf.Tenants {
		cfg.Tenants[key] = tenant
	}

	return nil
}

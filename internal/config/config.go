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
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration.
type Config struct {
	Server  ServerConfig             `yaml:"server"`
	TLS     TLSConfig                `yaml:"tls"`
	Logging LoggingConfig            `yaml:"logging"`
	Storage StorageConfig            `yaml:"storage"`
	Queue   QueueConfig              `yaml:"queue"`
	Auth    AuthConfig               `yaml:"auth"`
	Tenants map[string]*TenantConfig `yaml:"tenants"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address      string        `yaml:"address"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// TLSConfig holds TLS configuration for the server's listening socket.
type TLSConfig struct {
	Enabled    bool   `yaml:"enabled"`
	CertFile   string `yaml:"cert_file"`
	KeyFile    string `yaml:"key_file"`
	MinVersion string `yaml:"min_version"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig selects and configures the Message Repository (C1).
type StorageConfig struct {
	Type     string         `yaml:"type"` // "memory" | "database"
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig holds postgres connection parameters.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// QueueConfig selects and configures the Queue Transport (C2).
type QueueConfig struct {
	Type  string      `yaml:"type"` // "inprocess" | "kafka"
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig holds segmentio/kafka-go connection parameters.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
	DLQTopic string  `yaml:"dlq_topic"`
}

// AuthConfig holds administrative authentication configuration.
type AuthConfig struct {
	AdminKeyFile      string `yaml:"admin_key_file"`
	AdminAPIKeyHeader string `yaml:"admin_api_key_header"`
}

// Load loads configuration from YAML files and environment variables.
// Command line flags take precedence over environment variables;
// environment variables take precedence over YAML file values.
func Load() (*Config, error) {
	configFile := flag.String("config", "", "Path to configuration file (YAML)")
	tenantsFile := flag.String("tenants", "", "Path to tenant directory file (YAML)")
	adminKeyFile := flag.String("admin-key-file", "", "Path to admin API key file")
	flag.Parse()

	cfg := getDefaultConfig()

	if err := loadFromYAML(cfg, *configFile); err != nil {
		return nil, fmt.Errorf("failed to load YAML config: %w", err)
	}

	if err := loadTenants(cfg, *tenantsFile); err != nil {
		return nil, fmt.Errorf("failed to load tenants: %w", err)
	}

	loadFromEnv(cfg)

	if *adminKeyFile != "" {
		cfg.Auth.AdminKeyFile = *adminKeyFile
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// getDefaultConfig returns a configuration with default values.
func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Address:      ":8443",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
		TLS: TLSConfig{
			Enabled:    false,
			MinVersion: "1.3",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Storage: StorageConfig{
			Type: "memory",
		},
		Queue: QueueConfig{
			Type: "inprocess",
			Kafka: KafkaConfig{
				Topic:    "message-queued",
				GroupID:  "delivery-worker",
				DLQTopic: "message-queued-dlq",
			},
		},
		Auth: AuthConfig{
			AdminAPIKeyHeader: "X-Admin-Key",
		},
		Tenants: make(map[string]*TenantConfig),
	}
}

// loadFromYAML loads configuration from a YAML file.
func loadFromYAML(cfg *Config, configFile string) error {
	if configFile == "" {
		return nil
	}

	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", configFile, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse YAML config file %s: %w", configFile, err)
	}

	return nil
}

// loadFromEnv overrides configuration with environment variables.
func loadFromEnv(cfg *Config) {
	if val := getEnv("MSGHUB_SERVER_ADDRESS", ""); val != "" {
		cfg.Server.Address = val
	}
	if val := getDurationEnv("MSGHUB_READ_TIMEOUT", 0); val != 0 {
		cfg.Server.ReadTimeout = val
	}
	if val := getDurationEnv("MSGHUB_WRITE_TIMEOUT", 0); val != 0 {
		cfg.Server.WriteTimeout = val
	}

	if val := getBoolEnvWithDefault("MSGHUB_TLS_ENABLED", cfg.TLS.Enabled); val != cfg.TLS.Enabled {
		cfg.TLS.Enabled = val
	}
	if val := getEnv("MSGHUB_TLS_CERT_FILE", ""); val != "" {
		cfg.TLS.CertFile = val
	}
	if val := getEnv("MSGHUB_TLS_KEY_FILE", ""); val != "" {
		cfg.TLS.KeyFile = val
	}

	if val := getEnv("MSGHUB_LOG_LEVEL", ""); val != "" {
		cfg.Logging.Level = val
	}
	if val := getEnv("MSGHUB_LOG_FORMAT", ""); val != "" {
		cfg.Logging.Format = val
	}

	if val := getEnv("MSGHUB_STORAGE_TYPE", ""); val != "" {
		cfg.Storage.Type = val
	}
	if val := getEnv("MSGHUB_DATABASE_DSN", ""); val != "" {
		cfg.Storage.Database.DSN = val
	}

	if val := getEnv("MSGHUB_QUEUE_TYPE", ""); val != "" {
		cfg.Queue.Type = val
	}
	if val := getEnv("MSGHUB_KAFKA_BROKERS", ""); val != "" {
		cfg.Queue.Kafka.Brokers = strings.Split(val, ",")
	}

	if val := getEnv("MSGHUB_ADMIN_KEY_FILE", ""); val != "" {
		cfg.Auth.AdminKeyFile = val
	}
}

// validate validates the configuration.
func (c *Config) validate() error {
	if c.TLS.Enabled && (c.TLS.CertFile == "" || c.TLS.KeyFile == "") {
		return fmt.Errorf("TLS cert and key files are required when TLS is enabled")
	}

	if c.Storage.Type != "memory" && c.Storage.Type != "database" {
		return fmt.Errorf("unsupported storage type: %s", c.Storage.Type)
	}
	if c.Storage.Type == "database" && c.Storage.Database.DSN == "" {
		return fmt.Errorf("database DSN is required when storage type is database")
	}

	if c.Queue.Type != "inprocess" && c.Queue.Type != "kafka" {
		return fmt.Errorf("unsupported queue type: %s", c.Queue.Type)
	}
	if c.Queue.Type == "kafka" && len(c.Queue.Kafka.Brokers) == 0 {
		return fmt.Errorf("at least one kafka broker is required when queue type is kafka")
	}

	if c.Auth.AdminKeyFile != "" {
		if _, err := os.Stat(c.Auth.AdminKeyFile); err != nil {
			return fmt.Errorf("admin key file not found: %s", c.Auth.AdminKeyFile)
		}
	}

	for key, tenant := range c.Tenants {
		if err := tenant.validate(); err != nil {
			return fmt.Errorf("invalid tenant %q: %w", key, err)
		}
	}

	return nil
}

// Helper functions for environment variable parsing.

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getBoolEnvWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

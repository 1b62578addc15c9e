package queue

import (
	"testing"

	"messagehub/internal/config"
	"messagehub/internal/logging"
)

func TestNewTransport_InProcess(t *testing.T) {
	logger := logging.NewLogger(config.LoggingConfig{Level: "info"})
	pub, con, err := NewTransport(config.QueueConfig{Type: "inprocess"}, logger)
	if err != nil {
		t.Fatalf("NewTransport failed: %v", err)
	}
	if pub == nil || con == nil {
		t.Fatal("expected non-nil publisher and consumer")
	}
}

func TestNewTransport_KafkaRequiresBrokers(t *testing.T) {
	logger := logging.NewLogger(config.LoggingConfig{Level: "info"})
	_, _, err := NewTransport(config.QueueConfig{Type: "kafka"}, logger)
	if err == nil {
		t.Error("expected error when no brokers configured")
	}
}

func TestNewTransport_Unsupported(t *testing.T) {
	logger := logging.NewLogger(config.LoggingConfig{Level: "info"})
	_, _, err := NewTransport(config.QueueConfig{Type: "nope"}, logger)
	if err == nil {
		t.Error("expected error for unsupported queue type")
	}
}

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

package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"messagehub/internal/logging"
	"messagehub/internal/types"

	kafka "github.com/segmentio/kafka-go"
)

// maxDispatchAttempts is how many times the consumer retries handler
// failures before routing the event to the dead-letter topic (§4.2).
const maxDispatchAttempts = 3

// KafkaPublisher publishes queued-message events to a Kafka topic using
// segmentio/kafka-go, chosen (along with the pack's other broker-facing
// examples) for being pure Go with no cgo dependency on librdkafka.
type KafkaPublisher struct {
	writer *kafka.Writer
}

// NewKafkaPublisher creates a publisher bound to the given brokers/topic.
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireOne,
		},
	}
}

// Publish writes the event as JSON, keyed by message ID so redeliveries
// of the same message land on the same partition.
func (p *KafkaPublisher) Publish(ctx context.Context, event types.MessageQueuedEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal queued event: %w", err)
	}

	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.MessageID),
		Value: value,
	})
}

// Close releases the underlying Kafka writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// KafkaConsumer reads queued-message events from Kafka, committing
// offsets only after a successful (or exhausted-retry, dead-lettered)
// dispatch — at-least-once delivery, same as the publisher's pairing.
type KafkaConsumer struct {
	reader *kafka.Reader
	dlq    *kafka.Writer
	logger *logging.Logger
}

// NewKafkaConsumer creates a Consumer bound to the given brokers/topic/
// group, writing exhausted messages to dlqTopic.
func NewKafkaConsumer(brokers []string, topic, groupID, dlqTopic string, logger *logging.Logger) *KafkaConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       1,
		MaxBytes:       1 << 20,
		CommitInterval: 0,
		StartOffset:    kafka.LastOffset,
	})

	dlq := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        dlqTopic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
	}

	return &KafkaConsumer{reader: reader, dlq: dlq, logger: logger.WithComponent("queue")}
}

// Run blocks, dispatching events to handler until ctx is cancelled.
func (c *KafkaConsumer) Run(ctx context.Context, handler Handler) error {
	for {
		m, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		if err := c.dispatch(ctx, m, handler); err != nil {
			c.logger.Warnf("routed message key=%s to dead-letter topic: %v", string(m.Key), err)
		}

		if err := c.reader.CommitMessages(ctx, m); err != nil {
			c.logger.Errorf(err, "commit failed, message may be redelivered")
		}
	}
}

// Close releases the reader and dead-letter writer.
func (c *KafkaConsumer) Close() error {
	rerr := c.reader.Close()
	werr := c.dlq.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}

func (c *KafkaConsumer) dispatch(ctx context.Context, m kafka.Message, handler Handler) error {
	var event types.MessageQueuedEvent
	if err := json.Unmarshal(m.Value, &event); err != nil {
		return c.sendToDeadLetter(ctx, m, fmt.Errorf("failed to unmarshal queued event: %w", err))
	}

	var lastErr error
	for attempt := 1; attempt <= maxDispatchAttempts; attempt++ {
		lastErr = handler(ctx, event)
		if lastErr == nil {
			return nil
		}

		c.logger.Warnf("dispatch attempt %d/%d failed for message %s: %v", attempt, maxDispatchAttempts, event.MessageID, lastErr)

		if attempt < maxDispatchAttempts {
			backoff := time.Duration(attempt) * 2 * time.Second
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}

	return c.sendToDeadLetter(ctx, m, lastErr)
}

func (c *KafkaConsumer) sendToDeadLetter(ctx context.Context, original kafka.Message, reason error) error {
	err := c.dlq.WriteMessages(ctx, kafka.Message{
		Key:   original.Key,
		Value: original.Value,
	})
	if err != nil {
		c.logger.Errorf(err, "could not write to dead-letter topic")
	}
	return reason
}

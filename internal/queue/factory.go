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
	"fmt"
	"strings"

	"messagehub/internal/config"
	"messagehub/internal/logging"
)

// NewTransport selects and constructs a paired Publisher/Consumer from
// queue configuration (§4.2: in-process for dev/test, Kafka in
// production).
func NewTransport(cfg config.QueueConfig, logger *logging.Logger) (Publisher, Consumer, error) {
	switch strings.ToLower(cfg.Type) {
	case "", "inprocess":
		t := NewInProcessTransport(256)
		return t, t, nil
	case "kafka":
		if len(cfg.Kafka.Brokers) == 0 {
			return nil, nil, fmt.Errorf("kafka queue requires at least one broker")
		}
		publisher := NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		consumer := NewKafkaConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topic, cfg.Kafka.GroupID, cfg.Kafka.DLQTopic, logger)
		return publisher, consumer, nil
	default:
		return nil, nil, fmt.Errorf("unsupported queue type: %s", cfg.Type)
	}
}

// Copyright (C) 2025-2026 CardinalHQ, Inc
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, version 3.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <http://www.gnu.org/licenses/>.

package fly

import (
	"fmt"
	"time"
)

// Config holds the Kafka configuration
type Config struct {
	// Broker configuration
	Brokers []string `mapstructure:"brokers"`

	// SASL authentication
	SASLEnabled   bool   `mapstructure:"sasl_enabled"`
	SASLMechanism string `mapstructure:"sasl_mechanism"` // "SCRAM-SHA-256", "SCRAM-SHA-512" or "PLAIN"
	SASLUsername  string `mapstructure:"sasl_username"`
	SASLPassword  string `mapstructure:"sasl_password"`

	// TLS configuration
	TLSEnabled    bool `mapstructure:"tls_enabled"`
	TLSSkipVerify bool `mapstructure:"tls_skip_verify"`

	// Consumer settings
	Topic               string        `mapstructure:"topic"`
	ConsumerGroupPrefix string        `mapstructure:"consumer_group_prefix"`
	ConsumerBatchSize   int           `mapstructure:"consumer_batch_size"`
	ConsumerMaxWait     time.Duration `mapstructure:"consumer_max_wait"`
	ConsumerMinBytes    int           `mapstructure:"consumer_min_bytes"`
	ConsumerMaxBytes    int           `mapstructure:"consumer_max_bytes"`
	ConsumerStartAtHead bool          `mapstructure:"consumer_start_at_head"`

	ConnectionTimeout time.Duration `mapstructure:"connection_timeout"`
}

// DefaultConfig returns a default configuration
func DefaultConfig() Config {
	return Config{
		Brokers: []string{"localhost:9092"},

		SASLMechanism: "SCRAM-SHA-256",

		Topic:               "analytics",
		ConsumerGroupPrefix: "eventlake",
		ConsumerBatchSize:   100,
		ConsumerMaxWait:     500 * time.Millisecond,
		ConsumerMinBytes:    10 * 1024,        // 10KB
		ConsumerMaxBytes:    10 * 1024 * 1024, // 10MB

		ConnectionTimeout: 10 * time.Second,
	}
}

// GetConsumerGroup returns the consumer group name for the given service
func (c Config) GetConsumerGroup(service string) string {
	return c.ConsumerGroupPrefix + "." + service
}

// Validate reports settings the consumer cannot run with.
func (c Config) Validate() error {
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka: at least one broker is required")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka: topic is required")
	}
	if c.ConsumerBatchSize <= 0 {
		return fmt.Errorf("kafka: consumer_batch_size must be positive, got %d", c.ConsumerBatchSize)
	}
	if c.SASLEnabled {
		switch c.SASLMechanism {
		case "SCRAM-SHA-256", "SCRAM-SHA-512", "PLAIN":
		default:
			return fmt.Errorf("kafka: unsupported SASL mechanism: %s", c.SASLMechanism)
		}
	}
	return nil
}

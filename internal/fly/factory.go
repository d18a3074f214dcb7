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
	"crypto/tls"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

// Factory creates Kafka consumers with consistent configuration
type Factory struct {
	config Config
}

// NewFactory creates a new factory with the given configuration
func NewFactory(cfg Config) *Factory {
	return &Factory{
		config: cfg,
	}
}

// CreateConsumer creates a new Kafka consumer for the specified topic.
// Options are applied last and may override the configured values.
func (f *Factory) CreateConsumer(topic string, groupID string, opts ...ConsumerOption) (Consumer, error) {
	cfg, err := f.consumerConfig(topic, groupID)
	if err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return NewConsumer(cfg), nil
}

// CreateConsumerWithService creates a consumer with a service-based group ID
func (f *Factory) CreateConsumerWithService(topic string, service string, opts ...ConsumerOption) (Consumer, error) {
	return f.CreateConsumer(topic, f.config.GetConsumerGroup(service), opts...)
}

func (f *Factory) consumerConfig(topic, groupID string) (ConsumerConfig, error) {
	startOffset := kafka.LastOffset
	if f.config.ConsumerStartAtHead {
		startOffset = kafka.FirstOffset
	}

	cfg := ConsumerConfig{
		Brokers:           f.config.Brokers,
		Topic:             topic,
		GroupID:           groupID,
		MinBytes:          f.config.ConsumerMinBytes,
		MaxBytes:          f.config.ConsumerMaxBytes,
		MaxWait:           f.config.ConsumerMaxWait,
		BatchSize:         f.config.ConsumerBatchSize,
		StartOffset:       startOffset,
		AutoCommit:        true,
		CommitBatch:       true,
		ConnectionTimeout: f.config.ConnectionTimeout,
	}

	if f.config.SASLEnabled {
		mechanism, err := f.createSASLMechanism()
		if err != nil {
			return ConsumerConfig{}, fmt.Errorf("failed to create SASL mechanism: %w", err)
		}
		cfg.SASLMechanism = mechanism
	}

	cfg.TLSConfig = f.tlsConfig()
	return cfg, nil
}

func (f *Factory) tlsConfig() *tls.Config {
	if !f.config.TLSEnabled {
		return nil
	}
	return &tls.Config{
		InsecureSkipVerify: f.config.TLSSkipVerify,
	}
}

// createSASLMechanism creates the appropriate SASL mechanism based on configuration
func (f *Factory) createSASLMechanism() (sasl.Mechanism, error) {
	switch f.config.SASLMechanism {
	case "SCRAM-SHA-256":
		return scram.Mechanism(scram.SHA256, f.config.SASLUsername, f.config.SASLPassword)
	case "SCRAM-SHA-512":
		return scram.Mechanism(scram.SHA512, f.config.SASLUsername, f.config.SASLPassword)
	case "PLAIN":
		return plain.Mechanism{
			Username: f.config.SASLUsername,
			Password: f.config.SASLPassword,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported SASL mechanism: %s", f.config.SASLMechanism)
	}
}

// CreateDialer creates an authenticated Kafka dialer for administrative operations
func (f *Factory) CreateDialer() (*kafka.Dialer, error) {
	timeout := f.config.ConnectionTimeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	dialer := &kafka.Dialer{
		Timeout: timeout,
		TLS:     f.tlsConfig(),
	}

	if f.config.SASLEnabled {
		mechanism, err := f.createSASLMechanism()
		if err != nil {
			return nil, fmt.Errorf("failed to create SASL mechanism: %w", err)
		}
		dialer.SASLMechanism = mechanism
	}

	return dialer, nil
}

// GetConfig returns the underlying configuration
func (f *Factory) GetConfig() Config {
	return f.config
}

//go:build kafkatest

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
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/orlangure/gnomock"
	kafkapreset "github.com/orlangure/gnomock/preset/kafka"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sharedBroker string

func TestMain(m *testing.M) {
	container, err := gnomock.Start(kafkapreset.Preset())
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start Kafka container: %v\n", err)
		os.Exit(1)
	}

	sharedBroker = container.Address(kafkapreset.BrokerPort)
	if !waitForKafkaReady(sharedBroker, 30*time.Second) {
		_ = gnomock.Stop(container)
		fmt.Fprintf(os.Stderr, "Kafka container did not become ready within timeout\n")
		os.Exit(1)
	}

	code := m.Run()
	if err := gnomock.Stop(container); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to stop Kafka container: %v\n", err)
	}
	os.Exit(code)
}

// waitForKafkaReady waits for the Kafka broker to be fully ready
func waitForKafkaReady(broker string, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := kafka.Dial("tcp", broker)
		if err == nil {
			_, err = conn.ApiVersions()
			conn.Close()
			if err == nil {
				return true
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	return false
}

func createTopic(t *testing.T, topic string) {
	t.Helper()

	conn, err := kafka.Dial("tcp", sharedBroker)
	require.NoError(t, err)
	defer conn.Close()

	err = conn.CreateTopics(kafka.TopicConfig{Topic: topic, NumPartitions: 1, ReplicationFactor: 1})
	if err != nil && !strings.Contains(err.Error(), "Topic already exists") {
		require.NoError(t, err)
	}
}

func produce(t *testing.T, topic string, values ...string) {
	t.Helper()

	w := &kafka.Writer{
		Addr:                   kafka.TCP(sharedBroker),
		Topic:                  topic,
		AllowAutoTopicCreation: true,
		BatchTimeout:           10 * time.Millisecond,
	}
	defer w.Close()

	msgs := make([]kafka.Message, len(values))
	for i, v := range values {
		msgs[i] = kafka.Message{Value: []byte(v)}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	require.NoError(t, w.WriteMessages(ctx, msgs...))
}

// consumeN reads until n messages have been seen, committing only through
// commitThrough when it is not negative.
func consumeN(t *testing.T, f *Factory, topic string, n int, commitThrough int64) []ConsumedMessage {
	t.Helper()

	consumer, err := f.CreateConsumerWithService(topic, "archive", WithManualCommit())
	require.NoError(t, err)
	defer consumer.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	var seen []ConsumedMessage
	err = consumer.Consume(ctx, func(ctx context.Context, msgs []ConsumedMessage) error {
		for _, m := range msgs {
			m.Value = append([]byte(nil), m.Value...)
			seen = append(seen, m)
		}
		if len(seen) < n {
			return nil
		}
		if commitThrough >= 0 {
			if err := consumer.CommitPartitionOffsets(ctx, map[int32]int64{0: commitThrough}); err != nil {
				return err
			}
		}
		cancel()
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	return seen
}

func TestConsumer_ResumesAfterPartialCommit(t *testing.T) {
	topic := fmt.Sprintf("eventlake-test-%d", time.Now().UnixNano())
	createTopic(t, topic)
	produce(t, topic, `{"n":0}`, `{"n":1}`, `{"n":2}`, `{"n":3}`)

	cfg := DefaultConfig()
	cfg.Brokers = []string{sharedBroker}
	cfg.Topic = topic
	cfg.ConsumerGroupPrefix = fmt.Sprintf("group-%d", time.Now().UnixNano())
	cfg.ConsumerBatchSize = 10
	cfg.ConsumerMinBytes = 1
	cfg.ConsumerMaxWait = 100 * time.Millisecond
	cfg.ConsumerStartAtHead = true
	f := NewFactory(cfg)

	first := consumeN(t, f, topic, 4, 1)
	require.Len(t, first, 4)
	assert.Equal(t, `{"n":0}`, string(first[0].Value))

	second := consumeN(t, f, topic, 2, -1)
	require.GreaterOrEqual(t, len(second), 2)
	assert.Equal(t, int64(2), second[0].Offset)
	assert.Equal(t, `{"n":2}`, string(second[0].Value))
	assert.Equal(t, topic, second[0].ToParserMessage().Topic)
}

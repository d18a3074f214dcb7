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

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	messagesConsumedCounter otelmetric.Int64Counter
	bytesConsumedCounter    otelmetric.Int64Counter
	commitsCounter          otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/eventlake/internal/fly")

	var err error
	messagesConsumedCounter, err = meter.Int64Counter(
		"eventlake.fly.consumer.messages",
		otelmetric.WithDescription("Number of Kafka messages handed to a handler"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create consumer.messages counter: %w", err))
	}

	bytesConsumedCounter, err = meter.Int64Counter(
		"eventlake.fly.consumer.bytes",
		otelmetric.WithDescription("Total payload bytes handed to a handler"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create consumer.bytes counter: %w", err))
	}

	commitsCounter, err = meter.Int64Counter(
		"eventlake.fly.consumer.commits",
		otelmetric.WithDescription("Number of partition offsets committed"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create consumer.commits counter: %w", err))
	}
}

// recordConsumed updates counters for a batch of messages.
func recordConsumed(ctx context.Context, topic string, msgs []ConsumedMessage) {
	if len(msgs) == 0 {
		return
	}
	attrs := otelmetric.WithAttributes(attribute.String("topic", topic))
	messagesConsumedCounter.Add(ctx, int64(len(msgs)), attrs)
	var totalBytes int64
	for _, m := range msgs {
		totalBytes += int64(len(m.Value))
	}
	bytesConsumedCounter.Add(ctx, totalBytes, attrs)
}

func recordCommit(ctx context.Context, topic string, partitions int, err error) {
	commitsCounter.Add(ctx, int64(partitions), otelmetric.WithAttributes(
		attribute.String("topic", topic),
		attribute.Bool("success", err == nil),
	))
}

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

package archive

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	messagesCounter    otelmetric.Int64Counter
	uploadsCounter     otelmetric.Int64Counter
	uploadBytesCounter otelmetric.Int64Counter
	reroutedCounter    otelmetric.Int64Counter
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/eventlake/internal/archive")

	var err error
	messagesCounter, err = meter.Int64Counter(
		"eventlake.archive.messages",
		otelmetric.WithDescription("Number of messages written to spool files"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create archive.messages counter: %w", err))
	}

	uploadsCounter, err = meter.Int64Counter(
		"eventlake.archive.uploads",
		otelmetric.WithDescription("Number of archive file uploads attempted"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create archive.uploads counter: %w", err))
	}

	uploadBytesCounter, err = meter.Int64Counter(
		"eventlake.archive.upload.bytes",
		otelmetric.WithDescription("Compressed bytes of uploaded archive files"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create archive.upload.bytes counter: %w", err))
	}

	reroutedCounter, err = meter.Int64Counter(
		"eventlake.archive.rerouted",
		otelmetric.WithDescription("Number of messages filed under a fallback partition because their key could not name an object"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create archive.rerouted counter: %w", err))
	}
}

func recordMessages(ctx context.Context, n int) {
	if n == 0 {
		return
	}
	messagesCounter.Add(ctx, int64(n))
}

func recordUpload(ctx context.Context, topic string, size int64, err error) {
	uploadsCounter.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("topic", topic),
		attribute.Bool("success", err == nil),
	))
	if err == nil {
		uploadBytesCounter.Add(ctx, size, otelmetric.WithAttributes(attribute.String("topic", topic)))
	}
}

func recordRerouted(ctx context.Context, topic string) {
	reroutedCounter.Add(ctx, 1, otelmetric.WithAttributes(attribute.String("topic", topic)))
}

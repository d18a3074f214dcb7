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

package parser

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

var (
	messagesCounter  otelmetric.Int64Counter
	fallbacksCounter otelmetric.Int64Counter
)

// Fallback reasons.
const (
	reasonDecode       = "decode"
	reasonMissingField = "missing_field"
	reasonMissingEvent = "missing_event"
	reasonBadDate      = "bad_date"
)

func init() {
	meter := otel.Meter("github.com/cardinalhq/eventlake/internal/parser")

	var err error
	messagesCounter, err = meter.Int64Counter(
		"eventlake.parser.messages",
		otelmetric.WithDescription("Number of messages whose partition key was extracted"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create parser.messages counter: %w", err))
	}

	fallbacksCounter, err = meter.Int64Counter(
		"eventlake.parser.fallbacks",
		otelmetric.WithDescription("Number of partition key components that fell back to a default"),
	)
	if err != nil {
		panic(fmt.Errorf("failed to create parser.fallbacks counter: %w", err))
	}
}

func recordMessage(parser string) {
	messagesCounter.Add(context.Background(), 1,
		otelmetric.WithAttributes(attribute.String("parser", parser)))
}

func recordFallback(parser, component, reason string) {
	fallbacksCounter.Add(context.Background(), 1,
		otelmetric.WithAttributes(
			attribute.String("parser", parser),
			attribute.String("component", component),
			attribute.String("reason", reason),
		))
}

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
	"errors"
	"log/slog"

	"github.com/cardinalhq/eventlake/internal/dateparse"
)

var errMissingEvent = errors.New("track message has no event field")

// AnalyticsParser partitions analytics events (track, identify, page,
// screen) by event type and time bucket, producing paths such as
//
//	analytics/identify/2015/05/19/22/<object>
//
// Track events are filed under their sanitized event name. Every other
// type is used as-is.
type AnalyticsParser struct {
	typeField string
	times     timeResolver
	logger    *slog.Logger
}

var _ Extractor = (*AnalyticsParser)(nil)

// NewAnalyticsParser reads the field names and bucket format from s once;
// later changes to s are not observed.
func NewAnalyticsParser(s Settings, opts ...Option) *AnalyticsParser {
	o := buildOptions(opts)
	return &AnalyticsParser{
		typeField: s.MessageTypeName(),
		times: timeResolver{
			parser: NameAnalytics,
			field:  s.MessageTimestampName(),
			format: s.MessageTimestampBucketFormat(),
			logger: o.logger,
		},
		logger: o.logger,
	}
}

func (p *AnalyticsParser) ExtractPartitions(msg Message) PartitionKey {
	recordMessage(NameAnalytics)

	fields, ok := DecodePayload(msg.Payload)
	if !ok {
		recordFallback(NameAnalytics, "type", reasonDecode)
		recordFallback(NameAnalytics, "time", reasonDecode)
		return PartitionKey{Type: DefaultType, Time: DefaultTime}
	}

	return PartitionKey{
		Type: p.resolveType(fields),
		Time: p.times.resolve(fields),
	}
}

func (p *AnalyticsParser) resolveType(fields Fields) string {
	value, ok := fields.Lookup(p.typeField)
	if !ok {
		recordFallback(NameAnalytics, "type", reasonMissingField)
		return DefaultType
	}
	if value != TrackType {
		return value
	}

	event, err := trackEvent(fields)
	if err != nil {
		p.logger.Warn("Track message cannot be typed, using default",
			slog.String("typeField", p.typeField),
			slog.String("fallback", DefaultType),
			slog.Any("error", err))
		recordFallback(NameAnalytics, "type", reasonMissingEvent)
		return DefaultType
	}
	return SanitizePath(event)
}

func trackEvent(fields Fields) (string, error) {
	event, ok := fields.Lookup(EventField)
	if !ok {
		return "", errMissingEvent
	}
	return event, nil
}

// timeResolver turns the configured timestamp field into a time bucket.
type timeResolver struct {
	parser string
	field  string
	format string
	logger *slog.Logger
}

func (r timeResolver) resolve(fields Fields) string {
	value, ok := fields.Lookup(r.field)
	if !ok {
		recordFallback(r.parser, "time", reasonMissingField)
		return DefaultTime
	}

	bucket, err := r.bucket(value)
	if err != nil {
		r.logger.Warn("Timestamp could not be parsed as an ISO-8601 date, using default",
			slog.String("value", value),
			slog.String("fallback", DefaultTime),
			slog.Any("error", err))
		recordFallback(r.parser, "time", reasonBadDate)
		return DefaultTime
	}
	return bucket
}

func (r timeResolver) bucket(value string) (string, error) {
	t, err := dateparse.ParseDateOptionalTime(value)
	if err != nil {
		return "", err
	}
	return dateparse.Format(t, r.format)
}

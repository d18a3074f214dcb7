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
	"fmt"
)

// TimestampParser buckets any JSON message by its timestamp field and files
// it under the source topic.
type TimestampParser struct {
	times timeResolver
}

var _ Extractor = (*TimestampParser)(nil)

func NewTimestampParser(s Settings, opts ...Option) *TimestampParser {
	o := buildOptions(opts)
	return &TimestampParser{
		times: timeResolver{
			parser: NameTimestamp,
			field:  s.MessageTimestampName(),
			format: s.MessageTimestampBucketFormat(),
			logger: o.logger,
		},
	}
}

func (p *TimestampParser) ExtractPartitions(msg Message) PartitionKey {
	recordMessage(NameTimestamp)

	key := PartitionKey{Type: topicType(NameTimestamp, msg.Topic), Time: DefaultTime}
	fields, ok := DecodePayload(msg.Payload)
	if !ok {
		recordFallback(NameTimestamp, "time", reasonDecode)
		return key
	}
	key.Time = p.times.resolve(fields)
	return key
}

// OffsetParser files messages under the source topic in fixed-size offset
// ranges, for streams with no usable timestamp.
type OffsetParser struct {
	perPartition int64
}

var _ Extractor = (*OffsetParser)(nil)

// NewOffsetParser panics if perPartition is not positive; New validates it
// first.
func NewOffsetParser(perPartition int64) *OffsetParser {
	if perPartition <= 0 {
		panic(fmt.Sprintf("offsets per partition must be positive, got %d", perPartition))
	}
	return &OffsetParser{perPartition: perPartition}
}

func (p *OffsetParser) ExtractPartitions(msg Message) PartitionKey {
	recordMessage(NameOffset)

	start := msg.Offset - msg.Offset%p.perPartition
	if msg.Offset < 0 {
		start = 0
	}
	return PartitionKey{
		Type: topicType(NameOffset, msg.Topic),
		Time: fmt.Sprintf("offset=%d", start),
	}
}

func topicType(parser, topic string) string {
	if t := SanitizePath(topic); t != "" {
		return t
	}
	recordFallback(parser, "type", reasonMissingField)
	return DefaultType
}

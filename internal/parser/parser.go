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

// Package parser computes the partition key that decides where an archived
// message lands in object storage.
package parser

import (
	"fmt"
	"log/slog"
)

const (
	// DefaultType is used when a message carries no usable type.
	DefaultType = "untyped"

	// DefaultTime is used when a message carries no usable timestamp.
	// It is a fixed literal and is not rendered through the bucket format.
	DefaultTime = "1970/01/01/00"

	// TrackType marks analytics events whose type lives in EventField.
	TrackType = "track"

	// EventField holds the event name of a track message.
	EventField = "event"
)

// Parser names accepted by New.
const (
	NameAnalytics = "analytics"
	NameTimestamp = "timestamp"
	NameOffset    = "offset"
)

// Message is the input to an Extractor. Only the analytics and timestamp
// extractors read the payload; the offset extractor reads the position.
type Message struct {
	Topic     string
	Partition int
	Offset    int64
	Payload   []byte
}

// PartitionKey is the (type, time) pair that names a storage directory.
type PartitionKey struct {
	Type string
	Time string
}

// Components returns the key as an ordered two element slice.
func (k PartitionKey) Components() []string {
	return []string{k.Type, k.Time}
}

// Path joins the components with a slash, as they appear in object keys.
func (k PartitionKey) Path() string {
	return k.Type + "/" + k.Time
}

// Extractor computes the partition key of a message. Implementations are
// safe for concurrent use and never fail: unusable input yields defaults.
type Extractor interface {
	ExtractPartitions(msg Message) PartitionKey
}

// Settings is the read-only view of configuration the extractors need.
type Settings interface {
	MessageTypeName() string
	MessageTimestampName() string
	MessageTimestampBucketFormat() string
}

// Config selects and configures an Extractor.
type Config struct {
	Name                string `mapstructure:"name"`
	TypeField           string `mapstructure:"type_field"`
	TimestampField      string `mapstructure:"timestamp_field"`
	BucketFormat        string `mapstructure:"bucket_format"`
	OffsetsPerPartition int64  `mapstructure:"offsets_per_partition"`
}

var _ Settings = Config{}

// DefaultConfig returns the analytics extractor with the standard field
// names and an hourly bucket.
func DefaultConfig() Config {
	return Config{
		Name:                NameAnalytics,
		TypeField:           "type",
		TimestampField:      "timestamp",
		BucketFormat:        "yyyy/MM/dd/HH",
		OffsetsPerPartition: 10_000_000,
	}
}

func (c Config) MessageTypeName() string              { return c.TypeField }
func (c Config) MessageTimestampName() string         { return c.TimestampField }
func (c Config) MessageTimestampBucketFormat() string { return c.BucketFormat }

// Option customizes an Extractor.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// WithLogger sets the logger used for diagnostic warnings.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func buildOptions(opts []Option) options {
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New returns the extractor named by cfg.Name.
func New(cfg Config, opts ...Option) (Extractor, error) {
	switch cfg.Name {
	case NameAnalytics, "":
		return NewAnalyticsParser(cfg, opts...), nil
	case NameTimestamp:
		return NewTimestampParser(cfg, opts...), nil
	case NameOffset:
		if cfg.OffsetsPerPartition <= 0 {
			return nil, fmt.Errorf("offset parser requires a positive offsets_per_partition, got %d", cfg.OffsetsPerPartition)
		}
		return NewOffsetParser(cfg.OffsetsPerPartition), nil
	default:
		return nil, fmt.Errorf("unknown parser %q", cfg.Name)
	}
}

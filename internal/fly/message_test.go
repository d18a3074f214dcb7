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
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"

	"github.com/cardinalhq/eventlake/internal/parser"
)

func TestFromKafkaMessage(t *testing.T) {
	timestamp := time.Now()
	tests := []struct {
		name string
		km   kafka.Message
		want ConsumedMessage
	}{
		{
			name: "full message",
			km: kafka.Message{
				Topic:     "test-topic",
				Partition: 1,
				Offset:    100,
				Key:       []byte("test-key"),
				Value:     []byte("test-value"),
				Headers: []kafka.Header{
					{Key: "header1", Value: []byte("value1")},
					{Key: "header2", Value: []byte("value2")},
				},
				Time: timestamp,
			},
			want: ConsumedMessage{
				Message: Message{
					Key:   []byte("test-key"),
					Value: []byte("test-value"),
					Headers: map[string]string{
						"header1": "value1",
						"header2": "value2",
					},
				},
				Topic:     "test-topic",
				Partition: 1,
				Offset:    100,
				Timestamp: timestamp,
			},
		},
		{
			name: "message without headers",
			km: kafka.Message{
				Topic: "test-topic",
				Key:   []byte("key"),
				Value: []byte("value"),
				Time:  timestamp,
			},
			want: ConsumedMessage{
				Message: Message{
					Key:     []byte("key"),
					Value:   []byte("value"),
					Headers: map[string]string{},
				},
				Topic:     "test-topic",
				Timestamp: timestamp,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, FromKafkaMessage(tt.km))
		})
	}
}

func TestConsumedMessage_ToParserMessage(t *testing.T) {
	m := ConsumedMessage{
		Message:   Message{Key: []byte("k"), Value: []byte(`{"type":"identify"}`)},
		Topic:     "analytics",
		Partition: 3,
		Offset:    42,
	}

	got := m.ToParserMessage()
	assert.Equal(t, parser.Message{
		Topic:     "analytics",
		Partition: 3,
		Offset:    42,
		Payload:   []byte(`{"type":"identify"}`),
	}, got)
}

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
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeReader serves queued messages and then blocks until the fetch
// context expires, like a reader on a quiet topic.
type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	fetchErr  error
	committed [][]kafka.Message
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if r.fetchErr != nil {
		err := r.fetchErr
		r.mu.Unlock()
		return kafka.Message{}, err
	}
	if len(r.queue) > 0 {
		m := r.queue[0]
		r.queue = r.queue[1:]
		r.mu.Unlock()
		return m, nil
	}
	r.mu.Unlock()

	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.committed = append(r.committed, msgs)
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

func (r *fakeReader) commits() [][]kafka.Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.committed
}

func testKafkaMessages(partition int, offsets ...int64) []kafka.Message {
	msgs := make([]kafka.Message, len(offsets))
	for i, o := range offsets {
		msgs[i] = kafka.Message{Topic: "events", Partition: partition, Offset: o, Value: []byte("{}")}
	}
	return msgs
}

func TestConsumer_BatchesAndAutoCommits(t *testing.T) {
	r := &fakeReader{queue: testKafkaMessages(0, 0, 1, 2, 3, 4)}
	cfg := DefaultConsumerConfig("events", "group")
	cfg.BatchSize = 2
	cfg.MaxWait = 10 * time.Millisecond
	c := newKafkaConsumer(cfg, r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var sizes []int
	err := c.Consume(ctx, func(_ context.Context, msgs []ConsumedMessage) error {
		mu.Lock()
		defer mu.Unlock()
		sizes = append(sizes, len(msgs))
		if len(sizes) == 3 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	assert.Equal(t, []int{2, 2, 1}, sizes)
	mu.Unlock()

	commits := r.commits()
	require.Len(t, commits, 3)
	assert.Equal(t, int64(1), commits[0][0].Offset)
	assert.Equal(t, int64(3), commits[1][0].Offset)
	assert.Equal(t, int64(4), commits[2][0].Offset)
}

func TestConsumer_ManualCommitNotifiesIdle(t *testing.T) {
	r := &fakeReader{queue: testKafkaMessages(0, 7)}
	cfg := DefaultConsumerConfig("events", "group")
	cfg.BatchSize = 10
	cfg.MaxWait = 5 * time.Millisecond
	WithManualCommit()(&cfg)
	c := newKafkaConsumer(cfg, r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls []int
	err := c.Consume(ctx, func(_ context.Context, msgs []ConsumedMessage) error {
		calls = append(calls, len(msgs))
		if len(calls) == 3 {
			cancel()
		}
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []int{1, 0, 0}, calls)
	assert.Empty(t, r.commits())
}

func TestConsumer_HandlerErrorStopsConsumption(t *testing.T) {
	r := &fakeReader{queue: testKafkaMessages(0, 0)}
	cfg := DefaultConsumerConfig("events", "group")
	cfg.BatchSize = 1
	c := newKafkaConsumer(cfg, r)

	boom := errors.New("boom")
	err := c.Consume(context.Background(), func(context.Context, []ConsumedMessage) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, r.commits())
}

func TestConsumer_FetchError(t *testing.T) {
	r := &fakeReader{fetchErr: errors.New("broker gone")}
	c := newKafkaConsumer(DefaultConsumerConfig("events", "group"), r)

	err := c.Consume(context.Background(), func(context.Context, []ConsumedMessage) error { return nil })
	assert.ErrorContains(t, err, "failed to fetch message: broker gone")
}

func TestConsumer_CommitMessagesHighestPerPartition(t *testing.T) {
	r := &fakeReader{}
	c := newKafkaConsumer(DefaultConsumerConfig("events", "group"), r)

	var msgs []ConsumedMessage
	for _, km := range append(testKafkaMessages(0, 5, 9, 7), testKafkaMessages(1, 3)...) {
		msgs = append(msgs, FromKafkaMessage(km))
	}
	require.NoError(t, c.CommitMessages(context.Background(), msgs...))

	commits := r.commits()
	require.Len(t, commits, 1)
	got := map[int]int64{}
	for _, m := range commits[0] {
		got[m.Partition] = m.Offset
	}
	assert.Equal(t, map[int]int64{0: 9, 1: 3}, got)

	require.NoError(t, c.CommitMessages(context.Background()))
	assert.Len(t, r.commits(), 1)
}

func TestConsumer_CommitPartitionOffsets(t *testing.T) {
	r := &fakeReader{}
	c := newKafkaConsumer(DefaultConsumerConfig("events", "group"), r)

	require.NoError(t, c.CommitPartitionOffsets(context.Background(), map[int32]int64{2: 41}))
	commits := r.commits()
	require.Len(t, commits, 1)
	assert.Equal(t, kafka.Message{Topic: "events", Partition: 2, Offset: 41}, commits[0][0])

	require.NoError(t, c.CommitPartitionOffsets(context.Background(), nil))
	assert.Len(t, r.commits(), 1)

	require.NoError(t, c.Close())
	assert.True(t, r.closed)
}

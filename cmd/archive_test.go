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

package cmd

import (
	"bufio"
	"compress/gzip"
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cardinalhq/eventlake/config"
	"github.com/cardinalhq/eventlake/internal/cloudstorage"
	"github.com/cardinalhq/eventlake/internal/fly"
)

// scriptedConsumer hands its batches to the handler, then behaves as if
// the context was cancelled.
type scriptedConsumer struct {
	batches    [][]fly.ConsumedMessage
	consumeErr error

	mu        sync.Mutex
	committed []map[int32]int64
	closed    bool
}

func (c *scriptedConsumer) Consume(ctx context.Context, handler fly.MessageHandler) error {
	for _, b := range c.batches {
		if err := handler(ctx, b); err != nil {
			return err
		}
	}
	if c.consumeErr != nil {
		return c.consumeErr
	}
	return context.Canceled
}

func (c *scriptedConsumer) CommitMessages(context.Context, ...fly.ConsumedMessage) error {
	return nil
}

func (c *scriptedConsumer) CommitPartitionOffsets(_ context.Context, offsets map[int32]int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return errors.New("commit after close")
	}
	cp := make(map[int32]int64, len(offsets))
	for k, v := range offsets {
		cp[k] = v
	}
	c.committed = append(c.committed, cp)
	return nil
}

func (c *scriptedConsumer) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func consumed(partition int, offset int64, payload string) fly.ConsumedMessage {
	return fly.ConsumedMessage{
		Message:   fly.Message{Value: []byte(payload)},
		Topic:     "events",
		Partition: partition,
		Offset:    offset,
	}
}

func testConfig(t *testing.T) *config.Config {
	cfg := config.Default()
	cfg.Archive.SpoolDir = t.TempDir()
	cfg.Storage.BaseDir = t.TempDir()
	return cfg
}

// archivedObjects maps object keys below the bucket to their lines.
func archivedObjects(t *testing.T, cfg *config.Config) map[string][]string {
	t.Helper()
	root := filepath.Join(cfg.Storage.BaseDir, cfg.Storage.Bucket)
	out := map[string][]string{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		f, err := os.Open(p)
		if err != nil {
			return err
		}
		defer func() { _ = f.Close() }()
		zr, err := gzip.NewReader(f)
		if err != nil {
			return err
		}
		var lines []string
		sc := bufio.NewScanner(zr)
		for sc.Scan() {
			lines = append(lines, sc.Text())
		}
		out[filepath.ToSlash(rel)] = lines
		return sc.Err()
	})
	require.NoError(t, err)
	return out
}

func TestRunArchive(t *testing.T) {
	cfg := testConfig(t)
	store := cloudstorage.NewFileClient(cfg.Storage.BaseDir)

	availability := `{"timestamp":"2014-10-17T01:34:22.450+00:00","type":"track","event":"availability"}`
	identify := `{"timestamp":"2014-10-17T13:34:22.450+00:00","type":"identify"}`
	consumer := &scriptedConsumer{batches: [][]fly.ConsumedMessage{
		{consumed(0, 0, availability), consumed(0, 1, identify)},
		{consumed(1, 7, availability), consumed(0, 2, `garbage`)},
	}}

	archiver, err := newArchiver(cfg, store, consumer)
	require.NoError(t, err)
	require.NoError(t, runArchive(context.Background(), consumer, archiver))

	objects := archivedObjects(t, cfg)
	keys := make([]string, 0, len(objects))
	for k := range objects {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	require.Len(t, keys, 4)

	prefixes := []string{
		"analytics/availability/2014/10/17/01/events_0_0_",
		"analytics/availability/2014/10/17/01/events_1_7_",
		"analytics/identify/2014/10/17/13/events_0_1_",
		"analytics/untyped/1970/01/01/00/events_0_2_",
	}
	for i, p := range prefixes {
		assert.True(t, strings.HasPrefix(keys[i], p), "key %q should start with %q", keys[i], p)
		assert.True(t, strings.HasSuffix(keys[i], ".json.gz"))
	}
	assert.Equal(t, []string{identify}, objects[keys[2]])
	assert.Equal(t, []string{"garbage"}, objects[keys[3]])

	require.NotEmpty(t, consumer.committed)
	assert.Equal(t, map[int32]int64{0: 2, 1: 7}, consumer.committed[len(consumer.committed)-1])
	assert.True(t, consumer.closed)
	assert.Equal(t, 0, archiver.OpenFiles())
}

func TestRunArchive_ConsumeErrorStillFlushes(t *testing.T) {
	cfg := testConfig(t)
	store := cloudstorage.NewFileClient(cfg.Storage.BaseDir)

	consumer := &scriptedConsumer{
		batches:    [][]fly.ConsumedMessage{{consumed(0, 4, `{"type":"page"}`)}},
		consumeErr: errors.New("broker gone"),
	}
	archiver, err := newArchiver(cfg, store, consumer)
	require.NoError(t, err)

	err = runArchive(context.Background(), consumer, archiver)
	assert.ErrorContains(t, err, "broker gone")

	assert.Len(t, archivedObjects(t, cfg), 1)
	assert.Equal(t, map[int32]int64{0: 4}, consumer.committed[len(consumer.committed)-1])
	assert.True(t, consumer.closed)
}

// failOnceStore rejects the first upload.
type failOnceStore struct {
	cloudstorage.Client
	mu     sync.Mutex
	failed bool
}

func (s *failOnceStore) UploadObject(ctx context.Context, bucket, key, src string) error {
	s.mu.Lock()
	first := !s.failed
	s.failed = true
	s.mu.Unlock()
	if first {
		return errors.New("storage unavailable")
	}
	return s.Client.UploadObject(ctx, bucket, key, src)
}

func TestRunArchive_UploadFailureKeepsConsuming(t *testing.T) {
	cfg := testConfig(t)
	cfg.Archive.MaxFileMessages = 1
	store := &failOnceStore{Client: cloudstorage.NewFileClient(cfg.Storage.BaseDir)}

	page := `{"timestamp":"2014-10-17T01:34:22.450+00:00","type":"page"}`
	consumer := &scriptedConsumer{batches: [][]fly.ConsumedMessage{
		{consumed(0, 0, page)},
		{consumed(0, 1, page)},
		{consumed(0, 2, page)},
	}}
	archiver, err := newArchiver(cfg, store, consumer)
	require.NoError(t, err)

	require.NoError(t, runArchive(context.Background(), consumer, archiver))

	objects := archivedObjects(t, cfg)
	assert.Len(t, objects, 3)
	for k, lines := range objects {
		assert.True(t, strings.HasPrefix(k, "analytics/page/2014/10/17/01/events_0_"), k)
		assert.Equal(t, []string{page}, lines)
	}
	require.NotEmpty(t, consumer.committed)
	assert.Equal(t, map[int32]int64{0: 2}, consumer.committed[len(consumer.committed)-1])
	assert.Zero(t, archiver.PendingUploads())
	assert.True(t, consumer.closed)
}

func TestNewArchiver_UnknownParser(t *testing.T) {
	cfg := testConfig(t)
	cfg.Parser.Name = "nope"
	_, err := newArchiver(cfg, cloudstorage.NewFileClient(cfg.Storage.BaseDir), &scriptedConsumer{})
	assert.ErrorContains(t, err, `unknown parser "nope"`)
}

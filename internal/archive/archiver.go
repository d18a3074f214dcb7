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
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/jonboulle/clockwork"

	"github.com/cardinalhq/eventlake/internal/cloudstorage"
	"github.com/cardinalhq/eventlake/internal/fly"
	"github.com/cardinalhq/eventlake/internal/idgen"
	"github.com/cardinalhq/eventlake/internal/logctx"
	"github.com/cardinalhq/eventlake/internal/parser"
)

// Committer commits Kafka offsets. Each offset is the last message
// processed in its partition. fly.Consumer satisfies it.
type Committer interface {
	CommitPartitionOffsets(ctx context.Context, offsets map[int32]int64) error
}

// Archiver files each consumed message under its partition key and
// uploads finished files. Delivery is at-least-once: offsets are committed
// only after every message at or below them is in object storage.
type Archiver struct {
	cfg       Config
	dest      Destination
	extractor parser.Extractor
	store     cloudstorage.Client
	committer Committer
	tracker   *OffsetTracker
	ids       idgen.IDGenerator
	clock     clockwork.Clock
	logger    *slog.Logger

	mu      sync.Mutex
	open    map[fileKey]*spoolFile
	pending []*spoolFile
	broken  []*spoolFile
	seq     uint64
	closed  bool
}

// Option customizes an Archiver.
type Option func(*Archiver)

// WithCommitter commits safe offsets after each batch. Without one,
// nothing is committed.
func WithCommitter(c Committer) Option {
	return func(a *Archiver) {
		a.committer = c
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(a *Archiver) {
		a.logger = l
	}
}

// WithClock sets the clock used for file ages and object ids.
func WithClock(c clockwork.Clock) Option {
	return func(a *Archiver) {
		a.clock = c
	}
}

func WithIDGenerator(g idgen.IDGenerator) Option {
	return func(a *Archiver) {
		a.ids = g
	}
}

// New creates the spool directory and clears files left there by an
// earlier run.
func New(cfg Config, dest Destination, extractor parser.Extractor, store cloudstorage.Client, opts ...Option) (*Archiver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dest.Bucket == "" {
		return nil, fmt.Errorf("archive: destination bucket is required")
	}
	dest.Prefix = strings.Trim(dest.Prefix, "/")

	a := &Archiver{
		cfg:       cfg,
		dest:      dest,
		extractor: extractor,
		store:     store,
		tracker:   NewOffsetTracker(),
		ids:       idgen.NewULIDGenerator(),
		clock:     clockwork.NewRealClock(),
		logger:    slog.Default(),
		open:      make(map[fileKey]*spoolFile),
	}
	for _, opt := range opts {
		opt(a)
	}

	if err := os.MkdirAll(cfg.SpoolDir, 0o755); err != nil {
		return nil, fmt.Errorf("create spool dir: %w", err)
	}
	removed, err := removeStaleSpool(cfg.SpoolDir)
	if err != nil {
		return nil, err
	}
	if removed > 0 {
		a.logger.Info("Removed stale spool files", slog.Int("count", removed), slog.String("dir", cfg.SpoolDir))
	}
	return a, nil
}

// Handle archives a batch. It has the shape of fly.MessageHandler and
// accepts empty batches, which only rotate aged files, retry uploads and
// commit. Only spool file errors are returned.
func (a *Archiver) Handle(ctx context.Context, messages []fly.ConsumedMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return fmt.Errorf("archiver is closed")
	}

	for _, m := range messages {
		if err := a.write(ctx, m); err != nil {
			return err
		}
	}
	recordMessages(ctx, len(messages))

	var errs *multierror.Error
	now := a.clock.Now()
	for k, s := range a.open {
		if s.expired(a.cfg, now) {
			if err := a.rotate(k, s); err != nil {
				errs = multierror.Append(errs, err)
			}
		}
	}
	// Queued files keep their partition's commit held, so upload and commit
	// failures are retried on the next batch or idle tick.
	if err := a.flushPending(ctx); err != nil {
		a.logger.Warn("Archive upload failed, will retry",
			slog.Int("pending", len(a.pending)),
			slog.Any("error", err))
	}
	if err := a.commit(ctx); err != nil {
		a.logger.Warn("Offset commit failed, will retry", slog.Any("error", err))
	}
	return errs.ErrorOrNil()
}

// partitionKey extracts m's partition key. A key that could never name an
// object is replaced by the untyped partition, and by the fallback time as
// well if that is not enough.
func (a *Archiver) partitionKey(ctx context.Context, m fly.ConsumedMessage, pm parser.Message) parser.PartitionKey {
	pk := a.extractor.ExtractPartitions(pm)
	err := checkObjectKey(a.dest.Prefix, pk, m.Topic, m.Partition, m.Offset)
	if err == nil {
		return pk
	}

	fallback := parser.PartitionKey{Type: parser.DefaultType, Time: pk.Time}
	if checkObjectKey(a.dest.Prefix, fallback, m.Topic, m.Partition, m.Offset) != nil {
		fallback.Time = parser.DefaultTime
	}

	lctx := logctx.WithMessage(logctx.WithLogger(ctx, a.logger), pm)
	logctx.FromContext(lctx).Warn("Partition key cannot name an object, archiving under fallback",
		slog.Int("typeBytes", len(pk.Type)),
		slog.String("fallback", fallback.Path()),
		slog.Any("error", err))
	recordRerouted(ctx, m.Topic)
	return fallback
}

func (a *Archiver) write(ctx context.Context, m fly.ConsumedMessage) error {
	pm := m.ToParserMessage()
	pk := a.partitionKey(ctx, m, pm)
	key := fileKey{path: pk.Path(), topic: m.Topic, partition: m.Partition}

	s, ok := a.open[key]
	if !ok {
		a.seq++
		var err error
		s, err = createSpoolFile(spoolName(a.cfg.SpoolDir, key, m.Offset, a.seq), key, pk, m.Offset, a.clock.Now())
		if err != nil {
			return err
		}
		a.open[key] = s
		lctx := logctx.WithMessage(logctx.WithLogger(ctx, a.logger), pm)
		logctx.FromContext(lctx).Debug("Opened spool file",
			slog.String("partitionPath", key.path),
			slog.String("file", s.name))
	}

	if err := s.append(m.Value, m.Offset); err != nil {
		return err
	}
	a.tracker.Observe(int32(m.Partition), m.Offset)

	if s.full(a.cfg) {
		return a.rotate(key, s)
	}
	return nil
}

// rotate finishes an open file and queues it for upload. A file that
// cannot be finished is never uploaded and holds its partition's commit
// until the process restarts.
func (a *Archiver) rotate(key fileKey, s *spoolFile) error {
	delete(a.open, key)
	if err := s.finish(); err != nil {
		a.broken = append(a.broken, s)
		return err
	}
	a.pending = append(a.pending, s)
	return nil
}

// flushPending uploads queued files. Files that fail stay queued and keep
// holding back their partition's commit.
func (a *Archiver) flushPending(ctx context.Context) error {
	var errs *multierror.Error
	remaining := a.pending[:0]
	for _, s := range a.pending {
		if err := a.upload(ctx, s); err != nil {
			errs = multierror.Append(errs, err)
			remaining = append(remaining, s)
		}
	}
	for i := len(remaining); i < len(a.pending); i++ {
		a.pending[i] = nil
	}
	a.pending = remaining
	return errs.ErrorOrNil()
}

func (a *Archiver) upload(ctx context.Context, s *spoolFile) error {
	key := objectKey(a.dest.Prefix, s.partition, s.key.topic, s.key.partition, s.firstOffset, a.ids.Make(a.clock.Now()))

	info, err := os.Stat(s.name)
	if err != nil {
		return fmt.Errorf("stat spool file: %w", err)
	}

	if err := a.store.UploadObject(ctx, a.dest.Bucket, key, s.name); err != nil {
		recordUpload(ctx, s.key.topic, 0, err)
		return fmt.Errorf("upload %s: %w", key, err)
	}
	recordUpload(ctx, s.key.topic, info.Size(), nil)

	a.logger.Info("Uploaded archive file",
		slog.String("bucket", a.dest.Bucket),
		slog.String("key", key),
		slog.Int("messages", s.messages),
		slog.Int64("bytes", info.Size()))

	if err := os.Remove(s.name); err != nil && !os.IsNotExist(err) {
		a.logger.Warn("Failed to remove uploaded spool file", slog.String("file", s.name), slog.Any("error", err))
	}
	return nil
}

// held returns, per Kafka partition, the lowest offset not yet uploaded.
func (a *Archiver) held() map[int32]int64 {
	held := make(map[int32]int64)
	hold := func(s *spoolFile) {
		p := int32(s.key.partition)
		if o, ok := held[p]; !ok || s.minOffset < o {
			held[p] = s.minOffset
		}
	}
	for _, s := range a.open {
		hold(s)
	}
	for _, s := range a.pending {
		hold(s)
	}
	for _, s := range a.broken {
		hold(s)
	}
	return held
}

func (a *Archiver) commit(ctx context.Context) error {
	if a.committer == nil {
		return nil
	}
	offsets := a.tracker.Committable(a.held())
	if len(offsets) == 0 {
		return nil
	}
	if err := a.committer.CommitPartitionOffsets(ctx, offsets); err != nil {
		return fmt.Errorf("commit offsets: %w", err)
	}
	a.tracker.MarkCommitted(offsets)
	return nil
}

// Close finishes and uploads every open file and commits what is safe.
// Files that fail to upload are left in the spool directory.
func (a *Archiver) Close(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil
	}
	a.closed = true

	var errs *multierror.Error
	for k, s := range a.open {
		if err := a.rotate(k, s); err != nil {
			errs = multierror.Append(errs, err)
		}
	}
	if err := a.flushPending(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}
	if err := a.commit(ctx); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// OpenFiles returns the number of spool files being written.
func (a *Archiver) OpenFiles() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.open)
}

// PendingUploads returns the number of finished files awaiting upload.
func (a *Archiver) PendingUploads() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.pending)
}

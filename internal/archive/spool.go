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
	"compress/gzip"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/cespare/xxhash/v2"

	"github.com/cardinalhq/eventlake/internal/parser"
)

const spoolSuffix = ".json.gz"

// fileKey identifies an open spool file. Each Kafka partition gets its own
// file per partition key so an object name can carry its first offset.
type fileKey struct {
	path      string
	topic     string
	partition int
}

// spoolFile is a gzip JSON-lines file being filled on local disk.
type spoolFile struct {
	key         fileKey
	partition   parser.PartitionKey
	name        string
	f           *os.File
	gz          *gzip.Writer
	bytes       int64
	messages    int
	firstOffset int64
	minOffset   int64
	opened      time.Time
}

func spoolName(dir string, key fileKey, firstOffset int64, seq uint64) string {
	h := xxhash.Sum64String(key.topic + "\x00" + key.path)
	return filepath.Join(dir, fmt.Sprintf("%016x_%d_%d_%d%s", h, key.partition, firstOffset, seq, spoolSuffix))
}

func createSpoolFile(name string, key fileKey, pk parser.PartitionKey, firstOffset int64, now time.Time) (*spoolFile, error) {
	f, err := os.OpenFile(name, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create spool file: %w", err)
	}
	return &spoolFile{
		key:         key,
		partition:   pk,
		name:        name,
		f:           f,
		gz:          gzip.NewWriter(f),
		firstOffset: firstOffset,
		minOffset:   firstOffset,
		opened:      now,
	}, nil
}

// append writes payload followed by a newline.
func (s *spoolFile) append(payload []byte, offset int64) error {
	if _, err := s.gz.Write(payload); err != nil {
		return fmt.Errorf("write spool file %s: %w", s.name, err)
	}
	if _, err := s.gz.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("write spool file %s: %w", s.name, err)
	}
	s.bytes += int64(len(payload)) + 1
	s.messages++
	if offset < s.minOffset {
		s.minOffset = offset
	}
	return nil
}

func (s *spoolFile) full(cfg Config) bool {
	return (cfg.MaxFileBytes > 0 && s.bytes >= cfg.MaxFileBytes) ||
		(cfg.MaxFileMessages > 0 && s.messages >= cfg.MaxFileMessages)
}

func (s *spoolFile) expired(cfg Config, now time.Time) bool {
	return cfg.MaxFileAge > 0 && now.Sub(s.opened) >= cfg.MaxFileAge
}

// finish flushes the gzip stream and closes the file.
func (s *spoolFile) finish() error {
	gzErr := s.gz.Close()
	closeErr := s.f.Close()
	if gzErr != nil {
		return fmt.Errorf("finish spool file %s: %w", s.name, gzErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close spool file %s: %w", s.name, closeErr)
	}
	return nil
}

// objectKey builds <prefix>/<type>/<time>/<topic>_<partition>_<firstOffset>_<id>.json.gz.
// Components are joined as-is; an empty prefix is omitted.
func objectKey(prefix string, pk parser.PartitionKey, topic string, partition int, firstOffset int64, id string) string {
	name := fmt.Sprintf("%s_%d_%d_%s%s", topic, partition, firstOffset, id, spoolSuffix)
	key := pk.Path() + "/" + name
	if prefix != "" {
		key = prefix + "/" + key
	}
	return key
}

const (
	// maxObjectKeyBytes is the S3 key limit; Azure and the file provider
	// accept at least as much.
	maxObjectKeyBytes = 1024
	objectIDLen       = 26
)

// checkObjectKey reports why objects for pk could never be stored: a path
// segment that is empty, relative, or not printable UTF-8, or a key past
// the provider limit.
func checkObjectKey(prefix string, pk parser.PartitionKey, topic string, partition int, firstOffset int64) error {
	for _, component := range pk.Components() {
		for _, seg := range strings.Split(component, "/") {
			if err := checkSegment(seg); err != nil {
				return fmt.Errorf("partition component %q: %w", component, err)
			}
		}
	}
	key := objectKey(prefix, pk, topic, partition, firstOffset, strings.Repeat("0", objectIDLen))
	if len(key) > maxObjectKeyBytes {
		return fmt.Errorf("object key is %d bytes, limit is %d", len(key), maxObjectKeyBytes)
	}
	return nil
}

func checkSegment(seg string) error {
	switch seg {
	case "":
		return errors.New("empty path segment")
	case ".", "..":
		return fmt.Errorf("relative path segment %q", seg)
	}
	if !utf8.ValidString(seg) {
		return errors.New("invalid UTF-8")
	}
	for _, r := range seg {
		if r == '\\' || unicode.IsControl(r) {
			return fmt.Errorf("unsafe character %q", r)
		}
	}
	return nil
}

// removeStaleSpool deletes spool files left by an earlier process. Their
// offsets were never committed, so the messages will be consumed again.
func removeStaleSpool(dir string) (int, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*"+spoolSuffix))
	if err != nil {
		return 0, err
	}
	for i, m := range matches {
		if err := os.Remove(m); err != nil && !os.IsNotExist(err) {
			return i, fmt.Errorf("remove stale spool file: %w", err)
		}
	}
	return len(matches), nil
}

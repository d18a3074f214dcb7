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
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
)

// OffsetTracker decides which Kafka offsets are safe to commit. An offset
// is safe once every message at or below it has been uploaded.
type OffsetTracker struct {
	mu        sync.Mutex
	highest   map[int32]int64
	committed map[int32]int64
	dirty     mapset.Set[int32]
}

func NewOffsetTracker() *OffsetTracker {
	return &OffsetTracker{
		highest:   make(map[int32]int64),
		committed: make(map[int32]int64),
		dirty:     mapset.NewSet[int32](),
	}
}

// Observe records that offset was consumed from partition.
func (t *OffsetTracker) Observe(partition int32, offset int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if h, ok := t.highest[partition]; !ok || offset > h {
		t.highest[partition] = offset
	}
	t.dirty.Add(partition)
}

// Committable returns, per partition with uncommitted progress, the last
// offset that may be committed. held maps a partition to the lowest offset
// still sitting in a file that has not been uploaded. Offsets never move
// backwards past an earlier commit.
func (t *OffsetTracker) Committable(held map[int32]int64) map[int32]int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[int32]int64)
	for _, p := range t.dirty.ToSlice() {
		target := t.highest[p]
		if h, ok := held[p]; ok && h-1 < target {
			target = h - 1
		}
		if target < 0 {
			continue
		}
		if c, ok := t.committed[p]; ok && target <= c {
			continue
		}
		out[p] = target
	}
	return out
}

// MarkCommitted records a successful commit.
func (t *OffsetTracker) MarkCommitted(offsets map[int32]int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for p, o := range offsets {
		if c, ok := t.committed[p]; ok && o <= c {
			continue
		}
		t.committed[p] = o
		if o >= t.highest[p] {
			t.dirty.Remove(p)
		}
	}
}

// Committed returns the last committed offset for partition.
func (t *OffsetTracker) Committed(partition int32) (int64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	o, ok := t.committed[partition]
	return o, ok
}

// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"container/list"
	"sync"
	"time"
)

// nominalEntrySize is the average-entry-size heuristic used to convert a
// byte budget into an entry-count capacity (spec.md §4.6.2: "computed from
// max_memory_size divided by a nominal average entry size; this is the
// entry-count capacity, not a byte budget").
const nominalEntrySize = 64 * 1024

// memoryTier is a bounded LRU keyed by cache key. Capacity is an entry
// count, never enforced against the running byte counter — eviction is
// strictly LRU-by-count, even though byteCount() tracks total payload size for
// metrics (spec.md §9 REDESIGN FLAG 1: preserved literally from the source).
type memoryTier struct {
	mu       sync.Mutex
	capacity int
	ll       *list.List
	index    map[string]*list.Element
	bytes    int64
}

type memoryNode struct {
	key   string
	entry entry
}

// capacityFromByteBudget derives an entry-count capacity from a byte
// budget using nominalEntrySize, with a floor of 1 (a zero capacity would
// make the tier useless and every put would immediately evict itself).
func capacityFromByteBudget(maxMemorySize int64) int {
	capacity := int(maxMemorySize / nominalEntrySize)
	if capacity < 1 {
		capacity = 1
	}
	return capacity
}

func newMemoryTier(maxMemorySize int64) *memoryTier {
	return &memoryTier{
		capacity: capacityFromByteBudget(maxMemorySize),
		ll:       list.New(),
		index:    make(map[string]*list.Element),
	}
}

// get returns a copy of the cached entry's metadata and bytes, updating
// recency and access accounting (spec.md §4.6.4 step 1).
func (m *memoryTier) get(key string, now time.Time) (entry, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.index[key]
	if !ok {
		return entry{}, false
	}
	m.ll.MoveToFront(el)
	node := el.Value.(*memoryNode)
	node.entry.meta.LastAccessed = now
	node.entry.meta.AccessCount++
	return node.entry, true
}

// put inserts or replaces key, evicting the least-recently-used entry when
// over capacity (spec.md §4.6.5 step 3). It returns the evicted entry's
// size in bytes (0 if nothing was evicted), so callers can keep their own
// byte-counter metrics in sync.
func (m *memoryTier) put(key string, e entry) (evictedBytes int64, evicted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.index[key]; ok {
		old := el.Value.(*memoryNode)
		m.bytes -= old.entry.meta.SizeBytes
		old.entry = e
		m.ll.MoveToFront(el)
		m.bytes += e.meta.SizeBytes
		return 0, false
	}

	el := m.ll.PushFront(&memoryNode{key: key, entry: e})
	m.index[key] = el
	m.bytes += e.meta.SizeBytes

	if m.ll.Len() > m.capacity {
		back := m.ll.Back()
		if back != nil {
			m.ll.Remove(back)
			old := back.Value.(*memoryNode)
			delete(m.index, old.key)
			m.bytes -= old.entry.meta.SizeBytes
			return old.entry.meta.SizeBytes, true
		}
	}
	return 0, false
}

// remove deletes key if present.
func (m *memoryTier) remove(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.index[key]; ok {
		m.ll.Remove(el)
		delete(m.index, key)
		m.bytes -= el.Value.(*memoryNode).entry.meta.SizeBytes
	}
}

// clear empties the tier.
func (m *memoryTier) clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ll = list.New()
	m.index = make(map[string]*list.Element)
	m.bytes = 0
}

func (m *memoryTier) byteCount() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bytes
}

func (m *memoryTier) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ll.Len()
}

// categoryCounts returns per-category entry counts and byte totals for the
// entries currently resident in memory, used to populate Cache.Stats.
func (m *memoryTier) categoryCounts() (entries map[Category]int64, bytes map[Category]int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries = make(map[Category]int64)
	bytes = make(map[Category]int64)
	for el := m.ll.Front(); el != nil; el = el.Next() {
		node := el.Value.(*memoryNode)
		entries[node.entry.meta.Category]++
		bytes[node.entry.meta.Category] += node.entry.meta.SizeBytes
	}
	return entries, bytes
}

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
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	cieerrors "github.com/kraklabs/cie/internal/errors"
)

// sweepPeriod is the disk-TTL sweeper's fixed period (spec.md §4.6.6 "a
// background task runs hourly").
const sweepPeriod = time.Hour

// sweepShutdownGrace bounds how long Close waits for an in-flight sweep to
// finish before abandoning it (spec.md §5 "shutdown is best-effort").
const sweepShutdownGrace = 2 * time.Second

// Options configures a Cache (mirrors internal/config.CacheConfig).
type Options struct {
	MaxMemorySize     int64
	MaxDiskSize       int64
	EnableDiskCache   bool
	EnableCompression bool
	Expiration        time.Duration
	CacheDir          string
	Registerer        prometheus.Registerer // optional; nil disables prometheus registration
}

// Cache is the Hybrid Cache Engine (spec.md component G): a memory LRU in
// front of an optional compressed disk tier, with per-category statistics
// and a background TTL sweeper.
type Cache struct {
	mem   *memoryTier
	disk  *diskTier // nil when disk cache is disabled
	stats *statistics

	maxEntrySize int64
	ttl          time.Duration

	cancel context.CancelFunc
	done   chan struct{}
}

// New builds a Cache from opts. When opts.EnableDiskCache is true,
// opts.CacheDir is created if needed and its index loaded.
func New(opts Options) (*Cache, error) {
	c := &Cache{
		mem:          newMemoryTier(opts.MaxMemorySize),
		stats:        newStatistics(opts.Registerer),
		maxEntrySize: opts.MaxMemorySize / 4,
		ttl:          opts.Expiration,
	}

	if opts.EnableDiskCache {
		disk, err := newDiskTier(opts.CacheDir, opts.EnableCompression)
		if err != nil {
			return nil, err
		}
		c.disk = disk
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.done = make(chan struct{})
	go c.sweepLoop(ctx)

	return c, nil
}

// Get implements spec.md §4.6.4: memory first, then (if enabled) the disk
// tier, promoting a disk hit back into memory.
func (c *Cache) Get(ctx context.Context, key string, category Category) ([]byte, bool, error) {
	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	default:
	}

	if e, ok := c.mem.get(key, time.Now()); ok {
		c.stats.recordHit(category)
		c.refreshGauges()
		out := make([]byte, len(e.bytes))
		copy(out, e.bytes)
		return out, true, nil
	}

	if c.disk == nil {
		c.stats.recordMiss(category)
		return nil, false, nil
	}

	data, meta, err, found := c.disk.get(key, c.ttl, time.Now())
	if err != nil {
		c.stats.recordMiss(category)
		return nil, false, err
	}
	if !found {
		c.stats.recordMiss(category)
		return nil, false, nil
	}

	meta.Category = category
	c.promote(key, data, meta)
	c.stats.recordHit(category)
	c.refreshGauges()

	out := make([]byte, len(data))
	copy(out, data)
	return out, true, nil
}

// Put implements spec.md §4.6.5.
func (c *Cache) Put(ctx context.Context, key string, data []byte, category Category) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if c.maxEntrySize > 0 && int64(len(data)) > c.maxEntrySize {
		return fmt.Errorf("%w: %d bytes exceeds cap of %d", cieerrors.ErrEntryTooLarge, len(data), c.maxEntrySize)
	}

	now := time.Now()
	meta := EntryMeta{CreatedAt: now, LastAccessed: now, AccessCount: 0, SizeBytes: int64(len(data)), Category: category}
	stored := entry{meta: meta, bytes: append([]byte(nil), data...)}

	// Memory tier is updated, and visible to concurrent readers, before any
	// disk write begins (spec.md §5 ordering guarantee).
	c.mem.put(key, stored)
	c.refreshGauges()

	if c.disk != nil {
		if err := c.disk.put(key, data, meta); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes key from both tiers.
func (c *Cache) Remove(key string) error {
	c.mem.remove(key)
	c.refreshGauges()
	if c.disk == nil {
		return nil
	}
	return c.disk.remove(key)
}

// Clear resets both tiers and statistics (spec.md §4.6.6 "Clear").
func (c *Cache) Clear() error {
	c.mem.clear()
	c.stats.reset()
	if c.disk == nil {
		return nil
	}
	return c.disk.clear()
}

// Stats returns a point-in-time snapshot of per-category and aggregate
// counters (spec.md §4.6.7).
func (c *Cache) Stats() Snapshot {
	entries, bytes := c.mem.categoryCounts()
	return c.stats.snapshot(entries, bytes)
}

// Close stops the background sweeper, waiting up to sweepShutdownGrace for
// an in-flight sweep to finish before abandoning it.
func (c *Cache) Close() error {
	c.cancel()
	select {
	case <-c.done:
	case <-time.After(sweepShutdownGrace):
	}
	return nil
}

// promote writes a disk hit back into the memory tier (spec.md §4.6.4 "may
// trigger LRU eviction").
func (c *Cache) promote(key string, data []byte, meta EntryMeta) {
	c.mem.put(key, entry{meta: meta, bytes: append([]byte(nil), data...)})
}

func (c *Cache) refreshGauges() {
	entries, bytes := c.mem.categoryCounts()
	for cat, n := range entries {
		c.stats.setGauge(cat, n, bytes[cat])
	}
}

// sweepLoop runs the hourly disk-TTL sweeper until ctx is cancelled
// (spec.md §4.6.6, §5 "One disk-TTL sweeper per cache").
func (c *Cache) sweepLoop(ctx context.Context) {
	defer close(c.done)

	if c.disk == nil || c.ttl <= 0 {
		<-ctx.Done()
		return
	}

	ticker := time.NewTicker(sweepPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.disk.sweepExpired(c.ttl, time.Now())
		}
	}
}

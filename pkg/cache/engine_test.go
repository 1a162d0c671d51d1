// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package cache

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, opts Options) *Cache {
	t.Helper()
	if opts.CacheDir == "" && opts.EnableDiskCache {
		opts.CacheDir = filepath.Join(t.TempDir(), "cache")
	}
	if opts.MaxMemorySize == 0 {
		opts.MaxMemorySize = nominalEntrySize * 4
	}
	c, err := New(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestPutThenGetIsMemoryHit(t *testing.T) {
	c := newTestCache(t, Options{})
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "ast:/a.rs", []byte("payload"), CategoryAST))

	data, found, err := c.Get(ctx, "ast:/a.rs", CategoryAST)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "payload", string(data))
}

func TestGetMissRecordsStatistic(t *testing.T) {
	c := newTestCache(t, Options{})
	_, found, err := c.Get(context.Background(), "nonexistent", CategoryGeneral)
	require.NoError(t, err)
	assert.False(t, found)

	snap := c.Stats()
	assert.Equal(t, int64(1), snap.TotalMiss)
}

func TestPutRejectsOversizedEntry(t *testing.T) {
	c := newTestCache(t, Options{MaxMemorySize: 16})
	big := make([]byte, 100)
	err := c.Put(context.Background(), "k", big, CategoryGeneral)
	assert.Error(t, err)
}

func TestEvictionIsLRUByCount(t *testing.T) {
	// capacity = maxMemorySize / nominalEntrySize = 2
	c := newTestCache(t, Options{MaxMemorySize: nominalEntrySize * 2})
	ctx := context.Background()

	require.NoError(t, c.Put(ctx, "a", []byte("1"), CategoryGeneral))
	require.NoError(t, c.Put(ctx, "b", []byte("2"), CategoryGeneral))
	require.NoError(t, c.Put(ctx, "c", []byte("3"), CategoryGeneral))

	_, found, _ := c.Get(ctx, "a", CategoryGeneral)
	assert.False(t, found, "oldest key must be evicted once capacity is exceeded")

	_, found, _ = c.Get(ctx, "c", CategoryGeneral)
	assert.True(t, found)
}

func TestDiskTierPromotesIntoMemoryOnHit(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	opts := Options{MaxMemorySize: nominalEntrySize, EnableDiskCache: true, CacheDir: dir, Expiration: time.Hour}

	c1 := newTestCache(t, opts)
	ctx := context.Background()
	require.NoError(t, c1.Put(ctx, "model:gpt:abc", []byte("response-bytes"), CategoryModelResponse))
	require.NoError(t, c1.Close())

	// Simulate a restart: fresh memory tier, same disk directory.
	c2 := newTestCache(t, opts)
	data, found, err := c2.Get(ctx, "model:gpt:abc", CategoryModelResponse)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "response-bytes", string(data))

	snapBefore := c2.Stats()
	_, found2, err := c2.Get(ctx, "model:gpt:abc", CategoryModelResponse)
	require.NoError(t, err)
	require.True(t, found2)
	snapAfter := c2.Stats()
	assert.Greater(t, snapAfter.TotalHits, snapBefore.TotalHits)
}

func TestSweepExpiredRemovesStaleDiskEntry(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	disk, err := newDiskTier(dir, false)
	require.NoError(t, err)

	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, disk.put("ast:/x.rs", []byte("tree"), EntryMeta{CreatedAt: past, LastAccessed: past, Category: CategoryAST}))

	removed := disk.sweepExpired(time.Hour, time.Now())
	assert.Equal(t, 1, removed)

	_, _, err, found := disk.get("ast:/x.rs", time.Hour, time.Now())
	require.NoError(t, err)
	assert.False(t, found)
}

func TestCompressionRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	disk, err := newDiskTier(dir, true)
	require.NoError(t, err)

	now := time.Now()
	payload := []byte("the quick brown fox jumps over the lazy dog, repeated for compressibility. " +
		"the quick brown fox jumps over the lazy dog, repeated for compressibility.")
	require.NoError(t, disk.put("k", payload, EntryMeta{CreatedAt: now, LastAccessed: now, Category: CategoryGeneral}))

	data, _, err, found := disk.get("k", time.Hour, time.Now())
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, payload, data)
}

func TestClearResetsTiersAndStats(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c := newTestCache(t, Options{MaxMemorySize: nominalEntrySize, EnableDiskCache: true, CacheDir: dir, Expiration: time.Hour})
	ctx := context.Background()
	require.NoError(t, c.Put(ctx, "k", []byte("v"), CategoryGeneral))

	require.NoError(t, c.Clear())

	_, found, _ := c.Get(ctx, "k", CategoryGeneral)
	assert.False(t, found)
	snap := c.Stats()
	assert.Equal(t, int64(0), snap.TotalHits)
}

func TestKeyBuilders(t *testing.T) {
	assert.Equal(t, "ast:/x.rs", ASTKey("/x.rs"))
	assert.Equal(t, "semantic:/x.rs", SemanticKey("/x.rs"))
	assert.Equal(t, "model:gpt:abc123", ModelKey("gpt", "abc123"))
	assert.Equal(t, "repo:/proj", RepositoryKey("/proj"))
	assert.Equal(t, "index:default", SearchIndexKey("default"))
}

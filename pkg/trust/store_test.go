// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package trust

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStoreUpsertAndGet(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(filepath.Join(dir, "trust.json"))
	require.NoError(t, err)

	entry := Entry{Path: "/a/b", Level: Trusted, GrantedAt: time.Now()}
	require.NoError(t, store.Upsert(entry))

	got, ok := store.Get("/a/b")
	require.True(t, ok)
	assert.Equal(t, Trusted, got.Level)
}

func TestStorePersistsAcrossReload(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trust.json")

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(Entry{Path: "/x", Level: Blocked, GrantedAt: time.Now()}))

	reloaded, err := NewStore(path)
	require.NoError(t, err)
	got, ok := reloaded.Get("/x")
	require.True(t, ok)
	assert.Equal(t, Blocked, got.Level)
}

func TestStoreSessionEntriesNotPersisted(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "trust.json")

	store, err := NewStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Upsert(Entry{
		Path:      "/session-only",
		Level:     Temporary,
		Scope:     Scope{Session: true},
		GrantedAt: time.Now(),
	}))

	reloaded, err := NewStore(path)
	require.NoError(t, err)
	_, ok := reloaded.Get("/session-only")
	assert.False(t, ok, "session-scoped entries must not survive a reload")
}

func TestBestMatchBlockedCascadesWithoutExplicitRecursive(t *testing.T) {
	store, err := NewStore("")
	require.NoError(t, err)

	require.NoError(t, store.Upsert(Entry{
		Path: "/a", Level: Trusted, Scope: Scope{Recursive: true}, GrantedAt: time.Now(),
	}))
	require.NoError(t, store.Upsert(Entry{
		Path: "/a/b", Level: Blocked, GrantedAt: time.Now(),
	}))

	match, ok := store.BestMatch("/a/b/c.txt")
	require.True(t, ok)
	assert.Equal(t, Blocked, match.Level, "a Blocked entry must cascade to descendants even without an explicit Recursive scope")
}

func TestBestMatchNonRecursiveTrustedDoesNotCascade(t *testing.T) {
	store, err := NewStore("")
	require.NoError(t, err)
	require.NoError(t, store.Upsert(Entry{Path: "/a", Level: Trusted, GrantedAt: time.Now()}))

	_, ok := store.BestMatch("/a/b")
	assert.False(t, ok, "a Directory-scoped entry must not apply to descendants")
}

func TestSweepExpiredRemovesOnlyPastEntries(t *testing.T) {
	store, err := NewStore("")
	require.NoError(t, err)

	past := time.Now().Add(-time.Hour)
	future := time.Now().Add(time.Hour)
	require.NoError(t, store.Upsert(Entry{Path: "/expired", Level: Trusted, ExpiresAt: &past, GrantedAt: time.Now()}))
	require.NoError(t, store.Upsert(Entry{Path: "/live", Level: Trusted, ExpiresAt: &future, GrantedAt: time.Now()}))

	n, err := store.SweepExpired(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, ok := store.Get("/expired")
	assert.False(t, ok)
	_, ok = store.Get("/live")
	assert.True(t, ok)
}

func TestExportImportRoundTrip(t *testing.T) {
	store, err := NewStore("")
	require.NoError(t, err)
	require.NoError(t, store.Upsert(Entry{Path: "/a", Level: Trusted, GrantedAt: time.Now()}))
	require.NoError(t, store.Upsert(Entry{Path: "/b", Level: Blocked, GrantedAt: time.Now()}))

	data, err := store.Export()
	require.NoError(t, err)

	other, err := NewStore("")
	require.NoError(t, err)
	require.NoError(t, other.Import(data, false))

	a, ok := other.Get("/a")
	require.True(t, ok)
	assert.Equal(t, Trusted, a.Level)
	b, ok := other.Get("/b")
	require.True(t, ok)
	assert.Equal(t, Blocked, b.Level)
}

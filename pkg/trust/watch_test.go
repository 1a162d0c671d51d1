// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package trust

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWatcherDemotesEntryOnWriteUnderRoot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("v1"), 0o644))

	store, err := NewStore("")
	require.NoError(t, err)
	require.NoError(t, store.Upsert(Entry{
		Path:      dir,
		Level:     Trusted,
		Scope:     Scope{Recursive: true},
		GrantedAt: time.Now(),
		Conditions: []Condition{
			{Kind: "no_modifications_since", Since: time.Now()},
		},
	}))

	w, err := NewWatcher(store)
	if err != nil {
		t.Skipf("filesystem watch unavailable in this environment: %v", err)
	}
	defer w.Close()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("v2 longer payload"), 0o644))

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, ok := store.Get(dir); !ok {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	_, ok := store.Get(dir)
	assert.False(t, ok, "entry should be demoted after a write under its recursive root")
}

func TestWatcherIgnoresEntriesWithoutFreshnessCondition(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore("")
	require.NoError(t, err)
	require.NoError(t, store.Upsert(Entry{
		Path:      dir,
		Level:     Trusted,
		Scope:     Scope{Recursive: true},
		GrantedAt: time.Now(),
	}))

	assert.False(t, hasFreshnessCondition(mustEntry(t, store, dir)))
}

func mustEntry(t *testing.T, store *Store, path string) Entry {
	t.Helper()
	e, ok := store.Get(path)
	require.True(t, ok)
	return e
}

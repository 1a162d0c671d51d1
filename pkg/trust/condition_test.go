// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package trust

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConditionsHoldNoModificationsSince(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f.txt")
	require.NoError(t, os.WriteFile(file, []byte("hi"), 0o644))

	past := time.Now().Add(-time.Hour)
	e := Entry{Path: file, Conditions: []Condition{{Kind: "no_modifications_since", Since: past}}}
	assert.False(t, conditionsHold(e, os.Stat), "file modified after Since must fail the condition")

	future := time.Now().Add(time.Hour)
	e2 := Entry{Path: file, Conditions: []Condition{{Kind: "no_modifications_since", Since: future}}}
	assert.True(t, conditionsHold(e2, os.Stat))
}

func TestConditionsHoldMaxSize(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("12345"), 0o644))

	e := Entry{Path: dir, Conditions: []Condition{{Kind: "max_size", MaxSize: 100}}}
	assert.True(t, conditionsHold(e, os.Stat))

	eTooSmallCap := Entry{Path: dir, Conditions: []Condition{{Kind: "max_size", MaxSize: 1}}}
	assert.False(t, conditionsHold(eTooSmallCap, os.Stat))
}

func TestConditionsHoldExtensions(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "b.md"), []byte("x"), 0o644))

	e := Entry{Path: dir, Conditions: []Condition{{Kind: "extensions", Extensions: []string{".md"}}}}
	assert.True(t, conditionsHold(e, os.Stat))

	require.NoError(t, os.WriteFile(filepath.Join(dir, "c.exe"), []byte("x"), 0o644))
	assert.False(t, conditionsHold(e, os.Stat))
}

func TestConditionUnknownKindFailsClosed(t *testing.T) {
	e := Entry{Path: "/tmp", Conditions: []Condition{{Kind: "nonsense"}}}
	statFn := func(string) (fs.FileInfo, error) { return nil, nil }
	assert.False(t, conditionsHold(e, statFn))
}

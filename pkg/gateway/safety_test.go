// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

package gateway

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalizeRejectsSensitivePrefix(t *testing.T) {
	p := &PathSafety{SensitivePrefixes: []string{"/etc"}}
	_, err := p.Canonicalize("/etc/passwd")
	assert.Error(t, err)
}

func TestCanonicalizeRejectsOutsideAllowedRoots(t *testing.T) {
	root := t.TempDir()
	other := t.TempDir()
	p := NewPathSafety([]string{root}, 0)

	_, err := p.Canonicalize(other)
	assert.Error(t, err)
}

func TestCanonicalizeAllowsWithinRoot(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "a.txt")
	require.NoError(t, os.WriteFile(file, []byte("x"), 0o644))

	p := NewPathSafety([]string{root}, 0)
	resolved, err := p.Canonicalize(file)
	require.NoError(t, err)
	assert.Equal(t, file, resolved)
}

func TestCheckReadSizeRejectsOverCap(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "big.bin")
	require.NoError(t, os.WriteFile(file, []byte("0123456789"), 0o644))

	p := &PathSafety{MaxReadSize: 4}
	_, err := p.CheckReadSize(file)
	assert.Error(t, err)
}

func TestProbeWritableDetectsReadOnlyDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Chmod(dir, 0o500))
	defer os.Chmod(dir, 0o700) //nolint:errcheck

	if os.Geteuid() == 0 {
		t.Skip("running as root: permission bits don't restrict writes")
	}
	assert.Error(t, ProbeWritable(dir))
}

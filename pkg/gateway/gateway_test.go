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

	"github.com/kraklabs/cie/internal/config"
	"github.com/kraklabs/cie/pkg/audit"
	"github.com/kraklabs/cie/pkg/trust"
)

func newOpenGateway(t *testing.T, root string) *Gateway {
	t.Helper()
	store, err := trust.NewStore("")
	require.NoError(t, err)
	mgr := trust.NewManager(store, trust.NonInteractivePrompt{}, nil, config.TrustConfig{Enabled: false})
	safety := NewPathSafety([]string{root}, 0)
	return New(safety, mgr, audit.NewMemorySink())
}

func TestReadWriteRoundTrip(t *testing.T) {
	root := t.TempDir()
	gw := newOpenGateway(t, root)

	target := filepath.Join(root, "file.txt")
	require.NoError(t, gw.Write(target, []byte("hello"), 0o644))

	data, err := gw.Read(target)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestReadRejectsOversizedFile(t *testing.T) {
	root := t.TempDir()
	store, err := trust.NewStore("")
	require.NoError(t, err)
	mgr := trust.NewManager(store, trust.NonInteractivePrompt{}, nil, config.TrustConfig{Enabled: false})
	safety := NewPathSafety([]string{root}, 4)
	gw := New(safety, mgr, nil)

	target := filepath.Join(root, "big.bin")
	require.NoError(t, os.WriteFile(target, []byte("toolarge"), 0o644))

	_, err = gw.Read(target)
	assert.Error(t, err)
}

func TestSymlinkEscapeIsRejected(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("nope"), 0o644))

	link := filepath.Join(root, "escape")
	require.NoError(t, os.Symlink(secret, link))

	gw := newOpenGateway(t, root)
	_, err := gw.Read(link)
	assert.Error(t, err)
}

func TestListDeniedWithoutTrust(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))

	store, err := trust.NewStore("")
	require.NoError(t, err)
	mgr := trust.NewManager(store, trust.NonInteractivePrompt{}, nil, config.TrustConfig{Enabled: true})
	safety := NewPathSafety([]string{root}, 0)
	gw := New(safety, mgr, nil)

	_, err = gw.List(root)
	assert.Error(t, err)
}

func TestExistsBypassesTrustGate(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "a.txt"), []byte("x"), 0o644))

	store, err := trust.NewStore("")
	require.NoError(t, err)
	mgr := trust.NewManager(store, trust.NonInteractivePrompt{}, nil, config.TrustConfig{Enabled: true})
	safety := NewPathSafety([]string{root}, 0)
	gw := New(safety, mgr, nil)

	ok, err := gw.Exists(filepath.Join(root, "a.txt"))
	require.NoError(t, err, "exists is the one verb spec.md §4.5 exempts from TrustManager.check")
	assert.True(t, ok)

	ok, err = gw.Exists(filepath.Join(root, "missing.txt"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExistsStillRejectsSymlinkEscape(t *testing.T) {
	root := t.TempDir()
	outside := t.TempDir()
	secret := filepath.Join(outside, "secret.txt")
	require.NoError(t, os.WriteFile(secret, []byte("nope"), 0o644))

	link := filepath.Join(root, "escape")
	require.NoError(t, os.Symlink(secret, link))

	gw := newOpenGateway(t, root)
	_, err := gw.Exists(link)
	assert.Error(t, err, "exists still runs symlink-escape canonicalization")
}
